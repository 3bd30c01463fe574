package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Tomlord1122/todo-store/internal/config"
	"github.com/Tomlord1122/todo-store/internal/database"
	"github.com/Tomlord1122/todo-store/internal/events"
	"github.com/Tomlord1122/todo-store/internal/logging"
	"github.com/Tomlord1122/todo-store/internal/metrics"
	"github.com/Tomlord1122/todo-store/internal/repository"
	"github.com/Tomlord1122/todo-store/internal/server"
	"github.com/Tomlord1122/todo-store/internal/service"
	"github.com/Tomlord1122/todo-store/internal/telemetry"
)

// closer is a resource released after the HTTP server has stopped.
type closer struct {
	name  string
	close func(ctx context.Context) error
}

func gracefulShutdown(apiServer *http.Server, closers []closer, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Info().Msg("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	for _, c := range closers {
		if err := c.close(ctxTimeout); err != nil {
			log.Error().Err(err).Str("resource", c.name).Msg("Error during shutdown")
			continue
		}
		log.Info().Str("resource", c.name).Msg("Closed")
	}

	log.Info().Msg("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

// openStore opens the configured substrate and returns its health/close
// handle together with the repository backed by it.
func openStore(ctx context.Context, cfg config.Config) (database.Service, repository.TodoRepository, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pg, err := database.NewPostgres(cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		if cfg.DB.AutoMigrate {
			log.Info().Msg("Running database auto-migration")
			if err := pg.Migrate(); err != nil {
				_ = pg.Close()
				return nil, nil, err
			}
		}
		return pg, repository.NewGormTodoRepository(pg.GetDB()), nil

	case config.BackendSQLite:
		lite, err := database.NewSQLite(ctx, cfg.SQLite)
		if err != nil {
			return nil, nil, err
		}
		if err := lite.Migrate(ctx); err != nil {
			_ = lite.Close()
			return nil, nil, err
		}
		return lite, repository.NewSQLTodoRepository(lite.GetDB()), nil

	case config.BackendDynamoDB:
		dyn, err := database.NewDynamoDB(ctx, cfg.Dynamo)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Dynamo.CreateTable {
			if err := dyn.EnsureTable(ctx); err != nil {
				return nil, nil, err
			}
		}
		return dyn, repository.NewDynamoDBTodoRepository(dyn.Client(), dyn.Table()), nil

	case config.BackendMemory:
		log.Warn().Msg("Using in-memory store; todos are lost on restart")
		return database.Memory{}, repository.NewMemoryTodoRepository(), nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	tracer, shutdownTracing, err := telemetry.Setup(telemetry.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up tracing")
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	// 1. Open the store
	dbService, todoRepo, err := openStore(startupCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("Failed to open store")
	}
	log.Info().Str("backend", cfg.Backend).Msg("Store ready")

	// 2. Change events: websocket hub, plus NATS when configured
	hub := events.NewHub(events.DefaultSubscriberBuffer)
	publishers := events.Multi{hub}
	var natsPub *events.NATSPublisher
	if cfg.NATS.URL != "" {
		natsPub, err = events.NewNATSPublisher(events.NATSConfig{
			URL:     cfg.NATS.URL,
			Subject: cfg.NATS.Subject,
			Name:    cfg.Tracing.ServiceName,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		publishers = append(publishers, natsPub)
		log.Info().Str("subject", cfg.NATS.Subject).Msg("Publishing changes to NATS")
	}

	// 3. Service
	m := metrics.New()
	todoService := service.NewTodoService(todoRepo,
		service.WithPublisher(publishers),
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithTracer(tracer),
	)

	// 4. Server
	apiServer := server.NewServer(cfg.Port, todoService, dbService, hub, m)

	closers := []closer{}
	if natsPub != nil {
		closers = append(closers, closer{"nats", func(context.Context) error { return natsPub.Close() }})
	}
	closers = append(closers,
		// Hijacked watch connections outlive Shutdown; end them before the
		// store goes away.
		closer{"watchers", func(context.Context) error { hub.Close(); return nil }},
		closer{"store", func(context.Context) error { return dbService.Close() }},
		closer{"tracer", shutdownTracing},
	)

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(apiServer, closers, done)

	log.Info().Str("addr", apiServer.Addr).Msg("Starting server")
	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("HTTP server ListenAndServe error")
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info().Msg("Graceful shutdown complete")
}
