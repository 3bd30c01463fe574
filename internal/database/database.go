package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tomlord1122/todo-store/internal/config"
	"github.com/Tomlord1122/todo-store/internal/domain"
)

// Service is a connection to a storage substrate.
type Service interface {
	Health() map[string]string
	Close() error
}

// Postgres is the gorm-managed Postgres connection pool.
type Postgres struct {
	db   *gorm.DB
	name string
}

// NewPostgres opens the pool described by cfg.
func NewPostgres(cfg config.DBConfig) (*Postgres, error) {
	gormWriter := log.Logger.With().Str("component", "gorm").Logger()
	gormLogger := logger.New(
		&gormWriter,
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel(),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DriverName: "pgx",
		DSN:        cfg.DSN(),
	}), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Postgres{db: db, name: cfg.Database}, nil
}

// NewPostgresFromDB wraps an already opened gorm handle.
func NewPostgresFromDB(db *gorm.DB, name string) *Postgres {
	return &Postgres{db: db, name: name}
}

func (p *Postgres) GetDB() *gorm.DB {
	return p.db
}

// Migrate creates or updates the todos table.
func (p *Postgres) Migrate() error {
	if err := p.db.AutoMigrate(&domain.Todo{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// Health pings the database through the pool gorm manages.
func (p *Postgres) Health() map[string]string {
	sqlDB, err := p.db.DB()
	if err != nil {
		log.Error().Err(err).Msg("Error getting DB for health check")
		return map[string]string{
			"status": "down",
			"error":  fmt.Sprintf("failed to get underlying DB for health check: %v", err),
		}
	}
	stats := poolHealth(sqlDB)
	stats["backend"] = config.BackendPostgres
	return stats
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		log.Error().Err(err).Msg("Error getting underlying sql.DB for closing")
		return err
	}
	log.Info().Str("database", p.name).Msg("Closing connection pool")
	return sqlDB.Close()
}

// poolHealth pings db and reports its pool statistics.
func poolHealth(db *sql.DB) map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Error().Err(err).Msg("db down")
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.OpenConnections > 80 {
		stats["message"] = "The database is experiencing heavy load."
	}

	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	if dbStats.MaxIdleClosed > int64(dbStats.OpenConnections)/2 && dbStats.OpenConnections > dbStats.Idle {
		stats["message"] = "Many idle connections are being closed, consider revising the connection pool settings (MaxIdleConns, ConnMaxIdleTime)."
	}

	if dbStats.MaxLifetimeClosed > int64(dbStats.OpenConnections)/2 {
		stats["message"] = "Many connections are being closed due to max lifetime, consider increasing ConnMaxLifetime or revising the connection usage pattern."
	}

	return stats
}

func gormLogLevel() logger.LogLevel {
	switch zerolog.GlobalLevel() {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return logger.Info
	case zerolog.InfoLevel, zerolog.WarnLevel:
		return logger.Warn
	default:
		return logger.Error
	}
}
