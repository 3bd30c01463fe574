package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Tomlord1122/todo-store/internal/database"
	"github.com/Tomlord1122/todo-store/internal/events"
	"github.com/Tomlord1122/todo-store/internal/metrics"
	"github.com/Tomlord1122/todo-store/internal/service"
)

const defaultPort = 8080

type Server struct {
	port        int
	todoService service.TodoService
	db          database.Service
	hub         *events.Hub
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// New builds the application server. hub and m may be nil; the watch
// endpoint and /metrics are then not mounted.
func New(port int, todoService service.TodoService, dbService database.Service, hub *events.Hub, m *metrics.Metrics) *Server {
	if port <= 0 {
		log.Warn().Int("port", port).Msgf("Invalid port, using default %d", defaultPort)
		port = defaultPort
	}
	return &Server{
		port:        port,
		todoService: todoService,
		db:          dbService,
		hub:         hub,
		metrics:     m,
		logger:      log.Logger.With().Str("component", "http").Logger(),
	}
}

// HTTPServer wraps the router in an *http.Server listening on the
// configured port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func NewServer(port int, todoService service.TodoService, dbService database.Service, hub *events.Hub, m *metrics.Metrics) *http.Server {
	return New(port, todoService, dbService, hub, m).HTTPServer()
}
