package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Tomlord1122/todo-store/internal/domain"
	"github.com/Tomlord1122/todo-store/internal/service"
)

// Error codes carried in the "code" field of error bodies.
const (
	CodeBadRequest    = "bad_request"
	CodeInvalidID     = "invalid_id"
	CodeNotFound      = "not_found"
	CodeRecordMissing = "record_missing"
	CodeInternal      = "internal"
)

// maxBodyBytes bounds request bodies for add and rename.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.rootHandler)
	r.Get("/health", s.healthHandler)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/todos", func(r chi.Router) {
		r.Get("/", s.listTodosHandler)
		r.Post("/", s.addTodoHandler)
		r.Delete("/", s.clearTodosHandler)
		if s.hub != nil {
			r.Get("/watch", s.watchTodosHandler)
		}
		r.Get("/{id}", s.getTodoHandler)
		r.Patch("/{id}", s.renameTodoHandler)
		r.Delete("/{id}", s.deleteTodoHandler)
		r.Post("/{id}/toggle", s.toggleTodoHandler)
	})

	return r
}

// requestLogger logs one line per request through zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Todo store is running"})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthStats := s.db.Health()
	if status, ok := healthStats["status"]; ok && status == "down" {
		respondWithJSON(w, http.StatusServiceUnavailable, healthStats)
		return
	}
	respondWithJSON(w, http.StatusOK, healthStats)
}

func (s *Server) listTodosHandler(w http.ResponseWriter, r *http.Request) {
	todos, err := s.todoService.ListTodos(r.Context())
	if err != nil {
		s.respondWithServiceError(w, r, err, "Failed to retrieve todos")
		return
	}
	respondWithJSON(w, http.StatusOK, todos)
}

func (s *Server) getTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := todoIDParam(w, r)
	if !ok {
		return
	}

	todo, err := s.todoService.GetTodo(r.Context(), id)
	if err != nil {
		s.respondWithServiceError(w, r, err, "Failed to retrieve todo")
		return
	}
	respondWithJSON(w, http.StatusOK, todo)
}

func (s *Server) addTodoHandler(w http.ResponseWriter, r *http.Request) {
	var req service.AddTodoRequest
	if !s.decodeJSONBody(w, r, &req) {
		return
	}

	resp, err := s.todoService.AddTodo(r.Context(), req)
	if err != nil {
		s.respondWithServiceError(w, r, err, "Failed to add todo")
		return
	}
	respondWithJSON(w, http.StatusCreated, resp)
}

func (s *Server) toggleTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := todoIDParam(w, r)
	if !ok {
		return
	}

	if err := s.todoService.ToggleTodo(r.Context(), id); err != nil {
		s.respondWithServiceError(w, r, err, "Failed to toggle todo")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) renameTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := todoIDParam(w, r)
	if !ok {
		return
	}

	var req service.RenameTodoRequest
	if !s.decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.todoService.RenameTodo(r.Context(), id, req); err != nil {
		s.respondWithServiceError(w, r, err, "Failed to rename todo")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := todoIDParam(w, r)
	if !ok {
		return
	}

	if err := s.todoService.DeleteTodo(r.Context(), id); err != nil {
		s.respondWithServiceError(w, r, err, "Failed to delete todo")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearTodosHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := s.todoService.ClearAll(r.Context())
	if err != nil {
		s.respondWithServiceError(w, r, err, "Failed to clear todos")
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func todoIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, CodeInvalidID, "Invalid todo ID provided")
		return "", false
	}
	return id, true
}

// decodeJSONBody decodes a single JSON object into dst and writes a 400 for
// any malformed input. It reports whether the handler should continue.
func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(dst)
	if err == nil {
		if decoder.More() {
			respondWithError(w, http.StatusBadRequest, CodeBadRequest, "Request body must only contain a single JSON object")
			return false
		}
		return true
	}

	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, msg)
	case errors.Is(err, io.ErrUnexpectedEOF):
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, "Request body contains badly-formed JSON")
	case errors.As(err, &unmarshalTypeError):
		msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, msg)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
		msg := fmt.Sprintf("Request body contains unknown field %s", fieldName)
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, msg)
	case errors.Is(err, io.EOF):
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, "Request body must not be empty")
	case errors.As(err, &maxBytesError):
		msg := fmt.Sprintf("Request body must not be larger than %d bytes", maxBytesError.Limit)
		respondWithError(w, http.StatusRequestEntityTooLarge, CodeBadRequest, msg)
	default:
		s.logger.Error().Err(err).Msg("Error decoding request body")
		respondWithError(w, http.StatusInternalServerError, CodeInternal, "Error processing request")
	}
	return false
}

// respondWithServiceError maps domain errors to status codes. Anything
// unrecognised is logged and reported as a 500 with the fallback message.
func (s *Server) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrTodoNotFound):
		respondWithError(w, http.StatusNotFound, CodeNotFound, domain.ErrTodoNotFound.Error())
	case errors.Is(err, domain.ErrRecordMissing):
		respondWithError(w, http.StatusNotFound, CodeRecordMissing, domain.ErrRecordMissing.Error())
	case errors.Is(err, domain.ErrInvalidID):
		respondWithError(w, http.StatusBadRequest, CodeInvalidID, err.Error())
	default:
		s.logger.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg(fallback)
		respondWithError(w, http.StatusInternalServerError, CodeInternal, fallback)
	}
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, errorResponse{Error: message, Code: code})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error preparing response","code":"internal"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
