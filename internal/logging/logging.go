package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log event names
const (
	EventTodoAdded     = "todo_added"
	EventTodoToggled   = "todo_toggled"
	EventTodoRenamed   = "todo_renamed"
	EventTodoDeleted   = "todo_deleted"
	EventTodosCleared  = "todos_cleared"
	EventStoreError    = "store_error"
	EventPublishFailed = "publish_failed"
)

// Setup configures the global zerolog logger and returns it.
func Setup(level, format string) zerolog.Logger {
	return SetupWriter(os.Stdout, level, format)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

// LogTodoAdded logs a newly created todo
func LogTodoAdded(logger zerolog.Logger, id string, textLen int) {
	logger.Info().
		Str("event", EventTodoAdded).
		Str("todo_id", id).
		Int("text_len", textLen).
		Msg("Todo added")
}

// LogTodoToggled logs a completion flip
func LogTodoToggled(logger zerolog.Logger, id string, completed bool) {
	logger.Info().
		Str("event", EventTodoToggled).
		Str("todo_id", id).
		Bool("is_completed", completed).
		Msg("Todo toggled")
}

func LogTodoRenamed(logger zerolog.Logger, id string) {
	logger.Info().
		Str("event", EventTodoRenamed).
		Str("todo_id", id).
		Msg("Todo renamed")
}

// LogTodoDeleted logs a delete; existed is false for the silent no-op case
func LogTodoDeleted(logger zerolog.Logger, id string, existed bool) {
	logger.Info().
		Str("event", EventTodoDeleted).
		Str("todo_id", id).
		Bool("existed", existed).
		Msg("Todo deleted")
}

// LogTodosCleared logs the outcome of clear-all
func LogTodosCleared(logger zerolog.Logger, listed, removed int, duration time.Duration) {
	logger.Info().
		Str("event", EventTodosCleared).
		Int("deleted_count", listed).
		Int("removed", removed).
		Dur("duration", duration).
		Msg("Todos cleared")
}

// LogStoreError logs a substrate failure for an operation
func LogStoreError(logger zerolog.Logger, operation string, err error) {
	logger.Error().
		Str("event", EventStoreError).
		Str("operation", operation).
		Err(err).
		Msg("Store operation failed")
}

// LogPublishFailed logs a change event that could not be delivered
func LogPublishFailed(logger zerolog.Logger, kind string, err error) {
	logger.Warn().
		Str("event", EventPublishFailed).
		Str("kind", kind).
		Err(err).
		Msg("Change event not published")
}
