package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Tomlord1122/todo-store/internal/domain"
	"github.com/Tomlord1122/todo-store/internal/events"
	"github.com/Tomlord1122/todo-store/internal/logging"
	"github.com/Tomlord1122/todo-store/internal/metrics"
	"github.com/Tomlord1122/todo-store/internal/repository"
)

// Operation names used for spans, metrics and logs.
const (
	OpList   = "list"
	OpGet    = "get"
	OpAdd    = "add"
	OpToggle = "toggle"
	OpDelete = "delete"
	OpRename = "rename"
	OpClear  = "clear_all"
)

// AddTodoRequest holds the data needed to create a new todo.
// Text is stored as given; empty text is accepted.
type AddTodoRequest struct {
	Text string `json:"text"`
}

type AddTodoResponse struct {
	ID string `json:"id"`
}

// RenameTodoRequest replaces the text of an existing todo.
type RenameTodoRequest struct {
	Text string `json:"text"`
}

type ClearAllResponse struct {
	DeletedCount int `json:"deletedCount"`
}

// TodoResponse is the standard representation of a Todo returned by the service.
type TodoResponse struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	IsCompleted bool   `json:"isCompleted"`
	CreatedAt   string `json:"createdAt"`
}

// TodoService defines the operations on the single shared todo collection.
type TodoService interface {
	// ListTodos returns every todo, newest first. An empty collection is an
	// empty slice.
	ListTodos(ctx context.Context) ([]TodoResponse, error)

	// GetTodo returns one todo or domain.ErrTodoNotFound.
	GetTodo(ctx context.Context, id string) (*TodoResponse, error)

	// AddTodo stores a new incomplete todo and returns its id.
	AddTodo(ctx context.Context, req AddTodoRequest) (*AddTodoResponse, error)

	// ToggleTodo flips completion. Unknown ids fail with
	// domain.ErrTodoNotFound and change nothing.
	ToggleTodo(ctx context.Context, id string) error

	// DeleteTodo removes a todo. Unknown ids are a silent no-op.
	DeleteTodo(ctx context.Context, id string) error

	// RenameTodo writes new text without checking existence first; the
	// store reports a missing record as domain.ErrRecordMissing.
	RenameTodo(ctx context.Context, id string, req RenameTodoRequest) error

	// ClearAll lists the collection and deletes each member in turn. The
	// count is the number of todos listed. It is not a transaction.
	ClearAll(ctx context.Context) (*ClearAllResponse, error)
}

// Option configures a todoService.
type Option func(*todoService)

// WithPublisher sets where change events go.
func WithPublisher(p events.Publisher) Option {
	return func(s *todoService) { s.publisher = p }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *todoService) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *todoService) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *todoService) { s.tracer = t }
}

// WithClock overrides time.Now for change event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *todoService) { s.now = now }
}

// todoService implements the TodoService interface.
// It depends on a TodoRepository to interact with the data layer.
type todoService struct {
	repo      repository.TodoRepository
	publisher events.Publisher
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// NewTodoService creates a new instance of todoService.
func NewTodoService(repo repository.TodoRepository, opts ...Option) TodoService {
	s := &todoService{
		repo:      repo,
		publisher: events.Noop{},
		logger:    log.Logger,
		tracer:    noop.NewTracerProvider().Tracer("todo"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "todo_service").Logger()
	return s
}

// begin starts a span for operation; the returned function ends it and
// records the outcome.
func (s *todoService) begin(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "todo."+operation, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveOperation(operation, start, err)
		}
	}
}

func (s *todoService) publish(ctx context.Context, change events.Change) {
	change.At = s.now().UTC()
	// The write has committed; a caller going away must not drop the event.
	if err := s.publisher.Publish(context.WithoutCancel(ctx), change); err != nil {
		logging.LogPublishFailed(s.logger, string(change.Kind), err)
	}
}

func (s *todoService) ListTodos(ctx context.Context) (responses []TodoResponse, err error) {
	ctx, end := s.begin(ctx, OpList)
	defer func() { end(err) }()

	todos, err := s.repo.List(ctx)
	if err != nil {
		logging.LogStoreError(s.logger, OpList, err)
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}

	responses = make([]TodoResponse, 0, len(todos))
	for _, todo := range todos {
		responses = append(responses, toResponse(todo))
	}
	return responses, nil
}

func (s *todoService) GetTodo(ctx context.Context, id string) (resp *TodoResponse, err error) {
	ctx, end := s.begin(ctx, OpGet, attribute.String("todo.id", id))
	defer func() { end(err) }()

	todo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrTodoNotFound) {
			logging.LogStoreError(s.logger, OpGet, err)
		}
		return nil, err
	}
	r := toResponse(*todo)
	return &r, nil
}

func (s *todoService) AddTodo(ctx context.Context, req AddTodoRequest) (resp *AddTodoResponse, err error) {
	ctx, end := s.begin(ctx, OpAdd)
	defer func() { end(err) }()

	newTodo, err := domain.NewTodo(req.Text)
	if err != nil {
		return nil, err
	}
	id := newTodo.ID

	if err = s.repo.Create(ctx, newTodo); err != nil {
		logging.LogStoreError(s.logger, OpAdd, err)
		return nil, fmt.Errorf("failed to add todo: %w", err)
	}

	logging.LogTodoAdded(s.logger, id, len(req.Text))
	s.publish(ctx, events.Change{Kind: events.KindAdded, TodoID: id})
	return &AddTodoResponse{ID: id}, nil
}

func (s *todoService) ToggleTodo(ctx context.Context, id string) (err error) {
	ctx, end := s.begin(ctx, OpToggle, attribute.String("todo.id", id))
	defer func() { end(err) }()

	todo, err := s.repo.ToggleCompleted(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrTodoNotFound) {
			logging.LogStoreError(s.logger, OpToggle, err)
		}
		return err
	}

	logging.LogTodoToggled(s.logger, id, todo.IsCompleted)
	s.publish(ctx, events.Change{Kind: events.KindToggled, TodoID: id})
	return nil
}

func (s *todoService) DeleteTodo(ctx context.Context, id string) (err error) {
	ctx, end := s.begin(ctx, OpDelete, attribute.String("todo.id", id))
	defer func() { end(err) }()

	existed, err := s.repo.Delete(ctx, id)
	if err != nil {
		logging.LogStoreError(s.logger, OpDelete, err)
		return fmt.Errorf("failed to delete todo: %w", err)
	}

	logging.LogTodoDeleted(s.logger, id, existed)
	if existed {
		s.publish(ctx, events.Change{Kind: events.KindDeleted, TodoID: id})
	}
	return nil
}

func (s *todoService) RenameTodo(ctx context.Context, id string, req RenameTodoRequest) (err error) {
	ctx, end := s.begin(ctx, OpRename, attribute.String("todo.id", id))
	defer func() { end(err) }()

	if err = s.repo.UpdateText(ctx, id, req.Text); err != nil {
		if !errors.Is(err, domain.ErrRecordMissing) {
			logging.LogStoreError(s.logger, OpRename, err)
		}
		return err
	}

	logging.LogTodoRenamed(s.logger, id)
	s.publish(ctx, events.Change{Kind: events.KindRenamed, TodoID: id})
	return nil
}

func (s *todoService) ClearAll(ctx context.Context) (resp *ClearAllResponse, err error) {
	ctx, end := s.begin(ctx, OpClear)
	defer func() { end(err) }()

	start := time.Now()
	todos, err := s.repo.List(ctx)
	if err != nil {
		logging.LogStoreError(s.logger, OpClear, err)
		return nil, fmt.Errorf("failed to list todos for clearing: %w", err)
	}

	removed := 0
	for _, todo := range todos {
		existed, delErr := s.repo.Delete(ctx, todo.ID)
		if delErr != nil {
			logging.LogStoreError(s.logger, OpClear, delErr)
			if removed > 0 {
				s.publish(ctx, events.Change{Kind: events.KindCleared, DeletedCount: removed})
			}
			return nil, fmt.Errorf("failed to clear todos (removed %d of %d): %w", removed, len(todos), delErr)
		}
		if existed {
			removed++
		}
	}

	logging.LogTodosCleared(s.logger, len(todos), removed, time.Since(start))
	s.publish(ctx, events.Change{Kind: events.KindCleared, DeletedCount: len(todos)})
	return &ClearAllResponse{DeletedCount: len(todos)}, nil
}

func toResponse(todo domain.Todo) TodoResponse {
	return TodoResponse{
		ID:          todo.ID,
		Text:        todo.Text,
		IsCompleted: todo.IsCompleted,
		CreatedAt:   todo.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
