package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Tomlord1122/todo-store/internal/domain"
)

// MemoryTodoRepository keeps the collection in a map guarded by one lock.
// Records are copied in and out so callers never share state with the store.
type MemoryTodoRepository struct {
	todos map[string]domain.Todo
	mu    sync.RWMutex
}

func NewMemoryTodoRepository() *MemoryTodoRepository {
	return &MemoryTodoRepository{
		todos: make(map[string]domain.Todo),
	}
}

func (r *MemoryTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.todos[todo.ID]; exists {
		return fmt.Errorf("todo %s already exists", todo.ID)
	}
	r.todos[todo.ID] = *todo
	return nil
}

func (r *MemoryTodoRepository) FindByID(ctx context.Context, id string) (*domain.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	todo, exists := r.todos[id]
	if !exists {
		return nil, fmt.Errorf("todo %s: %w", id, domain.ErrTodoNotFound)
	}
	return &todo, nil
}

func (r *MemoryTodoRepository) List(ctx context.Context) ([]domain.Todo, error) {
	r.mu.RLock()
	todos := make([]domain.Todo, 0, len(r.todos))
	for _, todo := range r.todos {
		todos = append(todos, todo)
	}
	r.mu.RUnlock()

	sort.Slice(todos, func(i, j int) bool {
		return domain.Newer(todos[i], todos[j])
	})
	return todos, nil
}

func (r *MemoryTodoRepository) ToggleCompleted(ctx context.Context, id string) (*domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	todo, exists := r.todos[id]
	if !exists {
		return nil, fmt.Errorf("todo %s: %w", id, domain.ErrTodoNotFound)
	}
	todo.IsCompleted = !todo.IsCompleted
	r.todos[id] = todo
	return &todo, nil
}

func (r *MemoryTodoRepository) UpdateText(ctx context.Context, id, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	todo, exists := r.todos[id]
	if !exists {
		return fmt.Errorf("update todo %s: %w", id, domain.ErrRecordMissing)
	}
	todo.Text = text
	r.todos[id] = todo
	return nil
}

func (r *MemoryTodoRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.todos[id]; !exists {
		return false, nil
	}
	delete(r.todos, id)
	return true, nil
}
