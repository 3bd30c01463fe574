package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Tomlord1122/todo-store/internal/domain"
)

// TodoRepository defines the interface for todo data operations.
type TodoRepository interface {
	// Create inserts todo. ID and CreatedAt must already be set.
	Create(ctx context.Context, todo *domain.Todo) error

	// FindByID returns domain.ErrTodoNotFound when no record has the id.
	FindByID(ctx context.Context, id string) (*domain.Todo, error)

	// List returns every todo, newest first.
	List(ctx context.Context) ([]domain.Todo, error)

	// ToggleCompleted negates is_completed in a single atomic write and
	// returns the updated record, or domain.ErrTodoNotFound.
	ToggleCompleted(ctx context.Context, id string) (*domain.Todo, error)

	// UpdateText overwrites the text of an existing record. A missing
	// record yields domain.ErrRecordMissing.
	UpdateText(ctx context.Context, id, text string) error

	// Delete removes the record and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
}

// gormTodoRepository implements TodoRepository using GORM
type gormTodoRepository struct {
	db *gorm.DB
}

// NewGormTodoRepository creates a new GORM todo repository
func NewGormTodoRepository(db *gorm.DB) TodoRepository {
	return &gormTodoRepository{db: db}
}

func (r *gormTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	if err := r.db.WithContext(ctx).Create(todo).Error; err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

func (r *gormTodoRepository) FindByID(ctx context.Context, id string) (*domain.Todo, error) {
	var todo domain.Todo
	result := r.db.WithContext(ctx).First(&todo, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("todo %s: %w", id, domain.ErrTodoNotFound)
		}
		return nil, fmt.Errorf("find todo %s: %w", id, result.Error)
	}
	return &todo, nil
}

func (r *gormTodoRepository) List(ctx context.Context) ([]domain.Todo, error) {
	todos := []domain.Todo{}
	result := r.db.WithContext(ctx).
		Order("id DESC").
		Find(&todos)
	if result.Error != nil {
		return nil, fmt.Errorf("list todos: %w", result.Error)
	}
	return todos, nil
}

func (r *gormTodoRepository) ToggleCompleted(ctx context.Context, id string) (*domain.Todo, error) {
	var todo domain.Todo
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Todo{}).
			Where("id = ?", id).
			Update("is_completed", gorm.Expr("NOT is_completed"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrTodoNotFound
		}
		return tx.First(&todo, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrTodoNotFound) {
			return nil, fmt.Errorf("todo %s: %w", id, err)
		}
		return nil, fmt.Errorf("toggle todo %s: %w", id, err)
	}
	return &todo, nil
}

func (r *gormTodoRepository) UpdateText(ctx context.Context, id, text string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Todo{}).
		Where("id = ?", id).
		Update("text", text)
	if result.Error != nil {
		return fmt.Errorf("update todo %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update todo %s: %w", id, domain.ErrRecordMissing)
	}
	return nil
}

func (r *gormTodoRepository) Delete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Todo{})
	if result.Error != nil {
		return false, fmt.Errorf("delete todo %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}
