package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Tomlord1122/todo-store/internal/domain"
)

// createdAtLayout is fixed width so that text comparison matches time order.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// sqlTodoRepository implements TodoRepository with plain database/sql for
// the SQLite substrate.
type sqlTodoRepository struct {
	db *sql.DB
}

func NewSQLTodoRepository(db *sql.DB) TodoRepository {
	return &sqlTodoRepository{db: db}
}

func (r *sqlTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO todos (id, text, is_completed, created_at) VALUES (?, ?, ?, ?)`,
		todo.ID, todo.Text, todo.IsCompleted, formatCreatedAt(todo.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

func (r *sqlTodoRepository) FindByID(ctx context.Context, id string) (*domain.Todo, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, text, is_completed, created_at FROM todos WHERE id = ?`, id)
	todo, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("todo %s: %w", id, domain.ErrTodoNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find todo %s: %w", id, err)
	}
	return todo, nil
}

func (r *sqlTodoRepository) List(ctx context.Context) ([]domain.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, text, is_completed, created_at FROM todos ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := []domain.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, *todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

func (r *sqlTodoRepository) ToggleCompleted(ctx context.Context, id string) (*domain.Todo, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE todos SET is_completed = NOT is_completed WHERE id = ?
		 RETURNING id, text, is_completed, created_at`, id)
	todo, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("todo %s: %w", id, domain.ErrTodoNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("toggle todo %s: %w", id, err)
	}
	return todo, nil
}

func (r *sqlTodoRepository) UpdateText(ctx context.Context, id, text string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE todos SET text = ? WHERE id = ?`, text, id)
	if err != nil {
		return fmt.Errorf("update todo %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update todo %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update todo %s: %w", id, domain.ErrRecordMissing)
	}
	return nil
}

func (r *sqlTodoRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete todo %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete todo %s: %w", id, err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*domain.Todo, error) {
	var (
		todo      domain.Todo
		createdAt string
	)
	if err := row.Scan(&todo.ID, &todo.Text, &todo.IsCompleted, &createdAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(createdAtLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	todo.CreatedAt = t
	return &todo, nil
}

func formatCreatedAt(t time.Time) string {
	return t.UTC().Format(createdAtLayout)
}
