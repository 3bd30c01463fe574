package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/todo-store/internal/domain"
)

// newTestTodo builds a todo the way the service does.
func newTestTodo(t *testing.T, text string) *domain.Todo {
	t.Helper()
	todo, err := domain.NewTodo(text)
	require.NoError(t, err)
	return todo
}

// runRepositoryContract exercises behaviour every substrate must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) TodoRepository) {
	ctx := context.Background()

	t.Run("empty list", func(t *testing.T) {
		repo := newRepo(t)
		todos, err := repo.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, todos)
		assert.Empty(t, todos)
	})

	t.Run("create and find", func(t *testing.T) {
		repo := newRepo(t)
		todo := newTestTodo(t, "buy milk")
		require.NoError(t, repo.Create(ctx, todo))

		got, err := repo.FindByID(ctx, todo.ID)
		require.NoError(t, err)
		assert.Equal(t, todo.ID, got.ID)
		assert.Equal(t, "buy milk", got.Text)
		assert.False(t, got.IsCompleted)
	})

	t.Run("find missing", func(t *testing.T) {
		repo := newRepo(t)
		id, _ := domain.NewID()
		_, err := repo.FindByID(ctx, id)
		assert.True(t, errors.Is(err, domain.ErrTodoNotFound))
	})

	t.Run("list newest first", func(t *testing.T) {
		repo := newRepo(t)
		var ids []string
		for _, text := range []string{"one", "two", "three", "four"} {
			todo := newTestTodo(t, text)
			require.NoError(t, repo.Create(ctx, todo))
			ids = append(ids, todo.ID)
		}

		todos, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, todos, 4)
		for i, todo := range todos {
			assert.Equal(t, ids[len(ids)-1-i], todo.ID)
		}

		again, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, todos, again)
	})

	t.Run("list follows ids when timestamps step back", func(t *testing.T) {
		repo := newRepo(t)
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		var ids []string
		for i := 0; i < 3; i++ {
			todo := newTestTodo(t, "x")
			todo.CreatedAt = base.Add(-time.Duration(i) * time.Second)
			require.NoError(t, repo.Create(ctx, todo))
			ids = append(ids, todo.ID)
		}

		todos, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, todos, 3)
		assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{todos[0].ID, todos[1].ID, todos[2].ID})
	})

	t.Run("toggle twice restores", func(t *testing.T) {
		repo := newRepo(t)
		todo := newTestTodo(t, "walk dog")
		require.NoError(t, repo.Create(ctx, todo))

		toggled, err := repo.ToggleCompleted(ctx, todo.ID)
		require.NoError(t, err)
		assert.True(t, toggled.IsCompleted)
		assert.Equal(t, "walk dog", toggled.Text)

		toggled, err = repo.ToggleCompleted(ctx, todo.ID)
		require.NoError(t, err)
		assert.False(t, toggled.IsCompleted)
	})

	t.Run("toggle missing", func(t *testing.T) {
		repo := newRepo(t)
		existing := newTestTodo(t, "keep")
		require.NoError(t, repo.Create(ctx, existing))

		id, _ := domain.NewID()
		_, err := repo.ToggleCompleted(ctx, id)
		assert.True(t, errors.Is(err, domain.ErrTodoNotFound))

		todos, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, todos, 1)
		assert.False(t, todos[0].IsCompleted)
	})

	t.Run("update text keeps completion", func(t *testing.T) {
		repo := newRepo(t)
		todo := newTestTodo(t, "old text")
		require.NoError(t, repo.Create(ctx, todo))
		_, err := repo.ToggleCompleted(ctx, todo.ID)
		require.NoError(t, err)

		require.NoError(t, repo.UpdateText(ctx, todo.ID, "new text"))

		got, err := repo.FindByID(ctx, todo.ID)
		require.NoError(t, err)
		assert.Equal(t, "new text", got.Text)
		assert.True(t, got.IsCompleted)
	})

	t.Run("update text missing", func(t *testing.T) {
		repo := newRepo(t)
		id, _ := domain.NewID()
		err := repo.UpdateText(ctx, id, "anything")
		assert.True(t, errors.Is(err, domain.ErrRecordMissing))
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		todo := newTestTodo(t, "remove me")
		other := newTestTodo(t, "stay")
		require.NoError(t, repo.Create(ctx, todo))
		require.NoError(t, repo.Create(ctx, other))

		existed, err := repo.Delete(ctx, todo.ID)
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = repo.Delete(ctx, todo.ID)
		require.NoError(t, err)
		assert.False(t, existed)

		todos, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, todos, 1)
		assert.Equal(t, other.ID, todos[0].ID)
	})

	t.Run("concurrent toggles", func(t *testing.T) {
		repo := newRepo(t)
		todo := newTestTodo(t, "contended")
		require.NoError(t, repo.Create(ctx, todo))

		const n = 10
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.ToggleCompleted(ctx, todo.ID); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := repo.FindByID(ctx, todo.ID)
		require.NoError(t, err)
		assert.False(t, got.IsCompleted, "an even number of toggles must restore the flag")
	})
}
