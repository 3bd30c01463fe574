package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_Ordered(t *testing.T) {
	prev, err := NewID()
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		next, err := NewID()
		require.NoError(t, err)
		assert.Greater(t, next, prev, "ids must increase in creation order")
		prev = next
	}
}

func TestParseID(t *testing.T) {
	id, err := NewID()
	require.NoError(t, err)

	got, err := ParseID(strings.ToUpper(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseID("not-an-id")
	assert.True(t, errors.Is(err, ErrInvalidID))
}

func TestNewer(t *testing.T) {
	now := time.Now()
	older := Todo{ID: "a", CreatedAt: now.Add(time.Second)}
	newer := Todo{ID: "b", CreatedAt: now}

	// The id decides, not the stored timestamp.
	assert.True(t, Newer(newer, older))
	assert.False(t, Newer(older, newer))
}

func TestNewTodo_CreatedAtMatchesID(t *testing.T) {
	before := time.Now().Truncate(time.Millisecond)
	todo, err := NewTodo("milk")
	require.NoError(t, err)

	id, err := uuid.Parse(todo.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, "milk", todo.Text)
	assert.False(t, todo.IsCompleted)
	assert.Equal(t, time.UTC, todo.CreatedAt.Location())
	assert.False(t, todo.CreatedAt.Before(before))
	assert.Equal(t, 0, todo.CreatedAt.Nanosecond()%int(time.Millisecond))
}

func TestNewTodo_IDsStrictlyIncrease(t *testing.T) {
	prev, err := NewTodo("first")
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		next, err := NewTodo("next")
		require.NoError(t, err)
		require.True(t, Newer(*next, *prev), "id %s not after %s", next.ID, prev.ID)
		prev = next
	}
}
