package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Todo is a single list item. IDs are UUIDv7 strings; within one process they
// strictly increase even if the wall clock steps back, so the id alone orders
// the list. CreatedAt is the millisecond timestamp embedded in the id.
type Todo struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id" dynamodbav:"id"`
	Text        string    `gorm:"not null" json:"text" dynamodbav:"text"`
	IsCompleted bool      `gorm:"not null;default:false" json:"isCompleted" dynamodbav:"is_completed"`
	CreatedAt   time.Time `gorm:"not null;index" json:"createdAt" dynamodbav:"created_at"`
}

// NewTodo returns an uncompleted todo with a fresh id and the creation time
// taken from that id.
func NewTodo(text string) (*Todo, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate todo id: %w", err)
	}
	return &Todo{
		ID:        id.String(),
		Text:      text,
		CreatedAt: idTime(id),
	}, nil
}

func idTime(id uuid.UUID) time.Time {
	sec, nsec := id.Time().UnixTime()
	return time.Unix(sec, nsec).UTC()
}

// NewID returns a fresh, time-ordered todo identifier.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate todo id: %w", err)
	}
	return id.String(), nil
}

// ParseID normalizes an identifier supplied by a caller.
func ParseID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id.String(), nil
}

// Newer reports whether a was created after b. Canonical UUIDv7 strings
// compare in the same order as their bytes.
func Newer(a, b Todo) bool {
	return a.ID > b.ID
}
