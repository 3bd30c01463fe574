// Package events carries change notifications from todo mutations to
// whoever watches the list: websocket clients through the in-process Hub
// and other services through NATS.
package events

import (
	"context"
	"errors"
	"time"
)

// Kind indicates what kind of change occurred.
type Kind string

const (
	KindAdded   Kind = "added"
	KindToggled Kind = "toggled"
	KindRenamed Kind = "renamed"
	KindDeleted Kind = "deleted"
	KindCleared Kind = "cleared"
)

// Change describes one committed mutation.
type Change struct {
	Kind         Kind      `json:"kind"`
	TodoID       string    `json:"todoId,omitempty"`
	DeletedCount int       `json:"deletedCount,omitempty"`
	At           time.Time `json:"at"`
}

// Publisher delivers change notifications.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Noop discards every change.
type Noop struct{}

func (Noop) Publish(context.Context, Change) error { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, change Change) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
