// Package event is an in-process publish/subscribe bus used to fan out
// discovery progress, connectivity changes and settings updates.
package event

import (
	"context"
	"time"
)

// Event is a single message on the bus.
type Event struct {
	Topic     string
	Source    string
	Timestamp time.Time
	Payload   any
}

// Handler receives events. Handlers run on the publisher's goroutine for
// Publish and on a fresh goroutine for PublishAsync.
type Handler func(ctx context.Context, e Event)

// Publisher is the narrow interface producers depend on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	PublishAsync(ctx context.Context, e Event)
}

// Compile-time interface guard.
var _ Publisher = (*Bus)(nil)

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }
func (discard) PublishAsync(context.Context, Event)  {}
