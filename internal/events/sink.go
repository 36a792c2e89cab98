package events

import (
	"context"

	"github.com/aman-zulfiqar/minidex/internal/models"
)

// Sink receives committed pool events. Delivery is best-effort: a failing
// sink never affects the transition that produced the event.
type Sink interface {
	Publish(ctx context.Context, ev *models.PoolEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev *models.PoolEvent) error

func (f SinkFunc) Publish(ctx context.Context, ev *models.PoolEvent) error {
	return f(ctx, ev)
}
