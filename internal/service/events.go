package service

import (
	"context"
	"time"

	"poststream/internal/events"
	"poststream/internal/middleware"
)

// emit hands an event to pub. Delivery failures never fail the write that
// produced the event.
func emit(ctx context.Context, pub events.Publisher, ev events.Event) {
	if pub == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := pub.Publish(ctx, ev); err != nil {
		middleware.Logger.DebugContext(ctx, "event not delivered", "subject", ev.Subject, "error", err)
	}
}
