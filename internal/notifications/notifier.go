// Package notifications delivers activity to the users it concerns.
package notifications

import (
	"context"
	"errors"
	"fmt"

	"poststream/internal/events"
	"poststream/internal/middleware"
	"poststream/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes notification payloads into per-user Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// UserChannel is the Redis channel carrying one profile's notifications.
func UserChannel(profileID uint) string {
	return fmt.Sprintf("notifications:user:%d", profileID)
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, profileID uint, payload []byte) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(profileID), payload).Err()
}

// Dispatcher fans a domain event out to the event bus and, when the event
// concerns someone other than its actor, to that user's notification channel.
type Dispatcher struct {
	bus      events.Publisher
	notifier *Notifier
}

// NewDispatcher builds a dispatcher. A nil bus publishes nothing to NATS.
func NewDispatcher(bus events.Publisher, notifier *Notifier) *Dispatcher {
	if bus == nil {
		bus = events.NopPublisher{}
	}
	return &Dispatcher{bus: bus, notifier: notifier}
}

// Publish never blocks the write path on delivery; failures are logged and counted.
func (d *Dispatcher) Publish(ctx context.Context, ev events.Event) error {
	var errs []error

	if err := d.bus.Publish(ctx, ev); err != nil {
		observability.EventPublishFailures.WithLabelValues("nats").Inc()
		errs = append(errs, fmt.Errorf("publish %s: %w", ev.Subject, err))
	}

	if ev.TargetProfileID != 0 && ev.TargetProfileID != ev.ActorID {
		payload, err := events.Encode(ev)
		if err == nil {
			err = d.notifier.PublishUser(ctx, ev.TargetProfileID, payload)
		}
		if err != nil {
			observability.EventPublishFailures.WithLabelValues("redis").Inc()
			errs = append(errs, fmt.Errorf("notify profile %d: %w", ev.TargetProfileID, err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "event delivery failed", "subject", ev.Subject, "error", err)
	}
	return err
}
