// Package events publishes domain events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"poststream/internal/middleware"

	"github.com/nats-io/nats.go"
)

// Subjects events are published on.
const (
	SubjectPostCreated     = "post.created"
	SubjectPostDeleted     = "post.deleted"
	SubjectPostCommented   = "post.commented"
	SubjectPostLiked       = "post.liked"
	SubjectPostRetweeted   = "post.retweeted"
	SubjectProfileFollowed = "profile.followed"
)

// Event is the payload of every domain event. TargetProfileID is the
// profile the event is about, such as the followee or the post author.
type Event struct {
	Subject         string    `json:"subject"`
	ActorID         uint      `json:"actor_id"`
	ActorUsername   string    `json:"actor_username"`
	TargetProfileID uint      `json:"target_profile_id,omitempty"`
	PostID          uint      `json:"post_id,omitempty"`
	CommentID       uint      `json:"comment_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Publisher delivers domain events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// NATSPublisher publishes events as JSON on their subject.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to NATS.
func NewNATSPublisher(cfg Config) (*NATSPublisher, error) {
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 10
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				middleware.Logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			middleware.Logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, ev Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	return p.conn.Publish(ev.Subject, data)
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Encode serializes an event, stamping OccurredAt when unset.
func Encode(ev Event) ([]byte, error) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	return json.Marshal(ev)
}

// Decode parses an event payload.
func Decode(data []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(data, &ev)
	return ev, err
}
