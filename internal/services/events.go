package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/b-cal/apiserver/internal/mq"
)

// Event types published on the events channel.
const (
	EventSignedUp     = "auth.signed_up"
	EventLoggedIn     = "auth.logged_in"
	EventRefreshed    = "auth.refreshed"
	EventLoggedOut    = "auth.logged_out"
	EventEntryCreated = "calendar.entry_created"
	EventEntryUpdated = "calendar.entry_updated"
	EventEntryDeleted = "calendar.entry_deleted"
	EventExported     = "calendar.exported"
)

// Event is the payload published for session and calendar changes. It never
// carries credentials.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	EntryID    string    `json:"entryId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventPublisher delivers events. Publishing is best effort: a failure never
// fails the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// MQPublisher publishes JSON-encoded events to a single channel.
type MQPublisher struct {
	queue   *mq.MQ
	channel string
	logger  *slog.Logger
}

func NewMQPublisher(queue *mq.MQ, channel string, logger *slog.Logger) *MQPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQPublisher{queue: queue, channel: channel, logger: logger}
}

func (p *MQPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "encode event failed", "type", event.Type, "err", err)
		return
	}
	id, err := p.queue.Publish(ctx, p.channel, data, map[string]string{"type": event.Type})
	if err != nil {
		p.logger.WarnContext(ctx, "publish event failed", "type", event.Type, "channel", p.channel, "err", err)
		return
	}
	p.logger.DebugContext(ctx, "event published", "type", event.Type, "id", id)
}
