package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/b-cal/apiserver/internal/mq"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
}

func (b *fakeBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.channel, b.data, b.attrs = channel, data, attrs
	return "msg-1", b.err
}

func (b *fakeBackend) Subscribe(context.Context, string, mq.Handler) error { return nil }

func (b *fakeBackend) Close() error { return nil }

func TestMQPublisherEncodesEvent(t *testing.T) {
	backend := &fakeBackend{}
	publisher := NewMQPublisher(mq.New(backend), "bcal.events", slog.New(slog.NewTextHandler(io.Discard, nil)))

	publisher.Publish(context.Background(), Event{Type: EventEntryCreated, UserID: "alice", EntryID: "entry-1"})

	require.Equal(t, "bcal.events", backend.channel)
	require.Equal(t, map[string]string{"type": EventEntryCreated}, backend.attrs)

	var got Event
	require.NoError(t, json.Unmarshal(backend.data, &got))
	require.Equal(t, EventEntryCreated, got.Type)
	require.Equal(t, "alice", got.UserID)
	require.Equal(t, "entry-1", got.EntryID)
	require.False(t, got.OccurredAt.IsZero())
}

func TestMQPublisherSwallowsBackendErrors(t *testing.T) {
	backend := &fakeBackend{err: errors.New("broker down")}
	publisher := NewMQPublisher(mq.New(backend), "bcal.events", slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NotPanics(t, func() {
		publisher.Publish(context.Background(), Event{Type: EventLoggedOut, UserID: "alice"})
	})
	require.NotEmpty(t, backend.data)
}
