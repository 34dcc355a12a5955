package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/b-cal/apiserver/types"
	"github.com/google/uuid"
)

const exportContentType = "application/json"

// ObjectStore is the subset of object storage used for exports.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// ExportService writes JSON snapshots of a user's calendar to object
// storage. Keys are namespaced by owner, so one user can never read another
// user's export.
type ExportService struct {
	entries CalendarRepository
	objects ObjectStore
	events  EventPublisher
	now     func() time.Time
}

// NewExportService constructs the service. A nil objects store disables
// exports.
func NewExportService(entries CalendarRepository, objects ObjectStore, events EventPublisher) *ExportService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ExportService{entries: entries, objects: objects, events: events, now: time.Now}
}

// Enabled reports whether an object store is configured.
func (s *ExportService) Enabled() bool {
	return s != nil && s.objects != nil
}

// Export snapshots every entry of userID and returns the export ID.
func (s *ExportService) Export(ctx context.Context, userID string) (string, error) {
	if !s.Enabled() {
		return "", ErrExportsDisabled
	}
	entries, err := s.entries.List(ctx, userID, types.CalendarFilter{})
	if err != nil {
		return "", fmt.Errorf("list entries: %w", err)
	}

	doc := types.CalendarExport{
		ID:         uuid.NewString(),
		UserID:     userID,
		ExportedAt: s.now().UTC(),
		Entries:    entries,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}
	if err := s.objects.Put(ctx, exportKey(userID, doc.ID), bytes.NewReader(data), int64(len(data)), exportContentType); err != nil {
		return "", fmt.Errorf("store export: %w", err)
	}
	s.events.Publish(ctx, Event{Type: EventExported, UserID: userID})
	return doc.ID, nil
}

// Open returns a reader over an export of userID. The caller closes it.
func (s *ExportService) Open(ctx context.Context, userID, exportID string) (io.ReadCloser, error) {
	if !s.Enabled() {
		return nil, ErrExportsDisabled
	}
	if _, err := uuid.Parse(exportID); err != nil {
		return nil, ErrNotFound
	}
	key := exportKey(userID, exportID)
	exists, err := s.objects.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("stat export: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return s.objects.Get(ctx, key)
}

func exportKey(userID, exportID string) string {
	return path.Join("exports", userID, exportID+".json")
}
