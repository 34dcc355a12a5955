package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/b-cal/apiserver/types"
)

// CalendarRepository defines owner-scoped persistence for calendar entries.
type CalendarRepository interface {
	List(ctx context.Context, userID string, filter types.CalendarFilter) ([]types.CalendarEntry, error)
	Get(ctx context.Context, userID, id string) (types.CalendarEntry, error)
	Create(ctx context.Context, entry types.CalendarEntry) (types.CalendarEntry, error)
	Update(ctx context.Context, entry types.CalendarEntry) (types.CalendarEntry, error)
	Delete(ctx context.Context, userID, id string) error
}

// CalendarService encapsulates calendar use-cases. Every call takes the
// owner's ID explicitly; entries of other users behave as if absent.
type CalendarService struct {
	repo   CalendarRepository
	events EventPublisher
}

func NewCalendarService(repo CalendarRepository, events EventPublisher) *CalendarService {
	if events == nil {
		events = NopPublisher{}
	}
	return &CalendarService{repo: repo, events: events}
}

func (s *CalendarService) List(ctx context.Context, userID string, filter types.CalendarFilter) ([]types.CalendarEntry, error) {
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return nil, fmt.Errorf("%w: startDate must be before or equal to endDate", ErrValidation)
	}
	return s.repo.List(ctx, userID, filter)
}

func (s *CalendarService) Get(ctx context.Context, userID, id string) (types.CalendarEntry, error) {
	return s.repo.Get(ctx, userID, id)
}

func (s *CalendarService) Create(ctx context.Context, userID string, entry types.CalendarEntry) (types.CalendarEntry, error) {
	entry.UserID = userID
	if err := validateEntry(entry.Title, entry.StartDate, entry.EndDate); err != nil {
		return types.CalendarEntry{}, err
	}
	created, err := s.repo.Create(ctx, entry)
	if err != nil {
		return types.CalendarEntry{}, err
	}
	s.events.Publish(ctx, Event{Type: EventEntryCreated, UserID: userID, EntryID: created.ID})
	return created, nil
}

// Update applies patch to the stored entry. Fields absent from patch keep
// their stored value, and the date range is checked on the merged result.
func (s *CalendarService) Update(ctx context.Context, userID, id string, patch types.CalendarEntryPatch) (types.CalendarEntry, error) {
	existing, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return types.CalendarEntry{}, err
	}

	merged := existing
	if patch.Title != nil {
		merged.Title = *patch.Title
	}
	if patch.StartDate != nil {
		merged.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		merged.EndDate = *patch.EndDate
	}
	if patch.Content != nil {
		content := *patch.Content
		merged.Content = &content
	}
	if err := validateEntry(merged.Title, merged.StartDate, merged.EndDate); err != nil {
		return types.CalendarEntry{}, err
	}

	updated, err := s.repo.Update(ctx, merged)
	if err != nil {
		return types.CalendarEntry{}, err
	}
	s.events.Publish(ctx, Event{Type: EventEntryUpdated, UserID: userID, EntryID: id})
	return updated, nil
}

func (s *CalendarService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.events.Publish(ctx, Event{Type: EventEntryDeleted, UserID: userID, EntryID: id})
	return nil
}

func validateEntry(title string, start, end time.Time) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: startDate and endDate are required", ErrValidation)
	}
	if start.After(end) {
		return fmt.Errorf("%w: startDate must be before or equal to endDate", ErrValidation)
	}
	return nil
}
