package types

import "time"

// CalendarEntry is a time-bounded event owned by a single user.
type CalendarEntry struct {
	// ID is the unique identifier of the entry.
	ID string `json:"id" db:"id"`

	// UserID references the owner. It never changes after creation.
	UserID string `json:"userId" db:"user_id"`

	Title     string    `json:"title" db:"title"`
	StartDate time.Time `json:"startDate" db:"start_date"`
	EndDate   time.Time `json:"endDate" db:"end_date"`

	// Content is an optional free-form description.
	Content *string `json:"content" db:"content"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// CalendarEntryPatch lists the fields of a partial update. Nil fields keep
// their stored value.
type CalendarEntryPatch struct {
	Title     *string
	StartDate *time.Time
	EndDate   *time.Time
	Content   *string
}

// CalendarFilter restricts a listing to entries overlapping the range. Either
// bound may be nil.
type CalendarFilter struct {
	// StartDate keeps entries that end at or after it.
	StartDate *time.Time
	// EndDate keeps entries that start at or before it.
	EndDate *time.Time
}

// CalendarExport is the snapshot document written to object storage.
type CalendarExport struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	ExportedAt time.Time       `json:"exportedAt"`
	Entries    []CalendarEntry `json:"entries"`
}
