package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is wrapped by Load when no record exists for the given id.
var ErrNotFound = errors.New("record not found")

// Record represents one finished run: a start event paired with its end or
// error event, plus everything observed in between.
type Record struct {
	ID       uuid.UUID  `json:"id"`
	RootID   uuid.UUID  `json:"root_id"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`

	Kind     string         `json:"kind"`
	Name     string         `json:"name"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	Input  any    `json:"input,omitempty"`
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Failed reports whether the run ended with an error.
func (r *Record) Failed() bool {
	return r.Error != ""
}

// Duration returns how long the run took.
func (r *Record) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// RecordStore defines the interface for run record persistence
type RecordStore interface {
	// Save stores a record, replacing any earlier record with the same id
	Save(ctx context.Context, record *Record) error

	// Load retrieves a record by run id
	Load(ctx context.Context, id uuid.UUID) (*Record, error)

	// List returns all records belonging to a root run, ordered by start time
	List(ctx context.Context, rootID uuid.UUID) ([]*Record, error)

	// Delete removes a record
	Delete(ctx context.Context, id uuid.UUID) error

	// Clear removes all records belonging to a root run
	Clear(ctx context.Context, rootID uuid.UUID) error
}
