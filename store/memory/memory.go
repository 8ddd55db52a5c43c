// Package memory provides an in-memory RecordStore for tests and
// single-process use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/smallnest/runstream/store"
)

// MemoryRecordStore implements store.RecordStore with a mutex-protected map.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*store.Record
}

var _ store.RecordStore = (*MemoryRecordStore)(nil)

// NewMemoryRecordStore creates an empty in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[uuid.UUID]*store.Record),
	}
}

// Save stores a record, replacing any earlier record with the same id.
func (s *MemoryRecordStore) Save(ctx context.Context, record *store.Record) error {
	clone := *record
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = &clone
	return nil
}

// Load retrieves a record by run id.
func (s *MemoryRecordStore) Load(ctx context.Context, id uuid.UUID) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	clone := *rec
	return &clone, nil
}

// List returns all records belonging to a root run, ordered by start time.
func (s *MemoryRecordStore) List(ctx context.Context, rootID uuid.UUID) ([]*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*store.Record
	for _, rec := range s.records {
		if rec.RootID == rootID {
			clone := *rec
			records = append(records, &clone)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records, nil
}

// Delete removes a record. Deleting an absent record is not an error.
func (s *MemoryRecordStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Clear removes all records belonging to a root run.
func (s *MemoryRecordStore) Clear(ctx context.Context, rootID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if rec.RootID == rootID {
			delete(s.records, id)
		}
	}
	return nil
}
