package callbacks

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunInfo holds the live metadata of a run for the duration of its lifecycle.
type RunInfo struct {
	// Name is the resolved display name of the component being run
	Name string

	// Kind is the kind of run (llm, chat_model, chain, tool, retriever)
	Kind RunKind

	// ParentID is the id of the enclosing run, nil for a root run
	ParentID *uuid.UUID

	// Tags is the ordered tag list; duplicates are allowed
	Tags []string

	// Metadata is arbitrary key/value context attached at start time
	Metadata map[string]any

	// StartedAt is when the run was registered
	StartedAt time.Time
}

// Registry maps live run ids to their metadata. Entries exist from the
// run's start event until its end or error event. All methods are safe for
// concurrent use.
type Registry struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]RunInfo
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		runs: make(map[uuid.UUID]RunInfo),
	}
}

// Register inserts a new live run. It returns a DuplicateRunError if the id
// is already registered; an id may only be reused after the earlier run was
// removed.
func (r *Registry) Register(runID uuid.UUID, info RunInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[runID]; ok {
		return &DuplicateRunError{RunID: runID}
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}
	r.runs[runID] = info
	return nil
}

// Lookup returns the metadata of a live run. It returns an UnknownRunError
// if the id is not registered.
func (r *Registry) Lookup(runID uuid.UUID) (RunInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.runs[runID]
	if !ok {
		return RunInfo{}, &UnknownRunError{RunID: runID}
	}
	return info, nil
}

// Remove deletes a live run and returns its metadata. It returns an
// UnknownRunError if the id is not registered, which is how a duplicate
// end/error call surfaces.
func (r *Registry) Remove(runID uuid.UUID) (RunInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.runs[runID]
	if !ok {
		return RunInfo{}, &UnknownRunError{RunID: runID}
	}
	delete(r.runs, runID)
	return info, nil
}

// Len returns the number of live runs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}
