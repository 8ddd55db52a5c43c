package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/runstream/callbacks"
)

// Handler is a callback handler that persists a Record for every run once
// it ends or errors. Starts are buffered in memory; nothing is written for
// a run that never finishes.
//
// Root attribution follows the parent chain through the buffered starts:
// a run whose parent is unknown (or absent) becomes its own root. All
// methods are safe for concurrent use.
type Handler struct {
	callbacks.BaseHandler

	store RecordStore

	mu      sync.Mutex
	pending map[uuid.UUID]*Record
}

var _ callbacks.Handler = (*Handler)(nil)

// NewHandler creates a persistence handler writing to the given store.
func NewHandler(store RecordStore) *Handler {
	return &Handler{
		store:   store,
		pending: make(map[uuid.UUID]*Record),
	}
}

// Pending returns the number of started runs not yet persisted.
func (h *Handler) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

func (h *Handler) start(kind string, input any, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string, serialized callbacks.Serialized) {
	rec := &Record{
		ID:        runID,
		RootID:    runID,
		Kind:      kind,
		Name:      callbacks.ResolveName(name, serialized),
		Tags:      tags,
		Metadata:  metadata,
		Input:     input,
		StartedAt: time.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if parentRunID != nil {
		id := *parentRunID
		rec.ParentID = &id
		if parent, ok := h.pending[id]; ok {
			rec.RootID = parent.RootID
		}
	}
	h.pending[runID] = rec
}

// finish pops the buffered start and persists it. An end without a start is
// caller misuse and is reported as an UnknownRunError.
func (h *Handler) finish(ctx context.Context, runID uuid.UUID, output any, errText string) error {
	h.mu.Lock()
	rec, ok := h.pending[runID]
	if ok {
		delete(h.pending, runID)
	}
	h.mu.Unlock()

	if !ok {
		return &callbacks.UnknownRunError{RunID: runID}
	}

	rec.Output = output
	rec.Error = errText
	rec.EndedAt = time.Now()
	return h.store.Save(ctx, rec)
}

func (h *Handler) OnLLMStart(ctx context.Context, serialized callbacks.Serialized, prompts []string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	h.start("llm", map[string]any{"prompts": prompts}, runID, parentRunID, tags, metadata, name, serialized)
	return nil
}

func (h *Handler) OnChatModelStart(ctx context.Context, serialized callbacks.Serialized, messages [][]callbacks.Message, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	h.start("chat_model", map[string]any{"messages": messages}, runID, parentRunID, tags, metadata, name, serialized)
	return nil
}

func (h *Handler) OnChainStart(ctx context.Context, serialized callbacks.Serialized, inputs map[string]any, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	h.start("chain", inputs, runID, parentRunID, tags, metadata, name, serialized)
	return nil
}

func (h *Handler) OnToolStart(ctx context.Context, serialized callbacks.Serialized, input string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	h.start("tool", input, runID, parentRunID, tags, metadata, name, serialized)
	return nil
}

func (h *Handler) OnRetrieverStart(ctx context.Context, serialized callbacks.Serialized, query string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	h.start("retriever", query, runID, parentRunID, tags, metadata, name, serialized)
	return nil
}

func (h *Handler) OnLLMEnd(ctx context.Context, output any, runID uuid.UUID) error {
	return h.finish(ctx, runID, output, "")
}

func (h *Handler) OnChainEnd(ctx context.Context, outputs map[string]any, runID uuid.UUID) error {
	return h.finish(ctx, runID, outputs, "")
}

func (h *Handler) OnToolEnd(ctx context.Context, output string, runID uuid.UUID) error {
	return h.finish(ctx, runID, output, "")
}

func (h *Handler) OnRetrieverEnd(ctx context.Context, documents []callbacks.Document, runID uuid.UUID) error {
	return h.finish(ctx, runID, documents, "")
}

func (h *Handler) OnLLMError(ctx context.Context, err error, runID uuid.UUID) error {
	return h.finish(ctx, runID, nil, err.Error())
}

func (h *Handler) OnChainError(ctx context.Context, err error, runID uuid.UUID) error {
	return h.finish(ctx, runID, nil, err.Error())
}

func (h *Handler) OnToolError(ctx context.Context, err error, runID uuid.UUID) error {
	return h.finish(ctx, runID, nil, err.Error())
}

func (h *Handler) OnRetrieverError(ctx context.Context, err error, runID uuid.UUID) error {
	return h.finish(ctx, runID, nil, err.Error())
}
