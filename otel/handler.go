// Package otel exports the run lifecycle as OpenTelemetry spans.
package otel

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/smallnest/runstream/callbacks"
)

const tracerName = "github.com/smallnest/runstream/otel"

// Handler is a callback handler that opens one span per run. Child runs
// become child spans through the parent run id, streamed tokens become span
// events, and errors set the span status before ending it.
type Handler struct {
	callbacks.BaseHandler

	tracer trace.Tracer

	mu    sync.Mutex
	spans map[uuid.UUID]spanEntry
}

type spanEntry struct {
	ctx  context.Context
	span trace.Span
}

var _ callbacks.Handler = (*Handler)(nil)

// Option customizes a Handler.
type Option func(*Handler)

// WithTracerProvider sets the provider to open spans on. The default is the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Handler) { h.tracer = tp.Tracer(tracerName) }
}

// NewHandler creates an OpenTelemetry span handler.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		tracer: otel.GetTracerProvider().Tracer(tracerName),
		spans:  make(map[uuid.UUID]spanEntry),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) startSpan(ctx context.Context, kind string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, name string, serialized callbacks.Serialized) {
	h.mu.Lock()
	defer h.mu.Unlock()

	parentCtx := ctx
	if parentRunID != nil {
		if parent, ok := h.spans[*parentRunID]; ok {
			parentCtx = parent.ctx
		}
	}

	attrs := []attribute.KeyValue{
		attribute.String("run.id", runID.String()),
		attribute.String("run.kind", kind),
	}
	if len(tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("run.tags", tags))
	}

	spanCtx, span := h.tracer.Start(parentCtx,
		callbacks.ResolveName(name, serialized),
		trace.WithAttributes(attrs...),
	)
	h.spans[runID] = spanEntry{ctx: spanCtx, span: span}
}

func (h *Handler) takeSpan(runID uuid.UUID) (trace.Span, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.spans[runID]
	if !ok {
		return nil, &callbacks.UnknownRunError{RunID: runID}
	}
	delete(h.spans, runID)
	return entry.span, nil
}

func (h *Handler) endSpan(runID uuid.UUID) error {
	span, err := h.takeSpan(runID)
	if err != nil {
		return err
	}
	span.SetStatus(codes.Ok, "")
	span.End()
	return nil
}

func (h *Handler) failSpan(runID uuid.UUID, cause error) error {
	span, err := h.takeSpan(runID)
	if err != nil {
		return err
	}
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	span.End()
	return nil
}

func (h *Handler) OnLLMStart(ctx context.Context, serialized callbacks.Serialized, prompts []string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	h.startSpan(ctx, "llm", runID, parentRunID, tags, name, serialized)
	return nil
}

func (h *Handler) OnChatModelStart(ctx context.Context, serialized callbacks.Serialized, messages [][]callbacks.Message, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	h.startSpan(ctx, "chat_model", runID, parentRunID, tags, name, serialized)
	return nil
}

func (h *Handler) OnChainStart(ctx context.Context, serialized callbacks.Serialized, inputs map[string]any, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	h.startSpan(ctx, "chain", runID, parentRunID, tags, name, serialized)
	return nil
}

func (h *Handler) OnToolStart(ctx context.Context, serialized callbacks.Serialized, input string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	h.startSpan(ctx, "tool", runID, parentRunID, tags, name, serialized)
	return nil
}

func (h *Handler) OnRetrieverStart(ctx context.Context, serialized callbacks.Serialized, query string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	h.startSpan(ctx, "retriever", runID, parentRunID, tags, name, serialized)
	return nil
}

func (h *Handler) OnLLMNewToken(ctx context.Context, token string, chunk *callbacks.TokenChunk, runID uuid.UUID, parentRunID *uuid.UUID) error {
	h.mu.Lock()
	entry, ok := h.spans[runID]
	h.mu.Unlock()
	if !ok {
		return &callbacks.UnknownRunError{RunID: runID}
	}
	entry.span.AddEvent("token", trace.WithAttributes(attribute.String("token", token)))
	return nil
}

func (h *Handler) OnLLMEnd(ctx context.Context, output any, runID uuid.UUID) error {
	return h.endSpan(runID)
}

func (h *Handler) OnChainEnd(ctx context.Context, outputs map[string]any, runID uuid.UUID) error {
	return h.endSpan(runID)
}

func (h *Handler) OnToolEnd(ctx context.Context, output string, runID uuid.UUID) error {
	return h.endSpan(runID)
}

func (h *Handler) OnRetrieverEnd(ctx context.Context, documents []callbacks.Document, runID uuid.UUID) error {
	return h.endSpan(runID)
}

func (h *Handler) OnLLMError(ctx context.Context, err error, runID uuid.UUID) error {
	return h.failSpan(runID, err)
}

func (h *Handler) OnChainError(ctx context.Context, err error, runID uuid.UUID) error {
	return h.failSpan(runID, err)
}

func (h *Handler) OnToolError(ctx context.Context, err error, runID uuid.UUID) error {
	return h.failSpan(runID, err)
}

func (h *Handler) OnRetrieverError(ctx context.Context, err error, runID uuid.UUID) error {
	return h.failSpan(runID, err)
}
