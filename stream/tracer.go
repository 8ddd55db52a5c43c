package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/runstream/callbacks"
)

// Tracer is the event-stream tracer: a callback handler translating every
// lifecycle call into an Event, filtered and published through a Bridge.
// One tracer serves one top-level streaming invocation and is always shared
// by pointer, so the filter and run registry are never duplicated by
// incidental copies.
type Tracer struct {
	callbacks.BaseHandler

	registry *callbacks.Registry
	filter   Filter
	bridge   *Bridge[Event]
}

var _ callbacks.Handler = (*Tracer)(nil)

// TracerOption customizes a Tracer.
type TracerOption func(*Tracer)

// WithFilter sets the root event filter.
func WithFilter(f Filter) TracerOption {
	return func(t *Tracer) { t.filter = f }
}

// WithMaxBuffered bounds the tracer's bridge buffer; sends block while the
// consumer lags. Zero keeps the default unbounded buffer.
func WithMaxBuffered(n int) TracerOption {
	return func(t *Tracer) { t.bridge = NewBridge[Event](n) }
}

// NewTracer creates an event-stream tracer.
func NewTracer(opts ...TracerOption) *Tracer {
	t := &Tracer{
		registry: callbacks.NewRegistry(),
		bridge:   NewBridge[Event](0),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Recv returns the next published event, in publication order. It returns
// ErrClosed after Close once all buffered events were delivered.
func (t *Tracer) Recv(ctx context.Context) (Event, error) {
	return t.bridge.Recv(ctx)
}

// Close closes the producer side of the tracer's bridge. Idempotent; the
// owner of the streamed run must call it (normally via Events) so consumer
// iteration always terminates.
func (t *Tracer) Close() {
	t.bridge.Close()
}

func (t *Tracer) publish(ctx context.Context, ev Event, runType string) error {
	if !t.filter.Include(ev, runType) {
		// Deliberate volume reduction: not buffered, not logged.
		return nil
	}
	if err := t.bridge.Send(ctx, ev); err != nil {
		if errors.Is(err, ErrClosed) {
			// Consumer is gone; late events are irrelevant.
			return nil
		}
		return err
	}
	return nil
}

func (t *Tracer) startRun(runID uuid.UUID, parentRunID *uuid.UUID, kind callbacks.RunKind, name string, tags []string, metadata map[string]any) error {
	return t.registry.Register(runID, callbacks.RunInfo{
		Name:      name,
		Kind:      kind,
		ParentID:  parentRunID,
		Tags:      tags,
		Metadata:  metadata,
		StartedAt: time.Now(),
	})
}

func (t *Tracer) event(name string, runID uuid.UUID, info callbacks.RunInfo, data EventData) Event {
	ev := Event{
		Event:     name,
		Data:      data,
		RunID:     runID.String(),
		Name:      info.Name,
		Tags:      info.Tags,
		Metadata:  info.Metadata,
		Timestamp: time.Now(),
	}
	if info.ParentID != nil {
		ev.ParentRunID = info.ParentID.String()
	}
	return ev
}

func (t *Tracer) OnLLMStart(ctx context.Context, serialized callbacks.Serialized, prompts []string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	resolved := callbacks.ResolveName(name, serialized)
	if err := t.startRun(runID, parentRunID, callbacks.KindLLM, resolved, tags, metadata); err != nil {
		return err
	}
	info, _ := t.registry.Lookup(runID)
	return t.publish(ctx, t.event(EventLLMStart, runID, info, EventData{
		Input: map[string]any{"prompts": prompts},
	}), "llm")
}

func (t *Tracer) OnChatModelStart(ctx context.Context, serialized callbacks.Serialized, messages [][]callbacks.Message, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	resolved := callbacks.ResolveName(name, serialized)
	if err := t.startRun(runID, parentRunID, callbacks.KindChatModel, resolved, tags, metadata); err != nil {
		return err
	}
	info, _ := t.registry.Lookup(runID)
	return t.publish(ctx, t.event(EventChatModelStart, runID, info, EventData{
		Input: map[string]any{"messages": messages},
	}), "chat_model")
}

func (t *Tracer) OnChainStart(ctx context.Context, serialized callbacks.Serialized, inputs map[string]any, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	resolved := callbacks.ResolveName(name, serialized)
	if err := t.startRun(runID, parentRunID, callbacks.KindChain, resolved, tags, metadata); err != nil {
		return err
	}
	info, _ := t.registry.Lookup(runID)
	var data EventData
	if inputs != nil {
		data.Input = inputs
	}
	return t.publish(ctx, t.event(EventChainStart, runID, info, data), "chain")
}

func (t *Tracer) OnToolStart(ctx context.Context, serialized callbacks.Serialized, input string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	resolved := callbacks.ResolveName(name, serialized)
	if err := t.startRun(runID, parentRunID, callbacks.KindTool, resolved, tags, metadata); err != nil {
		return err
	}
	info, _ := t.registry.Lookup(runID)
	return t.publish(ctx, t.event(EventToolStart, runID, info, EventData{
		Input: map[string]any{"input": input},
	}), "tool")
}

func (t *Tracer) OnRetrieverStart(ctx context.Context, serialized callbacks.Serialized, query string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	resolved := callbacks.ResolveName(name, serialized)
	if err := t.startRun(runID, parentRunID, callbacks.KindRetriever, resolved, tags, metadata); err != nil {
		return err
	}
	info, _ := t.registry.Lookup(runID)
	return t.publish(ctx, t.event(EventRetrieverStart, runID, info, EventData{
		Query: query,
	}), "retriever")
}

// OnLLMNewToken publishes on_llm_stream or on_chat_model_stream depending
// on the kind the run was started with; the two kinds share this callback.
func (t *Tracer) OnLLMNewToken(ctx context.Context, token string, chunk *callbacks.TokenChunk, runID uuid.UUID, parentRunID *uuid.UUID) error {
	info, err := t.registry.Lookup(runID)
	if err != nil {
		return fmt.Errorf("token event without a start event: %w", err)
	}

	var name string
	switch info.Kind {
	case callbacks.KindChatModel:
		name = EventChatModelStream
	case callbacks.KindLLM:
		name = EventLLMStream
	default:
		return fmt.Errorf("unexpected run kind for token event: %s", info.Kind)
	}

	return t.publish(ctx, t.event(name, runID, info, EventData{
		Token: token,
		Chunk: chunk,
	}), info.Kind.String())
}

func (t *Tracer) OnLLMEnd(ctx context.Context, output any, runID uuid.UUID) error {
	info, err := t.registry.Remove(runID)
	if err != nil {
		return err
	}

	name := EventLLMEnd
	if info.Kind == callbacks.KindChatModel {
		name = EventChatModelEnd
	}

	return t.publish(ctx, t.event(name, runID, info, EventData{
		Output: output,
	}), info.Kind.String())
}

func (t *Tracer) OnChainEnd(ctx context.Context, outputs map[string]any, runID uuid.UUID) error {
	info, err := t.registry.Remove(runID)
	if err != nil {
		return err
	}
	return t.publish(ctx, t.event(EventChainEnd, runID, info, EventData{
		Output: outputs,
	}), "chain")
}

func (t *Tracer) OnToolEnd(ctx context.Context, output string, runID uuid.UUID) error {
	info, err := t.registry.Remove(runID)
	if err != nil {
		return err
	}
	return t.publish(ctx, t.event(EventToolEnd, runID, info, EventData{
		Output: output,
	}), "tool")
}

func (t *Tracer) OnRetrieverEnd(ctx context.Context, documents []callbacks.Document, runID uuid.UUID) error {
	info, err := t.registry.Remove(runID)
	if err != nil {
		return err
	}
	return t.publish(ctx, t.event(EventRetrieverEnd, runID, info, EventData{
		Documents: documents,
	}), "retriever")
}

// Error callbacks close out the run's bookkeeping without publishing an
// event: the failure reaches the caller of the run directly, not through
// the event stream.

func (t *Tracer) OnLLMError(ctx context.Context, err error, runID uuid.UUID) error {
	_, rerr := t.registry.Remove(runID)
	return rerr
}

func (t *Tracer) OnChainError(ctx context.Context, err error, runID uuid.UUID) error {
	_, rerr := t.registry.Remove(runID)
	return rerr
}

func (t *Tracer) OnToolError(ctx context.Context, err error, runID uuid.UUID) error {
	_, rerr := t.registry.Remove(runID)
	return rerr
}

func (t *Tracer) OnRetrieverError(ctx context.Context, err error, runID uuid.UUID) error {
	_, rerr := t.registry.Remove(runID)
	return rerr
}

// OnRetry fails loudly: silently dropping retry telemetry would hide a
// capability gap the integrator must address.
func (t *Tracer) OnRetry(ctx context.Context, retry callbacks.RetryInfo, runID uuid.UUID) error {
	return fmt.Errorf("stream.Tracer does not implement on_retry (run %s)", runID)
}

// TapOutput forwards every chunk of in to the returned channel while also
// publishing each one as a _stream event for runID, letting a single
// produced sequence serve both the direct caller and the event-stream
// subscriber. The run must be live in the tracer; tapping an unknown run is
// a programming error and panics.
func TapOutput[T any](ctx context.Context, t *Tracer, runID uuid.UUID, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for chunk := range in {
			info, err := t.registry.Lookup(runID)
			if err != nil {
				panic(fmt.Sprintf("stream: tap of unknown run %s", runID))
			}
			_ = t.publish(ctx, t.event(
				"on_"+info.Kind.String()+"_stream",
				runID, info, EventData{Chunk: chunk},
			), info.Kind.String())

			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
