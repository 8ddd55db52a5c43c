package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/smallnest/runstream/callbacks"
)

func newTestHandler(t *testing.T) (*Handler, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewHandler(WithTracerProvider(tp)), exporter
}

func TestHandler_SpanPerRun(t *testing.T) {
	ctx := context.Background()
	h, exporter := newTestHandler(t)

	runID := uuid.New()
	require.NoError(t, h.OnLLMStart(ctx, callbacks.Serialized{"name": "gpt"}, []string{"hi"}, runID, nil, []string{"prod"}, nil, ""))
	require.NoError(t, h.OnLLMNewToken(ctx, "He", nil, runID, nil))
	require.NoError(t, h.OnLLMEnd(ctx, "Hey", runID))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "gpt", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)

	require.Len(t, span.Events, 1)
	assert.Equal(t, "token", span.Events[0].Name)
}

func TestHandler_ParentLinkage(t *testing.T) {
	ctx := context.Background()
	h, exporter := newTestHandler(t)

	chainID, llmID := uuid.New(), uuid.New()
	require.NoError(t, h.OnChainStart(ctx, nil, nil, chainID, nil, nil, nil, "pipeline"))
	require.NoError(t, h.OnLLMStart(ctx, nil, []string{"hi"}, llmID, &chainID, nil, nil, "gpt"))
	require.NoError(t, h.OnLLMEnd(ctx, "out", llmID))
	require.NoError(t, h.OnChainEnd(ctx, nil, chainID))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	// Child span ends first, so it comes first in the export order.
	child, parent := spans[0], spans[1]
	assert.Equal(t, "gpt", child.Name)
	assert.Equal(t, "pipeline", parent.Name)
	assert.Equal(t, parent.SpanContext.SpanID(), child.Parent.SpanID())
	assert.Equal(t, parent.SpanContext.TraceID(), child.SpanContext.TraceID())
}

func TestHandler_ErrorStatus(t *testing.T) {
	ctx := context.Background()
	h, exporter := newTestHandler(t)

	runID := uuid.New()
	require.NoError(t, h.OnToolStart(ctx, nil, "in", runID, nil, nil, nil, "calc"))
	require.NoError(t, h.OnToolError(ctx, errors.New("boom"), runID))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)

	var found bool
	for _, ev := range spans[0].Events {
		if ev.Name == "exception" {
			found = true
		}
	}
	assert.True(t, found, "error should be recorded on the span")
}

func TestHandler_EndWithoutStart(t *testing.T) {
	h, _ := newTestHandler(t)

	err := h.OnChainEnd(context.Background(), nil, uuid.New())
	var unknown *callbacks.UnknownRunError
	assert.ErrorAs(t, err, &unknown)
}
