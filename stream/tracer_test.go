package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/runstream/callbacks"
)

func recvAll(t *testing.T, tr *Tracer) []Event {
	t.Helper()
	tr.Close()
	var out []Event
	for {
		ev, err := tr.Recv(context.Background())
		if err != nil {
			require.ErrorIs(t, err, ErrClosed)
			return out
		}
		out = append(out, ev)
	}
}

func TestTracer_LLMLifecycle(t *testing.T) {
	ctx := context.Background()
	tr := NewTracer()
	runID := uuid.New()

	require.NoError(t, tr.OnLLMStart(ctx, callbacks.Serialized{"name": "gpt"}, []string{"hi"}, runID, nil, []string{"prod"}, map[string]any{"k": "v"}, ""))
	require.NoError(t, tr.OnLLMNewToken(ctx, "He", nil, runID, nil))
	require.NoError(t, tr.OnLLMNewToken(ctx, "y", nil, runID, nil))
	require.NoError(t, tr.OnLLMEnd(ctx, "Hey", runID))

	events := recvAll(t, tr)
	require.Len(t, events, 4)

	assert.Equal(t, EventLLMStart, events[0].Event)
	assert.Equal(t, "gpt", events[0].Name)
	assert.Equal(t, runID.String(), events[0].RunID)
	assert.Equal(t, []string{"prod"}, events[0].Tags)
	assert.Equal(t, map[string]any{"k": "v"}, events[0].Metadata)
	assert.Equal(t, map[string]any{"prompts": []string{"hi"}}, events[0].Data.Input)

	assert.Equal(t, EventLLMStream, events[1].Event)
	assert.Equal(t, "He", events[1].Data.Token)
	assert.Equal(t, EventLLMStream, events[2].Event)
	assert.Equal(t, "y", events[2].Data.Token)

	assert.Equal(t, EventLLMEnd, events[3].Event)
	assert.Equal(t, "Hey", events[3].Data.Output)
}

func TestTracer_ChatModelTokensUseChatModelEvents(t *testing.T) {
	ctx := context.Background()
	tr := NewTracer()
	runID := uuid.New()

	msgs := [][]callbacks.Message{{{Role: "user", Content: "hi"}}}
	require.NoError(t, tr.OnChatModelStart(ctx, nil, msgs, runID, nil, nil, nil, "chat"))
	require.NoError(t, tr.OnLLMNewToken(ctx, "ok", nil, runID, nil))
	require.NoError(t, tr.OnLLMEnd(ctx, "ok", runID))

	events := recvAll(t, tr)
	require.Len(t, events, 3)
	assert.Equal(t, EventChatModelStart, events[0].Event)
	assert.Equal(t, EventChatModelStream, events[1].Event)
	assert.Equal(t, EventChatModelEnd, events[2].Event)
}

func TestTracer_TokenWithoutStart(t *testing.T) {
	tr := NewTracer()
	err := tr.OnLLMNewToken(context.Background(), "x", nil, uuid.New(), nil)
	require.Error(t, err)

	var unknown *callbacks.UnknownRunError
	assert.ErrorAs(t, err, &unknown)
}

func TestTracer_DuplicateStart(t *testing.T) {
	ctx := context.Background()
	tr := NewTracer()
	runID := uuid.New()

	require.NoError(t, tr.OnChainStart(ctx, nil, nil, runID, nil, nil, nil, "p"))
	err := tr.OnChainStart(ctx, nil, nil, runID, nil, nil, nil, "p")

	var dup *callbacks.DuplicateRunError
	assert.ErrorAs(t, err, &dup)
}

func TestTracer_EndTwice(t *testing.T) {
	ctx := context.Background()
	tr := NewTracer()
	runID := uuid.New()

	require.NoError(t, tr.OnChainStart(ctx, nil, nil, runID, nil, nil, nil, "p"))
	require.NoError(t, tr.OnChainEnd(ctx, nil, runID))

	var unknown *callbacks.UnknownRunError
	assert.ErrorAs(t, tr.OnChainEnd(ctx, nil, runID), &unknown)
}

func TestTracer_ErrorClosesRunWithoutEvent(t *testing.T) {
	ctx := context.Background()
	tr := NewTracer()
	runID := uuid.New()

	require.NoError(t, tr.OnToolStart(ctx, nil, "in", runID, nil, nil, nil, "calc"))
	require.NoError(t, tr.OnToolError(ctx, errors.New("boom"), runID))

	events := recvAll(t, tr)
	require.Len(t, events, 1)
	assert.Equal(t, EventToolStart, events[0].Event)

	// The run is gone; a second error report is caller misuse.
	var unknown *callbacks.UnknownRunError
	assert.ErrorAs(t, tr.OnToolError(ctx, errors.New("boom"), runID), &unknown)
}

func TestTracer_RetrieverLifecycle(t *testing.T) {
	ctx := context.Background()
	tr := NewTracer()
	runID := uuid.New()

	docs := []callbacks.Document{{PageContent: "fact"}}
	require.NoError(t, tr.OnRetrieverStart(ctx, nil, "q", runID, nil, nil, nil, "idx"))
	require.NoError(t, tr.OnRetrieverEnd(ctx, docs, runID))

	events := recvAll(t, tr)
	require.Len(t, events, 2)
	assert.Equal(t, "q", events[0].Data.Query)
	assert.Equal(t, docs, events[1].Data.Documents)
}

func TestTracer_FilterDropsSilently(t *testing.T) {
	ctx := context.Background()
	tr := NewTracer(WithFilter(Filter{IncludeTypes: []string{"llm"}}))

	chainID, llmID := uuid.New(), uuid.New()
	require.NoError(t, tr.OnChainStart(ctx, nil, nil, chainID, nil, nil, nil, "p"))
	require.NoError(t, tr.OnLLMStart(ctx, nil, []string{"hi"}, llmID, &chainID, nil, nil, "gpt"))
	require.NoError(t, tr.OnLLMEnd(ctx, "out", llmID))
	require.NoError(t, tr.OnChainEnd(ctx, nil, chainID))

	events := recvAll(t, tr)
	require.Len(t, events, 2)
	assert.Equal(t, EventLLMStart, events[0].Event)
	assert.Equal(t, EventLLMEnd, events[1].Event)
}

func TestTracer_OnRetryFailsLoudly(t *testing.T) {
	tr := NewTracer()
	err := tr.OnRetry(context.Background(), callbacks.RetryInfo{Attempt: 1}, uuid.New())
	assert.Error(t, err)
}

func TestTracer_SendAfterCloseIsNotAnError(t *testing.T) {
	ctx := context.Background()
	tr := NewTracer()
	runID := uuid.New()

	require.NoError(t, tr.OnChainStart(ctx, nil, nil, runID, nil, nil, nil, "p"))
	tr.Close()

	// Late lifecycle calls after the consumer left are dropped quietly.
	assert.NoError(t, tr.OnChainEnd(ctx, nil, runID))
}

func TestTapOutput(t *testing.T) {
	ctx := context.Background()
	tr := NewTracer()
	runID := uuid.New()
	require.NoError(t, tr.OnLLMStart(ctx, nil, []string{"hi"}, runID, nil, nil, nil, "gpt"))

	in := make(chan string, 2)
	in <- "Hel"
	in <- "lo"
	close(in)

	var forwarded []string
	for chunk := range TapOutput(ctx, tr, runID, in) {
		forwarded = append(forwarded, chunk)
	}
	assert.Equal(t, []string{"Hel", "lo"}, forwarded)

	require.NoError(t, tr.OnLLMEnd(ctx, "Hello", runID))

	events := recvAll(t, tr)
	require.Len(t, events, 4)
	assert.Equal(t, EventLLMStream, events[1].Event)
	assert.Equal(t, "Hel", events[1].Data.Chunk)
	assert.Equal(t, EventLLMStream, events[2].Event)
	assert.Equal(t, "lo", events[2].Data.Chunk)
}
