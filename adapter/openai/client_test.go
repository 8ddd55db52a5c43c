package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/runstream/callbacks"
)

type lifecycleRecorder struct {
	callbacks.BaseHandler
	mu     sync.Mutex
	starts [][][]callbacks.Message
	tokens []string
	ends   []any
	errs   []error
}

func (h *lifecycleRecorder) OnChatModelStart(ctx context.Context, serialized callbacks.Serialized, messages [][]callbacks.Message, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts = append(h.starts, messages)
	return nil
}

func (h *lifecycleRecorder) OnLLMNewToken(ctx context.Context, token string, chunk *callbacks.TokenChunk, runID uuid.UUID, parentRunID *uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tokens = append(h.tokens, token)
	return nil
}

func (h *lifecycleRecorder) OnLLMEnd(ctx context.Context, output any, runID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ends = append(h.ends, output)
	return nil
}

func (h *lifecycleRecorder) OnLLMError(ctx context.Context, err error, runID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*ChatClient, *lifecycleRecorder) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"

	rec := &lifecycleRecorder{}
	return NewChatClient(openai.NewClientWithConfig(cfg), callbacks.NewManager(rec)), rec
}

func TestChatClient_CreateChatCompletion(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := openai.ChatCompletionResponse{
			ID:    "cmpl-1",
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "Hello"}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	resp, err := client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Model: "gpt-4o-mini",
		Messages: []openai.ChatCompletionMessage{
			{Role: "user", Content: "hi"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Choices[0].Message.Content)

	require.Len(t, rec.starts, 1)
	assert.Equal(t, [][]callbacks.Message{{{Role: "user", Content: "hi"}}}, rec.starts[0])
	require.Len(t, rec.ends, 1)
	assert.Equal(t, "Hello", rec.ends[0])
	assert.Empty(t, rec.errs)
}

func TestChatClient_CreateChatCompletionError(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusServiceUnavailable)
	})

	_, err := client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []openai.ChatCompletionMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)

	require.Len(t, rec.errs, 1)
	assert.Empty(t, rec.ends)
}

func TestChatClient_CreateChatCompletionStream(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Hel", "lo"} {
			chunk := openai.ChatCompletionStreamResponse{
				ID:    "cmpl-1",
				Model: "gpt-4o-mini",
				Choices: []openai.ChatCompletionStreamChoice{
					{Delta: openai.ChatCompletionStreamChoiceDelta{Content: delta}},
				},
			}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var forwarded []string
	full, err := client.CreateChatCompletionStream(context.Background(), openai.ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []openai.ChatCompletionMessage{{Role: "user", Content: "greet"}},
	}, func(delta string) error {
		forwarded = append(forwarded, delta)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", full)
	assert.Equal(t, []string{"Hel", "lo"}, forwarded)

	assert.Equal(t, []string{"Hel", "lo"}, rec.tokens)
	require.Len(t, rec.ends, 1)
	assert.Equal(t, "Hello", rec.ends[0])
}

func TestChatClient_StreamWorksWithoutDeltaCallback(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunk := openai.ChatCompletionStreamResponse{
			Choices: []openai.ChatCompletionStreamChoice{
				{Delta: openai.ChatCompletionStreamChoiceDelta{Content: "ok"}},
			},
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	full, err := client.CreateChatCompletionStream(context.Background(), openai.ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []openai.ChatCompletionMessage{{Role: "user", Content: "hi"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", full)
	assert.Equal(t, []string{"ok"}, rec.tokens)
}
