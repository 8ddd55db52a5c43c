// Package openai instruments a go-openai client with run lifecycle
// callbacks: every completion call becomes a chat model run, streamed
// deltas become token notifications.
package openai

import (
	"context"
	"errors"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/smallnest/runstream/callbacks"
)

// ChatClient wraps an openai.Client so that completion calls report their
// lifecycle to a callback manager.
type ChatClient struct {
	client *openai.Client
	mgr    *callbacks.Manager
}

// NewChatClient creates an instrumented chat client.
func NewChatClient(client *openai.Client, mgr *callbacks.Manager) *ChatClient {
	return &ChatClient{client: client, mgr: mgr}
}

// CreateChatCompletion performs a completion call wrapped in a chat model
// run: start before the request, end with the response text, error on
// failure.
func (c *ChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	rm := c.mgr.OnChatModelStart(ctx,
		callbacks.Serialized{"model": req.Model},
		[][]callbacks.Message{convertMessages(req.Messages)},
		callbacks.WithName(req.Model),
	)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		rm.OnLLMError(ctx, err)
		return resp, err
	}

	rm.OnLLMEnd(ctx, responseText(resp))
	return resp, nil
}

// OnDelta receives each streamed content delta as it arrives.
type OnDelta func(delta string) error

// CreateChatCompletionStream performs a streaming completion call. Every
// content delta is reported as a token and forwarded to onDelta; the run
// ends with the accumulated text. The returned string is the full response
// content.
func (c *ChatClient) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest, onDelta OnDelta) (string, error) {
	rm := c.mgr.OnChatModelStart(ctx,
		callbacks.Serialized{"model": req.Model},
		[][]callbacks.Message{convertMessages(req.Messages)},
		callbacks.WithName(req.Model),
	)

	req.Stream = true
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		rm.OnLLMError(ctx, err)
		return "", err
	}
	defer stream.Close()

	var full string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			rm.OnLLMError(ctx, err)
			return full, err
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full += delta

		rm.OnLLMNewToken(ctx, delta, &callbacks.TokenChunk{Text: delta})
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				rm.OnLLMError(ctx, err)
				return full, err
			}
		}
	}

	rm.OnLLMEnd(ctx, full)
	return full, nil
}

func convertMessages(msgs []openai.ChatCompletionMessage) []callbacks.Message {
	out := make([]callbacks.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, callbacks.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}

func responseText(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}
