package callbacks

import (
	"context"

	"github.com/google/uuid"
)

// Handler is the capability set an observer may implement. Every method has
// a no-op default via BaseHandler, so concrete handlers embed BaseHandler
// and override only what they care about.
//
// A returned error (or a panic) never aborts the observed run: the manager
// isolates it, logs it, and keeps invoking the remaining handlers.
// Handlers must not assume ordering guarantees beyond per-run lifecycle
// order (start before tokens before end/error).
type Handler interface {
	// OnLLMStart runs when a completion-style LLM call starts.
	OnLLMStart(ctx context.Context, serialized Serialized, prompts []string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error

	// OnChatModelStart runs when a chat-model call starts.
	OnChatModelStart(ctx context.Context, serialized Serialized, messages [][]Message, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error

	// OnChainStart runs when a chain invocation starts.
	OnChainStart(ctx context.Context, serialized Serialized, inputs map[string]any, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error

	// OnToolStart runs when a tool invocation starts.
	OnToolStart(ctx context.Context, serialized Serialized, input string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error

	// OnRetrieverStart runs when a retriever query starts.
	OnRetrieverStart(ctx context.Context, serialized Serialized, query string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error

	// OnLLMNewToken runs for each streamed token of an LLM or chat-model
	// run. Only invoked when streaming is enabled upstream.
	OnLLMNewToken(ctx context.Context, token string, chunk *TokenChunk, runID uuid.UUID, parentRunID *uuid.UUID) error

	// OnLLMEnd runs when an LLM or chat-model run completes.
	OnLLMEnd(ctx context.Context, output any, runID uuid.UUID) error

	// OnChainEnd runs when a chain run completes.
	OnChainEnd(ctx context.Context, outputs map[string]any, runID uuid.UUID) error

	// OnToolEnd runs when a tool run completes.
	OnToolEnd(ctx context.Context, output string, runID uuid.UUID) error

	// OnRetrieverEnd runs when a retriever run completes.
	OnRetrieverEnd(ctx context.Context, documents []Document, runID uuid.UUID) error

	// OnLLMError runs when an LLM or chat-model run fails.
	OnLLMError(ctx context.Context, err error, runID uuid.UUID) error

	// OnChainError runs when a chain run fails.
	OnChainError(ctx context.Context, err error, runID uuid.UUID) error

	// OnToolError runs when a tool run fails.
	OnToolError(ctx context.Context, err error, runID uuid.UUID) error

	// OnRetrieverError runs when a retriever run fails.
	OnRetrieverError(ctx context.Context, err error, runID uuid.UUID) error

	// OnRetry runs when the underlying computation retries.
	OnRetry(ctx context.Context, retry RetryInfo, runID uuid.UUID) error

	// IgnoreLLM reports whether LLM and chat-model events should be
	// skipped for this handler.
	IgnoreLLM() bool

	// IgnoreChain reports whether chain events should be skipped.
	IgnoreChain() bool

	// IgnoreTool reports whether tool events should be skipped.
	IgnoreTool() bool

	// IgnoreRetriever reports whether retriever events should be skipped.
	IgnoreRetriever() bool
}

// BaseHandler is a no-op implementation of Handler. Embed it to implement
// only a subset of the capability set.
type BaseHandler struct{}

var _ Handler = BaseHandler{}

func (BaseHandler) OnLLMStart(ctx context.Context, serialized Serialized, prompts []string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	return nil
}

func (BaseHandler) OnChatModelStart(ctx context.Context, serialized Serialized, messages [][]Message, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	return nil
}

func (BaseHandler) OnChainStart(ctx context.Context, serialized Serialized, inputs map[string]any, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	return nil
}

func (BaseHandler) OnToolStart(ctx context.Context, serialized Serialized, input string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	return nil
}

func (BaseHandler) OnRetrieverStart(ctx context.Context, serialized Serialized, query string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	return nil
}

func (BaseHandler) OnLLMNewToken(ctx context.Context, token string, chunk *TokenChunk, runID uuid.UUID, parentRunID *uuid.UUID) error {
	return nil
}

func (BaseHandler) OnLLMEnd(ctx context.Context, output any, runID uuid.UUID) error {
	return nil
}

func (BaseHandler) OnChainEnd(ctx context.Context, outputs map[string]any, runID uuid.UUID) error {
	return nil
}

func (BaseHandler) OnToolEnd(ctx context.Context, output string, runID uuid.UUID) error {
	return nil
}

func (BaseHandler) OnRetrieverEnd(ctx context.Context, documents []Document, runID uuid.UUID) error {
	return nil
}

func (BaseHandler) OnLLMError(ctx context.Context, err error, runID uuid.UUID) error {
	return nil
}

func (BaseHandler) OnChainError(ctx context.Context, err error, runID uuid.UUID) error {
	return nil
}

func (BaseHandler) OnToolError(ctx context.Context, err error, runID uuid.UUID) error {
	return nil
}

func (BaseHandler) OnRetrieverError(ctx context.Context, err error, runID uuid.UUID) error {
	return nil
}

func (BaseHandler) OnRetry(ctx context.Context, retry RetryInfo, runID uuid.UUID) error {
	return nil
}

func (BaseHandler) IgnoreLLM() bool { return false }

func (BaseHandler) IgnoreChain() bool { return false }

func (BaseHandler) IgnoreTool() bool { return false }

func (BaseHandler) IgnoreRetriever() bool { return false }
