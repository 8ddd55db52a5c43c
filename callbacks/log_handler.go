package callbacks

import (
	"context"

	"github.com/google/uuid"

	"github.com/smallnest/runstream/log"
)

// LogHandler reports run lifecycle transitions through the log facade.
// Starts and ends log at debug, errors at error level.
type LogHandler struct {
	BaseHandler

	logger log.Logger
}

var _ Handler = (*LogHandler)(nil)

// NewLogHandler creates a handler logging through the given logger. A nil
// logger uses the package default.
func NewLogHandler(logger log.Logger) *LogHandler {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &LogHandler{logger: logger}
}

func (l *LogHandler) OnLLMStart(ctx context.Context, serialized Serialized, prompts []string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	l.logger.Debug("llm run %s started name=%s prompts=%d", runID, ResolveName(name, serialized), len(prompts))
	return nil
}

func (l *LogHandler) OnChatModelStart(ctx context.Context, serialized Serialized, messages [][]Message, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	l.logger.Debug("chat model run %s started name=%s batches=%d", runID, ResolveName(name, serialized), len(messages))
	return nil
}

func (l *LogHandler) OnChainStart(ctx context.Context, serialized Serialized, inputs map[string]any, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	l.logger.Debug("chain run %s started name=%s", runID, ResolveName(name, serialized))
	return nil
}

func (l *LogHandler) OnToolStart(ctx context.Context, serialized Serialized, input string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	l.logger.Debug("tool run %s started name=%s", runID, ResolveName(name, serialized))
	return nil
}

func (l *LogHandler) OnRetrieverStart(ctx context.Context, serialized Serialized, query string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	l.logger.Debug("retriever run %s started name=%s query=%q", runID, ResolveName(name, serialized), query)
	return nil
}

func (l *LogHandler) OnLLMEnd(ctx context.Context, output any, runID uuid.UUID) error {
	l.logger.Debug("llm run %s ended", runID)
	return nil
}

func (l *LogHandler) OnChainEnd(ctx context.Context, outputs map[string]any, runID uuid.UUID) error {
	l.logger.Debug("chain run %s ended", runID)
	return nil
}

func (l *LogHandler) OnToolEnd(ctx context.Context, output string, runID uuid.UUID) error {
	l.logger.Debug("tool run %s ended", runID)
	return nil
}

func (l *LogHandler) OnRetrieverEnd(ctx context.Context, documents []Document, runID uuid.UUID) error {
	l.logger.Debug("retriever run %s ended documents=%d", runID, len(documents))
	return nil
}

func (l *LogHandler) OnLLMError(ctx context.Context, err error, runID uuid.UUID) error {
	l.logger.Error("llm run %s failed: %v", runID, err)
	return nil
}

func (l *LogHandler) OnChainError(ctx context.Context, err error, runID uuid.UUID) error {
	l.logger.Error("chain run %s failed: %v", runID, err)
	return nil
}

func (l *LogHandler) OnToolError(ctx context.Context, err error, runID uuid.UUID) error {
	l.logger.Error("tool run %s failed: %v", runID, err)
	return nil
}

func (l *LogHandler) OnRetrieverError(ctx context.Context, err error, runID uuid.UUID) error {
	l.logger.Error("retriever run %s failed: %v", runID, err)
	return nil
}

func (l *LogHandler) OnRetry(ctx context.Context, retry RetryInfo, runID uuid.UUID) error {
	l.logger.Warn("run %s retrying attempt=%d idle=%s err=%v", runID, retry.Attempt, retry.IdleFor, retry.Err)
	return nil
}
