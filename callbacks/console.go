package callbacks

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

// ConsoleHandler prints every lifecycle event it observes, one styled line
// per event. Configure appends one automatically in verbose mode.
type ConsoleHandler struct {
	BaseHandler

	mu  sync.Mutex
	out io.Writer

	startStyle lipgloss.Style
	endStyle   lipgloss.Style
	errStyle   lipgloss.Style
	tokenStyle lipgloss.Style
	idStyle    lipgloss.Style
}

var _ Handler = (*ConsoleHandler)(nil)

// NewConsoleHandler creates a console handler writing to stdout.
func NewConsoleHandler() *ConsoleHandler {
	return NewConsoleHandlerWithWriter(os.Stdout)
}

// NewConsoleHandlerWithWriter creates a console handler writing to out.
// A nil writer falls back to stdout.
func NewConsoleHandlerWithWriter(out io.Writer) *ConsoleHandler {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleHandler{
		out:        out,
		startStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		endStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		errStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		tokenStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		idStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (c *ConsoleHandler) printf(style lipgloss.Style, runID uuid.UUID, format string, v ...any) {
	line := style.Render(fmt.Sprintf(format, v...))
	id := c.idStyle.Render(shortID(runID))

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", id, line)
}

func shortID(id uuid.UUID) string {
	s := id.String()
	return s[:8]
}

func (c *ConsoleHandler) OnLLMStart(ctx context.Context, serialized Serialized, prompts []string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	c.printf(c.startStyle, runID, "llm start %s prompts=%d", displayName(name, serialized), len(prompts))
	return nil
}

func (c *ConsoleHandler) OnChatModelStart(ctx context.Context, serialized Serialized, messages [][]Message, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	c.printf(c.startStyle, runID, "chat model start %s batches=%d", displayName(name, serialized), len(messages))
	return nil
}

func (c *ConsoleHandler) OnChainStart(ctx context.Context, serialized Serialized, inputs map[string]any, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	c.printf(c.startStyle, runID, "chain start %s", displayName(name, serialized))
	return nil
}

func (c *ConsoleHandler) OnToolStart(ctx context.Context, serialized Serialized, input string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	c.printf(c.startStyle, runID, "tool start %s input=%q", displayName(name, serialized), input)
	return nil
}

func (c *ConsoleHandler) OnRetrieverStart(ctx context.Context, serialized Serialized, query string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string) error {
	c.printf(c.startStyle, runID, "retriever start %s query=%q", displayName(name, serialized), query)
	return nil
}

func (c *ConsoleHandler) OnLLMNewToken(ctx context.Context, token string, chunk *TokenChunk, runID uuid.UUID, parentRunID *uuid.UUID) error {
	c.printf(c.tokenStyle, runID, "token %q", token)
	return nil
}

func (c *ConsoleHandler) OnLLMEnd(ctx context.Context, output any, runID uuid.UUID) error {
	c.printf(c.endStyle, runID, "llm end")
	return nil
}

func (c *ConsoleHandler) OnChainEnd(ctx context.Context, outputs map[string]any, runID uuid.UUID) error {
	c.printf(c.endStyle, runID, "chain end")
	return nil
}

func (c *ConsoleHandler) OnToolEnd(ctx context.Context, output string, runID uuid.UUID) error {
	c.printf(c.endStyle, runID, "tool end output=%q", output)
	return nil
}

func (c *ConsoleHandler) OnRetrieverEnd(ctx context.Context, documents []Document, runID uuid.UUID) error {
	c.printf(c.endStyle, runID, "retriever end documents=%d", len(documents))
	return nil
}

func (c *ConsoleHandler) OnLLMError(ctx context.Context, err error, runID uuid.UUID) error {
	c.printf(c.errStyle, runID, "llm error: %v", err)
	return nil
}

func (c *ConsoleHandler) OnChainError(ctx context.Context, err error, runID uuid.UUID) error {
	c.printf(c.errStyle, runID, "chain error: %v", err)
	return nil
}

func (c *ConsoleHandler) OnToolError(ctx context.Context, err error, runID uuid.UUID) error {
	c.printf(c.errStyle, runID, "tool error: %v", err)
	return nil
}

func (c *ConsoleHandler) OnRetrieverError(ctx context.Context, err error, runID uuid.UUID) error {
	c.printf(c.errStyle, runID, "retriever error: %v", err)
	return nil
}

func (c *ConsoleHandler) OnRetry(ctx context.Context, retry RetryInfo, runID uuid.UUID) error {
	c.printf(c.errStyle, runID, "retry attempt=%d idle=%s err=%v", retry.Attempt, retry.IdleFor, retry.Err)
	return nil
}

func displayName(name string, serialized Serialized) string {
	return ResolveName(name, serialized)
}
