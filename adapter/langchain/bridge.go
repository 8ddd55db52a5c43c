// Package langchain bridges langchaingo callback notifications into a run
// tracking manager.
//
// langchaingo handlers receive no run identity, so the bridge keeps one
// stack per run kind and pairs each end or error notification with the most
// recently started run of that kind. Interleaved runs of the same kind on
// one bridge cannot be told apart; use one bridge per pipeline invocation.
package langchain

import (
	"context"
	"sync"

	lccallbacks "github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/smallnest/runstream/callbacks"
)

// Bridge implements langchaingo's callbacks.Handler on top of a Manager.
type Bridge struct {
	mgr *callbacks.Manager

	mu         sync.Mutex
	llms       []*callbacks.LLMRunManager
	chains     []*callbacks.ChainRunManager
	tools      []*callbacks.ToolRunManager
	retrievers []*callbacks.RetrieverRunManager
}

var _ lccallbacks.Handler = (*Bridge)(nil)

// NewBridge creates a bridge dispatching into the given manager.
func NewBridge(mgr *callbacks.Manager) *Bridge {
	return &Bridge{mgr: mgr}
}

// scope returns the manager new runs start under: the innermost open chain
// if one exists, the root manager otherwise.
func (b *Bridge) scope() *callbacks.Manager {
	if n := len(b.chains); n > 0 {
		return b.chains[n-1].GetChild()
	}
	return b.mgr
}

func (b *Bridge) HandleChainStart(ctx context.Context, inputs map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rm := b.scope().OnChainStart(ctx, nil, inputs, callbacks.WithName("chain"))
	b.chains = append(b.chains, rm)
}

func (b *Bridge) HandleChainEnd(ctx context.Context, outputs map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.chains); n > 0 {
		rm := b.chains[n-1]
		b.chains = b.chains[:n-1]
		rm.OnChainEnd(ctx, outputs)
	}
}

func (b *Bridge) HandleChainError(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.chains); n > 0 {
		rm := b.chains[n-1]
		b.chains = b.chains[:n-1]
		rm.OnChainError(ctx, err)
	}
}

func (b *Bridge) HandleLLMStart(ctx context.Context, prompts []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rm := b.scope().OnLLMStart(ctx, nil, prompts, callbacks.WithName("llm"))
	b.llms = append(b.llms, rm)
}

func (b *Bridge) HandleLLMGenerateContentStart(ctx context.Context, ms []llms.MessageContent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rm := b.scope().OnChatModelStart(ctx, nil, [][]callbacks.Message{convertMessages(ms)}, callbacks.WithName("chat_model"))
	b.llms = append(b.llms, rm)
}

func (b *Bridge) HandleLLMGenerateContentEnd(ctx context.Context, res *llms.ContentResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.llms); n > 0 {
		rm := b.llms[n-1]
		b.llms = b.llms[:n-1]
		rm.OnLLMEnd(ctx, contentText(res))
	}
}

func (b *Bridge) HandleLLMError(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.llms); n > 0 {
		rm := b.llms[n-1]
		b.llms = b.llms[:n-1]
		rm.OnLLMError(ctx, err)
	}
}

func (b *Bridge) HandleStreamingFunc(ctx context.Context, chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.llms); n > 0 {
		b.llms[n-1].OnLLMNewToken(ctx, string(chunk), nil)
	}
}

func (b *Bridge) HandleToolStart(ctx context.Context, input string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rm := b.scope().OnToolStart(ctx, nil, input, callbacks.WithName("tool"))
	b.tools = append(b.tools, rm)
}

func (b *Bridge) HandleToolEnd(ctx context.Context, output string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.tools); n > 0 {
		rm := b.tools[n-1]
		b.tools = b.tools[:n-1]
		rm.OnToolEnd(ctx, output)
	}
}

func (b *Bridge) HandleToolError(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.tools); n > 0 {
		rm := b.tools[n-1]
		b.tools = b.tools[:n-1]
		rm.OnToolError(ctx, err)
	}
}

func (b *Bridge) HandleRetrieverStart(ctx context.Context, query string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rm := b.scope().OnRetrieverStart(ctx, nil, query, callbacks.WithName("retriever"))
	b.retrievers = append(b.retrievers, rm)
}

func (b *Bridge) HandleRetrieverEnd(ctx context.Context, query string, documents []schema.Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.retrievers); n > 0 {
		rm := b.retrievers[n-1]
		b.retrievers = b.retrievers[:n-1]
		rm.OnRetrieverEnd(ctx, convertDocuments(documents))
	}
}

// HandleText carries no run semantics.
func (b *Bridge) HandleText(ctx context.Context, text string) {}

// Agent notifications have no counterpart in the run lifecycle.
func (b *Bridge) HandleAgentAction(ctx context.Context, action schema.AgentAction) {}

func (b *Bridge) HandleAgentFinish(ctx context.Context, finish schema.AgentFinish) {}

func convertMessages(ms []llms.MessageContent) []callbacks.Message {
	out := make([]callbacks.Message, 0, len(ms))
	for _, m := range ms {
		var text string
		for _, part := range m.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				text += tc.Text
			}
		}
		out = append(out, callbacks.Message{
			Role:    string(m.Role),
			Content: text,
		})
	}
	return out
}

func convertDocuments(docs []schema.Document) []callbacks.Document {
	out := make([]callbacks.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, callbacks.Document{
			PageContent: d.PageContent,
			Metadata:    d.Metadata,
		})
	}
	return out
}

func contentText(res *llms.ContentResponse) string {
	if res == nil || len(res.Choices) == 0 || res.Choices[0] == nil {
		return ""
	}
	return res.Choices[0].Content
}
