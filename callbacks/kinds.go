package callbacks

import "fmt"

// RunKind identifies the kind of work a run represents.
type RunKind int

const (
	// KindLLM is a completion-style LLM call
	KindLLM RunKind = iota

	// KindChatModel is a chat-model call
	KindChatModel

	// KindChain is a chain (or graph/agent step) invocation
	KindChain

	// KindTool is a tool invocation
	KindTool

	// KindRetriever is a retriever query
	KindRetriever
)

// String returns the wire-level name of the kind, matching the names used in
// published event types (on_llm_start, on_chat_model_stream, ...).
func (k RunKind) String() string {
	switch k {
	case KindLLM:
		return "llm"
	case KindChatModel:
		return "chat_model"
	case KindChain:
		return "chain"
	case KindTool:
		return "tool"
	case KindRetriever:
		return "retriever"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}
