package stream

import (
	"time"

	"github.com/smallnest/runstream/callbacks"
)

// Event type names as they appear in the published stream.
const (
	EventLLMStart        = "on_llm_start"
	EventLLMStream       = "on_llm_stream"
	EventLLMEnd          = "on_llm_end"
	EventChatModelStart  = "on_chat_model_start"
	EventChatModelStream = "on_chat_model_stream"
	EventChatModelEnd    = "on_chat_model_end"
	EventChainStart      = "on_chain_start"
	EventChainStream     = "on_chain_stream"
	EventChainEnd        = "on_chain_end"
	EventToolStart       = "on_tool_start"
	EventToolStream      = "on_tool_stream"
	EventToolEnd         = "on_tool_end"
	EventRetrieverStart  = "on_retriever_start"
	EventRetrieverStream = "on_retriever_stream"
	EventRetrieverEnd    = "on_retriever_end"
)

// Event is one immutable record of an observed lifecycle transition,
// published exactly once and never mutated afterwards.
type Event struct {
	// Event is the event type name, e.g. "on_chat_model_stream"
	Event string `json:"event"`

	// Data is the payload of the transition
	Data EventData `json:"data"`

	// RunID is the string form of the run's uuid
	RunID string `json:"run_id"`

	// ParentRunID is the string form of the enclosing run's uuid, empty
	// for a root run
	ParentRunID string `json:"parent_run_id,omitempty"`

	// Name is the display name of the component being run
	Name string `json:"name"`

	// Tags is the run's ordered tag list
	Tags []string `json:"tags"`

	// Metadata is the run's metadata mapping
	Metadata map[string]any `json:"metadata"`

	// Timestamp is when the event was built
	Timestamp time.Time `json:"timestamp"`
}

// EventData is the union payload of an Event. Start events carry Input,
// end events carry Output, stream events carry Token/Chunk, retriever
// events carry Query/Documents.
type EventData struct {
	Input     any                  `json:"input,omitempty"`
	Output    any                  `json:"output,omitempty"`
	Token     string               `json:"token,omitempty"`
	Chunk     any                  `json:"chunk,omitempty"`
	Query     string               `json:"query,omitempty"`
	Documents []callbacks.Document `json:"documents,omitempty"`
}
