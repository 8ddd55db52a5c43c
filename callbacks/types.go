package callbacks

import "time"

// Message is a single chat message exchanged with a chat model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Document is one retrieved document returned by a retriever run.
type Document struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TokenChunk is the structured form of a streamed token. Text carries the
// raw token; Message is set when the producer is a chat model.
type TokenChunk struct {
	Text    string   `json:"text"`
	Message *Message `json:"message,omitempty"`
}

// RetryInfo describes one retry attempt of the underlying computation.
type RetryInfo struct {
	// Attempt is the 1-based attempt number
	Attempt int

	// IdleFor is the total time slept between attempts so far
	IdleFor time.Duration

	// Err is the failure that triggered the retry, nil if the attempt
	// succeeded
	Err error
}

// Serialized is the serialized descriptor of the component starting a run.
// Well-known keys: "name" (display name) and "id" (path segments, the last
// of which serves as a fallback display name).
type Serialized map[string]any

// ResolveName resolves a run's display name: the explicit name wins, then
// the serialized descriptor's "name", then the last segment of its "id"
// path. Empty when nothing is known.
func ResolveName(name string, serialized Serialized) string {
	if name != "" {
		return name
	}
	if n, ok := serialized["name"].(string); ok && n != "" {
		return n
	}
	if path, ok := serialized["id"].([]string); ok && len(path) > 0 {
		return path[len(path)-1]
	}
	// "id" may arrive as []any after a JSON round trip
	if path, ok := serialized["id"].([]any); ok && len(path) > 0 {
		if last, ok := path[len(path)-1].(string); ok {
			return last
		}
	}
	return ""
}
