package callbacks

import (
	"context"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/smallnest/runstream/log"
)

// Manager fans lifecycle notifications out to its handlers and scopes
// nested runs. A Manager is either a root manager (parentRunID nil),
// assembled via Configure, or a child manager derived from a run-scoped
// manager via GetChild.
//
// Handlers and inheritable handlers are tracked independently: a handler can
// be local-only, inheritable-only, or both. Child derivation copies only the
// inheritable set.
//
// Managers are not synchronized: derive children and start runs from as many
// goroutines as you like (those paths only read), but do not mutate the
// handler list concurrently with dispatch.
type Manager struct {
	handlers            []Handler
	inheritableHandlers []Handler
	parentRunID         *uuid.UUID
	tags                []string
	inheritableTags     []string
	metadata            map[string]any
	inheritableMetadata map[string]any
	logger              log.Logger
}

// NewManager creates a manager with the given handlers attached as both
// local and inheritable. For finer control use Configure.
func NewManager(handlers ...Handler) *Manager {
	m := &Manager{logger: log.GetDefaultLogger()}
	for _, h := range handlers {
		m.AddHandler(h, true)
	}
	return m
}

// AddHandler attaches a handler to this manager. When inherit is true the
// handler is also propagated to child managers.
func (m *Manager) AddHandler(h Handler, inherit bool) {
	m.handlers = append(m.handlers, h)
	if inherit {
		m.inheritableHandlers = append(m.inheritableHandlers, h)
	}
}

// AddInheritableHandler attaches a handler that child managers inherit but
// this manager does not invoke itself.
func (m *Manager) AddInheritableHandler(h Handler) {
	m.inheritableHandlers = append(m.inheritableHandlers, h)
}

// RemoveHandler detaches a handler from both the local and inheritable sets.
func (m *Manager) RemoveHandler(h Handler) {
	m.handlers = slices.DeleteFunc(m.handlers, func(x Handler) bool { return x == h })
	m.inheritableHandlers = slices.DeleteFunc(m.inheritableHandlers, func(x Handler) bool { return x == h })
}

// SetHandlers replaces both the local and inheritable handler sets.
func (m *Manager) SetHandlers(handlers ...Handler) {
	m.handlers = slices.Clone(handlers)
	m.inheritableHandlers = slices.Clone(handlers)
}

// Handlers returns a copy of the local handler list.
func (m *Manager) Handlers() []Handler {
	return slices.Clone(m.handlers)
}

// InheritableHandlers returns a copy of the inheritable handler list.
func (m *Manager) InheritableHandlers() []Handler {
	return slices.Clone(m.inheritableHandlers)
}

// AddTags appends tags to the current scope. Inherited tags propagate to
// child managers.
func (m *Manager) AddTags(tags []string, inherit bool) {
	m.tags = append(m.tags, tags...)
	if inherit {
		m.inheritableTags = append(m.inheritableTags, tags...)
	}
}

// AddMetadata merges metadata into the current scope. Inherited metadata
// propagates to child managers.
func (m *Manager) AddMetadata(md map[string]any, inherit bool) {
	if m.metadata == nil {
		m.metadata = make(map[string]any, len(md))
	}
	maps.Copy(m.metadata, md)
	if inherit {
		if m.inheritableMetadata == nil {
			m.inheritableMetadata = make(map[string]any, len(md))
		}
		maps.Copy(m.inheritableMetadata, md)
	}
}

// Tags returns a copy of the current scope's tags.
func (m *Manager) Tags() []string {
	return slices.Clone(m.tags)
}

// Metadata returns a copy of the current scope's metadata.
func (m *Manager) Metadata() map[string]any {
	return maps.Clone(m.metadata)
}

// ParentRunID returns the run id this manager is scoped under, or nil for a
// root manager.
func (m *Manager) ParentRunID() *uuid.UUID {
	if m.parentRunID == nil {
		return nil
	}
	id := *m.parentRunID
	return &id
}

// Copy returns an independent copy of the manager. Mutating the copy's
// handler list never affects the original.
func (m *Manager) Copy() *Manager {
	n := &Manager{
		handlers:            slices.Clone(m.handlers),
		inheritableHandlers: slices.Clone(m.inheritableHandlers),
		parentRunID:         m.ParentRunID(),
		tags:                slices.Clone(m.tags),
		inheritableTags:     slices.Clone(m.inheritableTags),
		metadata:            maps.Clone(m.metadata),
		inheritableMetadata: maps.Clone(m.inheritableMetadata),
		logger:              m.logger,
	}
	return n
}

// SetLogger redirects handler-failure reporting for this manager.
func (m *Manager) SetLogger(logger log.Logger) {
	m.logger = logger
}

func (m *Manager) log() log.Logger {
	if m.logger != nil {
		return m.logger
	}
	return log.GetDefaultLogger()
}

// RunOption customizes a single on-start call.
type RunOption func(*runOptions)

type runOptions struct {
	runID *uuid.UUID
	name  string
}

// WithRunID makes the start call use a caller-supplied run id instead of a
// generated one.
func WithRunID(id uuid.UUID) RunOption {
	return func(o *runOptions) { o.runID = &id }
}

// WithName overrides the display name resolved from the serialized
// descriptor.
func WithName(name string) RunOption {
	return func(o *runOptions) { o.name = name }
}

func applyRunOptions(opts []RunOption) runOptions {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (m *Manager) newRunID(o runOptions) uuid.UUID {
	if o.runID != nil {
		return *o.runID
	}
	return uuid.New()
}

// dispatch invokes fn for every handler not ignoring the event class,
// isolating failures so one broken handler cannot starve the rest. Errors
// and panics are reported through the manager's logger and otherwise
// swallowed: observability must never break the computation it observes.
func dispatch(logger log.Logger, handlers []Handler, ignore func(Handler) bool, fn func(Handler) error) {
	for _, h := range handlers {
		if ignore != nil && ignore(h) {
			continue
		}
		invokeIsolated(logger, h, fn)
	}
}

func invokeIsolated(logger log.Logger, h Handler, fn func(Handler) error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("callback handler %T panicked: %v", h, r)
		}
	}()
	if err := fn(h); err != nil {
		logger.Error("callback handler %T failed: %v", h, err)
	}
}

func ignoreLLM(h Handler) bool       { return h.IgnoreLLM() }
func ignoreChain(h Handler) bool     { return h.IgnoreChain() }
func ignoreTool(h Handler) bool      { return h.IgnoreTool() }
func ignoreRetriever(h Handler) bool { return h.IgnoreRetriever() }

func (m *Manager) runScope(runID uuid.UUID) runScope {
	return runScope{
		runID:               runID,
		parentRunID:         m.ParentRunID(),
		handlers:            slices.Clone(m.handlers),
		inheritableHandlers: slices.Clone(m.inheritableHandlers),
		tags:                slices.Clone(m.tags),
		inheritableTags:     slices.Clone(m.inheritableTags),
		metadata:            maps.Clone(m.metadata),
		inheritableMetadata: maps.Clone(m.inheritableMetadata),
		logger:              m.log(),
	}
}

// OnLLMStart notifies handlers that a completion-style LLM run started and
// returns a manager scoped to the new run.
func (m *Manager) OnLLMStart(ctx context.Context, serialized Serialized, prompts []string, opts ...RunOption) *LLMRunManager {
	o := applyRunOptions(opts)
	runID := m.newRunID(o)

	dispatch(m.log(), m.handlers, ignoreLLM, func(h Handler) error {
		return h.OnLLMStart(ctx, serialized, prompts, runID, m.parentRunID, m.tags, m.metadata, o.name)
	})

	return &LLMRunManager{RunManager: RunManager{runScope: m.runScope(runID)}}
}

// OnChatModelStart notifies handlers that a chat-model run started and
// returns a manager scoped to the new run.
func (m *Manager) OnChatModelStart(ctx context.Context, serialized Serialized, messages [][]Message, opts ...RunOption) *LLMRunManager {
	o := applyRunOptions(opts)
	runID := m.newRunID(o)

	dispatch(m.log(), m.handlers, ignoreLLM, func(h Handler) error {
		return h.OnChatModelStart(ctx, serialized, messages, runID, m.parentRunID, m.tags, m.metadata, o.name)
	})

	return &LLMRunManager{RunManager: RunManager{runScope: m.runScope(runID)}}
}

// OnChainStart notifies handlers that a chain run started and returns a
// manager scoped to the new run.
func (m *Manager) OnChainStart(ctx context.Context, serialized Serialized, inputs map[string]any, opts ...RunOption) *ChainRunManager {
	o := applyRunOptions(opts)
	runID := m.newRunID(o)

	dispatch(m.log(), m.handlers, ignoreChain, func(h Handler) error {
		return h.OnChainStart(ctx, serialized, inputs, runID, m.parentRunID, m.tags, m.metadata, o.name)
	})

	return &ChainRunManager{ParentRunManager: ParentRunManager{RunManager: RunManager{runScope: m.runScope(runID)}}}
}

// OnToolStart notifies handlers that a tool run started and returns a
// manager scoped to the new run.
func (m *Manager) OnToolStart(ctx context.Context, serialized Serialized, input string, opts ...RunOption) *ToolRunManager {
	o := applyRunOptions(opts)
	runID := m.newRunID(o)

	dispatch(m.log(), m.handlers, ignoreTool, func(h Handler) error {
		return h.OnToolStart(ctx, serialized, input, runID, m.parentRunID, m.tags, m.metadata, o.name)
	})

	return &ToolRunManager{ParentRunManager: ParentRunManager{RunManager: RunManager{runScope: m.runScope(runID)}}}
}

// OnRetrieverStart notifies handlers that a retriever run started and
// returns a manager scoped to the new run.
func (m *Manager) OnRetrieverStart(ctx context.Context, serialized Serialized, query string, opts ...RunOption) *RetrieverRunManager {
	o := applyRunOptions(opts)
	runID := m.newRunID(o)

	dispatch(m.log(), m.handlers, ignoreRetriever, func(h Handler) error {
		return h.OnRetrieverStart(ctx, serialized, query, runID, m.parentRunID, m.tags, m.metadata, o.name)
	})

	return &RetrieverRunManager{ParentRunManager: ParentRunManager{RunManager: RunManager{runScope: m.runScope(runID)}}}
}

// runScope is the shared state of a run-scoped manager: the run id plus
// copies of everything the originating manager knew. The copies make each
// run-scoped manager fully independent of its origin.
type runScope struct {
	runID               uuid.UUID
	parentRunID         *uuid.UUID
	handlers            []Handler
	inheritableHandlers []Handler
	tags                []string
	inheritableTags     []string
	metadata            map[string]any
	inheritableMetadata map[string]any
	logger              log.Logger
}

// RunManager is the base run-scoped manager for an in-flight run.
type RunManager struct {
	runScope
}

// RunID returns the id of the run this manager is scoped to.
func (r *RunManager) RunID() uuid.UUID {
	return r.runID
}

// ParentRunID returns this run's parent run id, or nil for a root run.
func (r *RunManager) ParentRunID() *uuid.UUID {
	if r.parentRunID == nil {
		return nil
	}
	id := *r.parentRunID
	return &id
}

// Tags returns a copy of the run's tags.
func (r *RunManager) Tags() []string {
	return slices.Clone(r.tags)
}

// Metadata returns a copy of the run's metadata.
func (r *RunManager) Metadata() map[string]any {
	return maps.Clone(r.metadata)
}

// Handlers returns a copy of the run's local handler list.
func (r *RunManager) Handlers() []Handler {
	return slices.Clone(r.handlers)
}

// OnRetry notifies handlers that the underlying computation is retrying.
func (r *RunManager) OnRetry(ctx context.Context, retry RetryInfo) {
	dispatch(r.logger, r.handlers, nil, func(h Handler) error {
		return h.OnRetry(ctx, retry, r.runID)
	})
}

// ParentRunManager is a run-scoped manager for runs that can spawn child
// runs (chain, tool, retriever).
type ParentRunManager struct {
	RunManager
}

// GetChild derives a fresh manager scoped under this run. The child's
// handler list equals the inheritable handlers, its parent run id equals
// this run's id, and inherited tags and metadata are copied. Extra tags, if
// given, are appended locally (not inherited further). The returned manager
// is independent: mutating it never affects this manager, and GetChild is
// safe to call from several goroutines at once.
func (p *ParentRunManager) GetChild(tags ...string) *Manager {
	id := p.runID
	m := &Manager{
		handlers:            slices.Clone(p.inheritableHandlers),
		inheritableHandlers: slices.Clone(p.inheritableHandlers),
		parentRunID:         &id,
		tags:                slices.Clone(p.inheritableTags),
		inheritableTags:     slices.Clone(p.inheritableTags),
		metadata:            maps.Clone(p.inheritableMetadata),
		inheritableMetadata: maps.Clone(p.inheritableMetadata),
		logger:              p.logger,
	}
	if len(tags) > 0 {
		m.AddTags(tags, false)
	}
	return m
}

// LLMRunManager is the run-scoped manager returned by OnLLMStart and
// OnChatModelStart.
type LLMRunManager struct {
	RunManager
}

// OnLLMNewToken notifies handlers of one streamed token.
func (r *LLMRunManager) OnLLMNewToken(ctx context.Context, token string, chunk *TokenChunk) {
	dispatch(r.logger, r.handlers, ignoreLLM, func(h Handler) error {
		return h.OnLLMNewToken(ctx, token, chunk, r.runID, r.parentRunID)
	})
}

// OnLLMEnd notifies handlers that the run completed with the given output.
func (r *LLMRunManager) OnLLMEnd(ctx context.Context, output any) {
	dispatch(r.logger, r.handlers, ignoreLLM, func(h Handler) error {
		return h.OnLLMEnd(ctx, output, r.runID)
	})
}

// OnLLMError notifies handlers that the run failed.
func (r *LLMRunManager) OnLLMError(ctx context.Context, err error) {
	dispatch(r.logger, r.handlers, ignoreLLM, func(h Handler) error {
		return h.OnLLMError(ctx, err, r.runID)
	})
}

// ChainRunManager is the run-scoped manager returned by OnChainStart.
type ChainRunManager struct {
	ParentRunManager
}

// OnChainEnd notifies handlers that the chain completed.
func (r *ChainRunManager) OnChainEnd(ctx context.Context, outputs map[string]any) {
	dispatch(r.logger, r.handlers, ignoreChain, func(h Handler) error {
		return h.OnChainEnd(ctx, outputs, r.runID)
	})
}

// OnChainError notifies handlers that the chain failed.
func (r *ChainRunManager) OnChainError(ctx context.Context, err error) {
	dispatch(r.logger, r.handlers, ignoreChain, func(h Handler) error {
		return h.OnChainError(ctx, err, r.runID)
	})
}

// ToolRunManager is the run-scoped manager returned by OnToolStart.
type ToolRunManager struct {
	ParentRunManager
}

// OnToolEnd notifies handlers that the tool completed.
func (r *ToolRunManager) OnToolEnd(ctx context.Context, output string) {
	dispatch(r.logger, r.handlers, ignoreTool, func(h Handler) error {
		return h.OnToolEnd(ctx, output, r.runID)
	})
}

// OnToolError notifies handlers that the tool failed.
func (r *ToolRunManager) OnToolError(ctx context.Context, err error) {
	dispatch(r.logger, r.handlers, ignoreTool, func(h Handler) error {
		return h.OnToolError(ctx, err, r.runID)
	})
}

// RetrieverRunManager is the run-scoped manager returned by
// OnRetrieverStart.
type RetrieverRunManager struct {
	ParentRunManager
}

// OnRetrieverEnd notifies handlers that the retriever completed.
func (r *RetrieverRunManager) OnRetrieverEnd(ctx context.Context, documents []Document) {
	dispatch(r.logger, r.handlers, ignoreRetriever, func(h Handler) error {
		return h.OnRetrieverEnd(ctx, documents, r.runID)
	})
}

// OnRetrieverError notifies handlers that the retriever failed.
func (r *RetrieverRunManager) OnRetrieverError(ctx context.Context, err error) {
	dispatch(r.logger, r.handlers, ignoreRetriever, func(h Handler) error {
		return h.OnRetrieverError(ctx, err, r.runID)
	})
}
