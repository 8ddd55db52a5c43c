package callbacks

import (
	"io"
	"slices"
	"sync"
)

// Options assembles a root manager. Inheritable fields propagate to child
// managers derived during the run; local fields apply to the root scope
// only.
type Options struct {
	// InheritableHandlers are attached and propagated to children.
	InheritableHandlers []Handler

	// LocalHandlers are attached to the root scope only.
	LocalHandlers []Handler

	// InheritableTags / LocalTags seed the scope's tag list.
	InheritableTags []string
	LocalTags       []string

	// InheritableMetadata / LocalMetadata seed the scope's metadata.
	InheritableMetadata map[string]any
	LocalMetadata       map[string]any

	// Verbose appends a ConsoleHandler so every lifecycle event is
	// printed.
	Verbose bool

	// VerboseWriter is where the verbose ConsoleHandler writes; defaults
	// to stdout.
	VerboseWriter io.Writer

	// SkipGlobal leaves globally installed handlers out, which keeps
	// tests free of process-wide state.
	SkipGlobal bool
}

// Configure is the single assembly entry point external code uses to build
// a manager before starting a root run. It merges the supplied handlers
// with globally installed ones, de-duplicating by identity, and appends a
// verbose console handler when requested.
func Configure(opts Options) *Manager {
	m := NewManager()

	for _, h := range opts.InheritableHandlers {
		if !containsHandler(m.handlers, h) {
			m.AddHandler(h, true)
		}
	}
	for _, h := range opts.LocalHandlers {
		if !containsHandler(m.handlers, h) {
			m.AddHandler(h, false)
		}
	}

	if !opts.SkipGlobal {
		for _, g := range globalHandlers() {
			if !containsHandler(m.handlers, g.handler) {
				m.AddHandler(g.handler, g.inherit)
			}
		}
	}

	if len(opts.InheritableTags) > 0 {
		m.AddTags(opts.InheritableTags, true)
	}
	if len(opts.LocalTags) > 0 {
		m.AddTags(opts.LocalTags, false)
	}
	if len(opts.InheritableMetadata) > 0 {
		m.AddMetadata(opts.InheritableMetadata, true)
	}
	if len(opts.LocalMetadata) > 0 {
		m.AddMetadata(opts.LocalMetadata, false)
	}

	if opts.Verbose && !hasConsoleHandler(m.handlers) {
		m.AddHandler(NewConsoleHandlerWithWriter(opts.VerboseWriter), false)
	}

	return m
}

func containsHandler(handlers []Handler, h Handler) bool {
	return slices.ContainsFunc(handlers, func(x Handler) bool { return x == h })
}

func hasConsoleHandler(handlers []Handler) bool {
	return slices.ContainsFunc(handlers, func(x Handler) bool {
		_, ok := x.(*ConsoleHandler)
		return ok
	})
}

// Process-wide handler registry. Installed handlers are merged into every
// Configure call unless Options.SkipGlobal is set. The explicit
// install/uninstall lifecycle replaces hidden global state: nothing else in
// the package reads it.
var (
	globalMu  sync.Mutex
	globalSet []globalEntry
)

type globalEntry struct {
	handler Handler
	inherit bool
}

// InstallGlobalHandler registers a process-wide handler merged into every
// configured manager. Installing the same handler twice is a no-op.
func InstallGlobalHandler(h Handler, inherit bool) {
	globalMu.Lock()
	defer globalMu.Unlock()
	for _, g := range globalSet {
		if g.handler == h {
			return
		}
	}
	globalSet = append(globalSet, globalEntry{handler: h, inherit: inherit})
}

// UninstallGlobalHandler removes a previously installed handler.
func UninstallGlobalHandler(h Handler) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalSet = slices.DeleteFunc(globalSet, func(g globalEntry) bool { return g.handler == h })
}

// ResetGlobalHandlers removes all installed handlers.
func ResetGlobalHandlers() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalSet = nil
}

func globalHandlers() []globalEntry {
	globalMu.Lock()
	defer globalMu.Unlock()
	return slices.Clone(globalSet)
}
