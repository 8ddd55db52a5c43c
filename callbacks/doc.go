// Package callbacks implements the run-tracking callback core: the handler
// capability set, the fan-out manager with parent/child run scoping, and the
// live-run registry.
//
// # Runs and managers
//
// An execution engine assembles a root manager once per invocation and calls
// the matching On<Kind>Start method before performing a unit of work:
//
//	mgr := callbacks.Configure(callbacks.Options{
//		InheritableHandlers: []callbacks.Handler{myHandler},
//		Verbose:             true,
//	})
//
//	chainRun := mgr.OnChainStart(ctx, callbacks.Serialized{"name": "pipeline"}, inputs)
//	defer func() {
//		if err != nil {
//			chainRun.OnChainError(ctx, err)
//		} else {
//			chainRun.OnChainEnd(ctx, outputs)
//		}
//	}()
//
//	child := chainRun.GetChild()
//	llmRun := child.OnLLMStart(ctx, callbacks.Serialized{"name": "my-model"}, prompts)
//	llmRun.OnLLMNewToken(ctx, "Hel", nil)
//	llmRun.OnLLMEnd(ctx, output)
//
// Each start call creates a run with a fresh uuid (or a caller-supplied one
// via WithRunID) and returns a run-scoped manager. GetChild derives an
// independent manager carrying the inheritable handlers and the current run
// id as parent, so nested runs form a forest.
//
// # Handlers
//
// Observers implement Handler, usually by embedding BaseHandler and
// overriding a subset. Handler failures are isolated: an error return or a
// panic is logged and the remaining handlers still run. Built-in handlers:
// ConsoleHandler (styled stdout lines, used by verbose mode) and LogHandler
// (the log facade).
//
// # Registry
//
// Registry tracks live runs between start and end/error. It is used by
// consumers that need per-run state keyed by id, such as the event-stream
// tracer and the store recorder.
package callbacks
