// Package runstream is a run tracking and event streaming toolkit for LLM
// pipelines in Go.
//
// It models every unit of work (an LLM call, a chain step, a tool
// invocation, a retrieval) as a run with a uuid identity and a parent run,
// and fans its lifecycle out to pluggable handlers.
//
// Packages:
//
//   - callbacks: the core. Handler interface, run-scoped managers with
//     inheritable and local handler sets, run registry, console and log
//     handlers, global handler configuration.
//   - stream: turns lifecycle callbacks into a consumable event stream
//     with root event filtering, backed by an order-preserving bridge.
//   - store: persists finished runs as records; memory, sqlite, redis and
//     postgres backends.
//   - otel: exports runs as OpenTelemetry spans.
//   - report: renders stored run trees as Markdown or sanitized HTML.
//   - adapter/langchain, adapter/openai: integration bridges for
//     langchaingo callback handlers and go-openai clients.
//   - log: the logging facade used across the module.
//
// A minimal streaming invocation:
//
//	es := stream.Events(ctx, func(ctx context.Context, mgr *callbacks.Manager) error {
//		chain := mgr.OnChainStart(ctx, nil, inputs, callbacks.WithName("pipeline"))
//		llm := chain.GetChild().OnLLMStart(ctx, nil, prompts)
//		llm.OnLLMNewToken(ctx, "Hel", nil)
//		llm.OnLLMNewToken(ctx, "lo", nil)
//		llm.OnLLMEnd(ctx, "Hello")
//		chain.OnChainEnd(ctx, map[string]any{"text": "Hello"})
//		return nil
//	})
//	defer es.Close()
//	for {
//		ev, err := es.Recv(ctx)
//		if err != nil {
//			break
//		}
//		fmt.Println(ev.Event, ev.Name)
//	}
package runstream
