package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/smallnest/runstream/callbacks"
)

// RunFunc is the computation being observed. It receives a manager with the
// event-stream tracer attached as an inheritable handler and drives its
// lifecycle calls as it works.
type RunFunc func(ctx context.Context, mgr *callbacks.Manager) error

// Option customizes an Events invocation.
type Option func(*streamConfig)

type streamConfig struct {
	filter      Filter
	maxBuffered int
	callbacks   callbacks.Options
}

// WithEventFilter sets the root event filter applied before publication.
func WithEventFilter(f Filter) Option {
	return func(c *streamConfig) { c.filter = f }
}

// WithBufferLimit bounds the event buffer; producers block while the
// consumer lags. Zero keeps the unbounded default.
func WithBufferLimit(n int) Option {
	return func(c *streamConfig) { c.maxBuffered = n }
}

// WithCallbacks supplies additional handler configuration merged into the
// manager handed to the run function.
func WithCallbacks(opts callbacks.Options) Option {
	return func(c *streamConfig) { c.callbacks = opts }
}

// EventStream is the consumer side of a streaming invocation started by
// Events.
type EventStream struct {
	tracer *Tracer
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Events runs fn in a producer goroutine and returns the stream of
// lifecycle events it generates. The tracer's bridge is closed when fn
// returns, so consumer iteration always terminates, even on failure.
//
// A consumer that stops early must call Close, which cancels the run
// context and waits for fn to return, so no background work is orphaned:
//
//	es := stream.Events(ctx, runPipeline)
//	defer es.Close()
//	for {
//		ev, err := es.Recv(ctx)
//		if err != nil {
//			break
//		}
//		handle(ev)
//	}
func Events(ctx context.Context, fn RunFunc, opts ...Option) *EventStream {
	var cfg streamConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	tracer := NewTracer(WithFilter(cfg.filter), WithMaxBuffered(cfg.maxBuffered))

	mgr := callbacks.Configure(cfg.callbacks)
	mgr.AddHandler(tracer, true)

	runCtx, cancel := context.WithCancel(ctx)
	es := &EventStream{
		tracer: tracer,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(es.done)
		defer tracer.Close()
		err := fn(runCtx, mgr)
		es.mu.Lock()
		es.err = err
		es.mu.Unlock()
	}()

	return es
}

// Recv returns the next event in publication order. Once the run finishes
// and the stream drains, Recv returns the run's error if it failed, or
// ErrClosed on success.
func (s *EventStream) Recv(ctx context.Context) (Event, error) {
	ev, err := s.tracer.Recv(ctx)
	if err == nil {
		return ev, nil
	}
	if errors.Is(err, ErrClosed) {
		<-s.done
		if rerr := s.Err(); rerr != nil {
			return Event{}, rerr
		}
		return Event{}, ErrClosed
	}
	return Event{}, err
}

// Err returns the run's error, once it has finished.
func (s *EventStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close cancels the run and waits for the producer to return. It reports
// the run's error unless the run merely observed the cancellation.
func (s *EventStream) Close() error {
	s.cancel()
	<-s.done
	err := s.Err()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
