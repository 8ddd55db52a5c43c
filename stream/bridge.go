package stream

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Recv once the bridge is closed and drained, and
// by Send after Close.
var ErrClosed = errors.New("stream: bridge closed")

// Bridge adapts push-style producers to a single pull-style consumer. Values
// are delivered strictly in Send order even when producers run on different
// goroutines or OS threads: every enqueue is serialized under one mutex.
//
// The buffer is unbounded by default, which matches the intended use as an
// observability side channel where producers must never stall the observed
// computation. A positive maxBuffered bounds the buffer and blocks Send
// until the consumer frees space, trading producer latency for memory.
type Bridge[T any] struct {
	mu     sync.Mutex
	buf    []T
	closed bool
	max    int

	// ready is closed (and replaced) whenever a value arrives or the
	// bridge closes; space likewise whenever buffer space frees.
	ready chan struct{}
	space chan struct{}
}

// NewBridge creates a bridge. maxBuffered <= 0 means unbounded.
func NewBridge[T any](maxBuffered int) *Bridge[T] {
	return &Bridge[T]{
		max:   maxBuffered,
		ready: make(chan struct{}),
		space: make(chan struct{}),
	}
}

// Send enqueues a value for delivery. It returns ErrClosed after Close, and
// blocks only in bounded mode while the buffer is full.
func (b *Bridge[T]) Send(ctx context.Context, v T) error {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return ErrClosed
		}
		if b.max <= 0 || len(b.buf) < b.max {
			b.buf = append(b.buf, v)
			close(b.ready)
			b.ready = make(chan struct{})
			b.mu.Unlock()
			return nil
		}
		space := b.space
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-space:
		}
	}
}

// Recv returns the next value in Send order. It returns ErrClosed only
// after the bridge is closed and every buffered value was delivered.
func (b *Bridge[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		b.mu.Lock()
		if len(b.buf) > 0 {
			v := b.buf[0]
			b.buf = b.buf[1:]
			close(b.space)
			b.space = make(chan struct{})
			b.mu.Unlock()
			return v, nil
		}
		if b.closed {
			b.mu.Unlock()
			return zero, ErrClosed
		}
		ready := b.ready
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ready:
		}
	}
}

// Close marks the producer side done. It is idempotent and wakes both
// sides; buffered values remain receivable until drained.
func (b *Bridge[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ready)
	b.ready = make(chan struct{})
	close(b.space)
	b.space = make(chan struct{})
}

// Len returns the number of buffered, undelivered values.
func (b *Bridge[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
