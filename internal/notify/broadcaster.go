// Package notify fans table-change signals out to live subscriptions.
//
// Writers call Notify after a committed change; readers Subscribe and
// re-query on every signal. Signals carry no payload and coalesce: a slow
// subscriber sees at most one pending signal no matter how many writes
// happened meanwhile, so it always re-reads the latest state.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan struct{}]struct{})}
}

// Subscribe registers a subscriber until ctx is done, at which point the
// returned channel is closed.
func (b *Broadcaster) Subscribe(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

// Notify signals every subscriber without blocking. Safe on a nil receiver.
func (b *Broadcaster) Notify() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Result is one reload of a watched query. Err is set when the load
// failed; Value is then the zero value.
type Result[T any] struct {
	Value T
	Err   error
}

// Watch turns a loader into a stream of results: one right away, then one
// after every change signal, until ctx is done. Only the newest result is
// kept for a slow reader. A failed load is emitted with Err set and the
// stream keeps following later signals.
func Watch[T any](ctx context.Context, b *Broadcaster, name string, load func(context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)
	// Subscribe before the first load so a write racing the initial read
	// still triggers a reload.
	signals := b.Subscribe(ctx)

	go func() {
		defer close(out)
		for {
			v, err := load(ctx)
			if err != nil && ctx.Err() != nil {
				return
			}
			if err != nil {
				slog.ErrorContext(ctx, "Watch reload failed", "stream", name, "error", err)
			}
			select {
			case <-out:
			default:
			}
			out <- Result[T]{Value: v, Err: err}

			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
			}
		}
	}()
	return out
}
