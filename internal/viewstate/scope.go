// Package viewstate holds per-screen state for the presentation layer.
//
// Each holder owns a scope: a cancellable context plus an errgroup running
// its subscriptions and in-flight intents. Presentation code reads
// immutable snapshots and waits on Updated for changes. Close cancels the
// scope and waits for its goroutines; writes already committed stay
// committed.
package viewstate

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

type scope struct {
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	updated chan struct{}
}

func newScope(parent context.Context) *scope {
	ctx, cancel := context.WithCancel(parent)
	g, ctx := errgroup.WithContext(ctx)
	return &scope{
		ctx:     ctx,
		cancel:  cancel,
		group:   g,
		updated: make(chan struct{}, 1),
	}
}

// launch runs fn in the scope unless the scope is already closed, and
// reports whether it did.
func (s *scope) launch(fn func(ctx context.Context) error) bool {
	if s.closed() {
		return false
	}
	s.group.Go(func() error { return fn(s.ctx) })
	return true
}

func (s *scope) closed() bool {
	return s.ctx.Err() != nil
}

func (s *scope) changed() {
	select {
	case s.updated <- struct{}{}:
	default:
	}
}

// Updated signals after the holder's state changed. Signals coalesce.
func (s *scope) Updated() <-chan struct{} {
	return s.updated
}

// Done is closed once the holder has been closed.
func (s *scope) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Close cancels subscriptions and pending intents and waits for them.
func (s *scope) Close() error {
	s.cancel()
	if err := s.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// follow drains a snapshot stream into apply until the stream ends.
func follow[T any](ctx context.Context, stream <-chan T, apply func(T)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-stream:
			if !ok {
				return nil
			}
			apply(v)
		}
	}
}

// WaitFor blocks until cond holds, ctx is done, or the holder is closed.
// cond is checked once up front and again after every update signal.
func WaitFor(ctx context.Context, h interface {
	Updated() <-chan struct{}
	Done() <-chan struct{}
}, cond func() bool) error {
	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.Done():
			if cond() {
				return nil
			}
			return errors.New("holder closed")
		case <-h.Updated():
		}
	}
}
