package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubscribeReceivesCoalescedSignal(t *testing.T) {
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx)
	for i := 0; i < 5; i++ {
		b.Notify()
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce into one pending")
	default:
	}
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// a pending signal is acceptable; the next receive must see close
			if _, ok := <-ch; ok {
				t.Fatal("channel should be closed")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	deadline := time.Now().Add(time.Second)
	for b.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	b.Notify() // must not panic on a removed subscriber
}

func TestNotifyNilBroadcaster(t *testing.T) {
	var b *Broadcaster
	b.Notify()
}

func TestWatchReloadsOnSignal(t *testing.T) {
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var n atomic.Int32
	out := Watch(ctx, b, "counter", func(context.Context) (int32, error) {
		return n.Add(1), nil
	})

	if got := recv(t, out); got.Err != nil || got.Value != 1 {
		t.Fatalf("first result = %+v, want 1", got)
	}
	b.Notify()
	if got := recv(t, out); got.Err != nil || got.Value != 2 {
		t.Fatalf("second result = %+v, want 2", got)
	}

	cancel()
	for range out {
	}
}

func TestWatchEmitsLoadErrors(t *testing.T) {
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("boom")
	var calls atomic.Int32
	out := Watch(ctx, b, "flaky", func(context.Context) (string, error) {
		switch calls.Add(1) {
		case 2:
			return "", boom
		case 1:
			return "first", nil
		default:
			return "third", nil
		}
	})

	if got := recv(t, out); got.Err != nil || got.Value != "first" {
		t.Fatalf("got %+v", got)
	}
	b.Notify()
	if got := recv(t, out); !errors.Is(got.Err, boom) {
		t.Fatalf("got %+v, want the load error", got)
	}
	b.Notify()
	if got := recv(t, out); got.Err != nil || got.Value != "third" {
		t.Fatalf("got %+v", got)
	}
}

func TestWatchFailingFirstLoad(t *testing.T) {
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := Watch(ctx, b, "broken", func(context.Context) ([]int, error) {
		return nil, errors.New("disk I/O error")
	})
	if got := recv(t, out); got.Err == nil {
		t.Fatalf("got %+v, want an error result", got)
	}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("stream closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}
