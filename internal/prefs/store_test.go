package prefs

import (
	"context"
	"testing"
	"time"

	"daybook/internal/core"
	"daybook/internal/notify"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if in, err := s.IsLoggedIn(ctx); err != nil || in {
		t.Fatalf("IsLoggedIn = %v, %v", in, err)
	}
	if dark, err := s.DarkTheme(ctx); err != nil || dark {
		t.Fatalf("DarkTheme = %v, %v", dark, err)
	}
	p, err := s.Profile(ctx)
	if err != nil || !p.IsEmpty() {
		t.Fatalf("Profile = %+v, %v", p, err)
	}
}

func TestProfileLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetDarkTheme(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetProfile(ctx, core.Profile{Username: "asha"}); err != nil {
		t.Fatalf("SetProfile: %v", err)
	}
	if in, _ := s.IsLoggedIn(ctx); !in {
		t.Fatal("expected logged in after SetProfile")
	}
	if p, _ := s.Profile(ctx); p.Username != "asha" {
		t.Fatalf("Profile = %+v", p)
	}

	if err := s.ClearProfile(ctx); err != nil {
		t.Fatalf("ClearProfile: %v", err)
	}
	if in, _ := s.IsLoggedIn(ctx); in {
		t.Fatal("still logged in after ClearProfile")
	}
	if p, _ := s.Profile(ctx); !p.IsEmpty() {
		t.Fatalf("profile survived ClearProfile: %+v", p)
	}
	if dark, _ := s.DarkTheme(ctx); !dark {
		t.Fatal("theme should survive logout")
	}
}

func TestWatchDarkTheme(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	themes := s.WatchDarkTheme(ctx)
	if got := recvBool(t, themes); got {
		t.Fatal("initial theme should be light")
	}

	if err := s.SetDarkTheme(ctx, true); err != nil {
		t.Fatal(err)
	}
	if got := recvBool(t, themes); !got {
		t.Fatal("expected dark after toggle")
	}

	// Unrelated writes do not re-emit the same theme.
	if err := s.SetProfile(ctx, core.Profile{Username: "asha"}); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-themes:
		t.Fatalf("unexpected theme emission %v", v)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-themes:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream not closed after cancel")
		}
	}
}

func TestOpenSharedDirectory(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { first.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	themes := first.WatchDarkTheme(ctx)
	if got := recvBool(t, themes); got {
		t.Fatal("initial theme should be light")
	}

	// A second handle on the same directory works while the first is
	// watching, as another process would.
	second, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open while watching: %v", err)
	}
	t.Cleanup(func() { second.Close() })

	if err := second.SetProfile(ctx, core.Profile{Username: "asha"}); err != nil {
		t.Fatalf("SetProfile: %v", err)
	}
	if err := second.SetDarkTheme(ctx, true); err != nil {
		t.Fatalf("SetDarkTheme: %v", err)
	}
	if p, err := first.Profile(ctx); err != nil || p.Username != "asha" {
		t.Fatalf("first.Profile = %+v, %v", p, err)
	}
	if dark, err := first.DarkTheme(ctx); err != nil || !dark {
		t.Fatalf("first.DarkTheme = %v, %v", dark, err)
	}
}

func TestClosedInMemoryStore(t *testing.T) {
	s, err := OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.DarkTheme(context.Background()); err == nil {
		t.Fatal("read from a closed store should fail")
	}
}

func recvBool(t *testing.T, ch <-chan notify.Result[bool]) bool {
	t.Helper()
	select {
	case r, ok := <-ch:
		if !ok {
			t.Fatal("stream closed")
		}
		if r.Err != nil {
			t.Fatalf("theme stream error: %v", r.Err)
		}
		return r.Value
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	return false
}
