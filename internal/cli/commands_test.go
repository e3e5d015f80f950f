package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"daybook/internal/app"
	"daybook/internal/config"
	"daybook/internal/viewstate"

	"github.com/shopspring/decimal"
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		DBPath:               filepath.Join(dir, "daybook.db"),
		PrefsDir:             filepath.Join(dir, "prefs"),
		ExportDir:            filepath.Join(dir, "exports"),
		LogLevel:             "info",
		CurrencyLocale:       "en-IN",
		CurrencySymbol:       "₹",
		MaxTransactionAmount: decimal.NewFromInt(50000),
		ReportWindowDays:     7,
		ReportCacheSize:      4,
		ReportCacheTTL:       time.Minute,
	}
}

func newRunnerFor(t *testing.T, cfg *config.Config) (*Runner, *bytes.Buffer) {
	t.Helper()
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	var out bytes.Buffer
	return NewRunner(a, &out), &out
}

func newRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	return newRunnerFor(t, testConfig(t.TempDir()))
}

func run(t *testing.T, r *Runner, out *bytes.Buffer, args ...string) string {
	t.Helper()
	out.Reset()
	if err := r.Run(context.Background(), args); err != nil {
		t.Fatalf("%v: %v\noutput:\n%s", args, err, out)
	}
	return out.String()
}

func TestRunUsage(t *testing.T) {
	r, out := newRunner(t)
	if err := r.Run(context.Background(), nil); !errors.Is(err, ErrUsage) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out.String(), "signup") {
		t.Errorf("usage output = %q", out)
	}
	if err := r.Run(context.Background(), []string{"fly"}); !errors.Is(err, ErrUsage) {
		t.Errorf("unknown command err = %v", err)
	}
}

func TestCommandsRequireLogin(t *testing.T) {
	r, _ := newRunner(t)
	for _, cmd := range []string{"list", "add", "home", "report", "logout"} {
		if err := r.Run(context.Background(), []string{cmd}); !errors.Is(err, ErrNotLoggedIn) {
			t.Errorf("%s: err = %v", cmd, err)
		}
	}
}

func TestSessionCommands(t *testing.T) {
	r, out := newRunner(t)
	ctx := context.Background()

	run(t, r, out, "signup", "-u", "alice", "-p", "secret")
	if err := r.Run(ctx, []string{"signup", "-u", "alice", "-p", "again"}); err == nil || err.Error() != viewstate.MsgUserExists {
		t.Errorf("duplicate signup err = %v", err)
	}
	if got := run(t, r, out, "status"); !strings.Contains(got, "Logged out") {
		t.Errorf("status after signup = %q", got)
	}

	if err := r.Run(ctx, []string{"login", "-u", "alice", "-p", "nope"}); err == nil || err.Error() != viewstate.MsgInvalidCredentials {
		t.Errorf("bad login err = %v", err)
	}
	run(t, r, out, "login", "-u", "alice", "-p", "secret")
	if got := run(t, r, out, "status"); !strings.Contains(got, "Logged in as alice") {
		t.Errorf("status = %q", got)
	}

	run(t, r, out, "logout")
	if err := r.Run(ctx, []string{"list"}); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("list after logout err = %v", err)
	}
}

func TestTransactionCommands(t *testing.T) {
	r, out := newRunner(t)
	ctx := context.Background()
	run(t, r, out, "signup", "-u", "alice", "-p", "secret")
	run(t, r, out, "login", "-u", "alice", "-p", "secret")

	if got := run(t, r, out, "add", "-title", "Coffee", "-amount", "4,50", "-category", "Food"); !strings.Contains(got, viewstate.MsgAdded) {
		t.Fatalf("add = %q", got)
	}
	if err := r.Run(ctx, []string{"add", "-title", "Coffee", "-amount", "4.50", "-category", "Food"}); err == nil || err.Error() != viewstate.MsgAlreadyExists {
		t.Errorf("duplicate add err = %v", err)
	}
	if err := r.Run(ctx, []string{"add", "-title", "", "-amount", "4.50", "-category", "Food"}); err == nil || err.Error() != viewstate.MsgInvalidTitle {
		t.Errorf("blank title err = %v", err)
	}

	got := run(t, r, out, "list")
	if !strings.Contains(got, "Coffee") || !strings.Contains(got, "-₹4.50") {
		t.Errorf("list = %q", got)
	}

	got = run(t, r, out, "home", "-group", "category")
	for _, want := range []string{"Hello, alice", "-₹4.50", "Food (₹4.50)"} {
		if !strings.Contains(got, want) {
			t.Errorf("home output missing %q:\n%s", want, got)
		}
	}

	got = run(t, r, out, "report", "-pdf")
	for _, want := range []string{"Expense Report (Last 7 Days)", "Total ₹4.50", "PDF written to"} {
		if !strings.Contains(got, want) {
			t.Errorf("report output missing %q:\n%s", want, got)
		}
	}
	if err := r.Run(ctx, []string{"report", "-sheets"}); !errors.Is(err, viewstate.ErrExportUnavailable) {
		t.Errorf("sheets export err = %v", err)
	}

	if got := run(t, r, out, "theme"); !strings.Contains(got, "Dark theme on") {
		t.Errorf("theme = %q", got)
	}
	if got := run(t, r, out, "theme"); !strings.Contains(got, "Dark theme off") {
		t.Errorf("theme = %q", got)
	}

	list, err := r.App.Transactions.All(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("All = %v, %v", list, err)
	}
	if err := r.Run(ctx, []string{"delete", "-id", "999"}); err == nil {
		t.Error("deleting a missing id should fail")
	}
	run(t, r, out, "delete", "-id", strconv.FormatInt(list[0].ID, 10))
	if got := run(t, r, out, "list"); !strings.Contains(got, "No transactions yet") {
		t.Errorf("list after delete = %q", got)
	}
}

func TestFeedNeedsBroker(t *testing.T) {
	r, _ := newRunner(t)
	if err := r.Run(context.Background(), []string{"feed"}); err == nil {
		t.Error("feed without AMQP should fail")
	}
}

func TestCategories(t *testing.T) {
	r, out := newRunner(t)
	if got := run(t, r, out, "categories", "-income"); !strings.Contains(got, "Salary") {
		t.Errorf("income sources = %q", got)
	}
}

func TestCommandsRunAlongsideWatch(t *testing.T) {
	cfg := testConfig(t.TempDir())
	watcher, watchOut := newRunnerFor(t, cfg)
	run(t, watcher, watchOut, "signup", "-u", "alice", "-p", "secret")
	run(t, watcher, watchOut, "login", "-u", "alice", "-p", "secret")
	watchOut.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx, []string{"watch"}) }()
	defer func() {
		cancel()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("watch: %v", err)
		}
	}()

	// A second process on the same data directories.
	other, out := newRunnerFor(t, cfg)
	if got := run(t, other, out, "add", "-title", "Tea", "-amount", "2", "-category", "Food"); !strings.Contains(got, viewstate.MsgAdded) {
		t.Fatalf("add = %q", got)
	}
	if got := run(t, other, out, "theme"); !strings.Contains(got, "Dark theme on") {
		t.Errorf("theme = %q", got)
	}
	if got := run(t, other, out, "status"); !strings.Contains(got, "Logged in as alice") {
		t.Errorf("status = %q", got)
	}
}
