package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"daybook/internal/amqp"
	"daybook/internal/app"
	"daybook/internal/core"
	"daybook/internal/log"
	"daybook/internal/middleware/trace"
	"daybook/internal/viewstate"
)

var (
	ErrUsage       = errors.New("usage")
	ErrNotLoggedIn = errors.New("not logged in, run: daybook login -u NAME -p PASSWORD")
)

// commandTimeout bounds how long a one-shot command waits for a holder.
const commandTimeout = 30 * time.Second

type command struct {
	summary string
	auth    bool
	run     func(r *Runner, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"signup":        {"create an account", false, (*Runner).signup},
	"login":         {"log in", false, (*Runner).login},
	"status":        {"show who is logged in", false, (*Runner).status},
	"logout":        {"log out and delete all transactions", true, (*Runner).logout},
	"reset-account": {"log out and delete every account", true, (*Runner).resetAccount},
	"add":           {"add an expense or income", true, (*Runner).add},
	"list":          {"list all transactions", true, (*Runner).list},
	"delete":        {"delete a transaction by id", true, (*Runner).delete},
	"home":          {"show balance and grouped transactions", true, (*Runner).home},
	"top":           {"show the largest expenses", true, (*Runner).top},
	"report":        {"show the recent-days report and export it", true, (*Runner).report},
	"theme":         {"toggle the dark theme", true, (*Runner).theme},
	"categories":    {"list suggested categories", false, (*Runner).categories},
	"watch":         {"print the home totals on every change", true, (*Runner).watch},
	"feed":          {"print change events from the message broker", false, (*Runner).feed},
}

// Runner dispatches command-line intents to the view-state holders and
// prints their snapshots.
type Runner struct {
	App    *app.App
	Out    io.Writer
	tracer *trace.Tracer
}

func NewRunner(a *app.App, out io.Writer) *Runner {
	return &Runner{App: a, Out: out, tracer: trace.NewTracer()}
}

// Run executes args[0] with the remaining arguments.
func (r *Runner) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		r.usage()
		return ErrUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		r.usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}

	return r.tracer.Run(ctx, args[0], func(ctx context.Context) error {
		if cmd.auth {
			if err := r.requireLogin(ctx); err != nil {
				return err
			}
		}
		return cmd.run(r, ctx, args[1:])
	})
}

func (r *Runner) usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(r.Out, "usage: daybook <command> [flags]")
	fmt.Fprintln(r.Out)
	for _, name := range names {
		fmt.Fprintf(r.Out, "  %-14s %s\n", name, commands[name].summary)
	}
}

func (r *Runner) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(r.Out)
	return fs
}

// await blocks until cond holds on h, bounded by commandTimeout.
func await(ctx context.Context, h interface {
	Updated() <-chan struct{}
	Done() <-chan struct{}
}, cond func() bool) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return viewstate.WaitFor(ctx, h, cond)
}

func (r *Runner) requireLogin(ctx context.Context) error {
	auth := viewstate.NewAuthHolder(ctx, r.App.Sessions)
	defer auth.Close()
	if err := await(ctx, auth, func() bool { return auth.Status() != viewstate.LoginUnknown }); err != nil {
		return err
	}
	if auth.Status() != viewstate.LoggedIn {
		return ErrNotLoggedIn
	}
	return nil
}

func (r *Runner) credentials(name string, args []string) (string, string, error) {
	fs := r.flags(name)
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	return *user, *pass, nil
}

func (r *Runner) signup(ctx context.Context, args []string) error {
	user, pass, err := r.credentials("signup", args)
	if err != nil {
		return err
	}
	auth := viewstate.NewAuthHolder(ctx, r.App.Sessions)
	defer auth.Close()

	auth.Signup(user, pass)
	if err := await(ctx, auth, func() bool { return auth.SignupState().Phase != viewstate.Loading }); err != nil {
		return err
	}
	if st := auth.SignupState(); st.Phase == viewstate.Failed {
		return errors.New(st.Message)
	}
	fmt.Fprintf(r.Out, "Account created for %s. Log in with: daybook login -u %s\n", strings.TrimSpace(user), strings.TrimSpace(user))
	return nil
}

func (r *Runner) login(ctx context.Context, args []string) error {
	user, pass, err := r.credentials("login", args)
	if err != nil {
		return err
	}
	auth := viewstate.NewAuthHolder(ctx, r.App.Sessions)
	defer auth.Close()

	auth.Login(user, pass)
	if err := await(ctx, auth, func() bool { return auth.LoginState().Phase != viewstate.Loading }); err != nil {
		return err
	}
	if st := auth.LoginState(); st.Phase == viewstate.Failed {
		return errors.New(st.Message)
	}
	fmt.Fprintf(r.Out, "Logged in as %s\n", strings.TrimSpace(user))
	return nil
}

func (r *Runner) status(ctx context.Context, _ []string) error {
	p := r.profileHolder(ctx)
	defer p.Close()
	if err := await(ctx, p, func() bool { return p.Snapshot().Loaded }); err != nil {
		return err
	}
	if name := p.Snapshot().Username; name != "" {
		fmt.Fprintf(r.Out, "Logged in as %s\n", name)
	} else {
		fmt.Fprintln(r.Out, "Logged out")
	}
	return nil
}

func (r *Runner) profileHolder(ctx context.Context) *viewstate.ProfileHolder {
	return viewstate.NewProfileHolder(ctx, r.App.Sessions, r.App.Transactions, r.App.Sessions)
}

func (r *Runner) logout(ctx context.Context, _ []string) error {
	p := r.profileHolder(ctx)
	defer p.Close()
	if err := p.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(r.Out, "Logged out")
	return nil
}

func (r *Runner) resetAccount(ctx context.Context, _ []string) error {
	p := r.profileHolder(ctx)
	defer p.Close()
	if err := p.ResetAccount(ctx); err != nil {
		return err
	}
	fmt.Fprintln(r.Out, "All accounts and transactions deleted")
	return nil
}

func (r *Runner) add(ctx context.Context, args []string) error {
	fs := r.flags("add")
	var in viewstate.AddInput
	fs.StringVar(&in.Title, "title", "", "what the money was for")
	fs.StringVar(&in.Amount, "amount", "", "amount, e.g. 12.50 or 12,50")
	fs.StringVar(&in.Date, "date", core.Today().Entry(), "date as dd/MM/yyyy")
	fs.StringVar(&in.Category, "category", "", "expense category")
	fs.StringVar(&in.Note, "note", "", "optional note")
	fs.StringVar(&in.ReceiptRef, "receipt", "", "optional receipt image path")
	fs.BoolVar(&in.Income, "income", false, "record income instead of an expense")
	fs.StringVar(&in.Source, "source", "", "income source, e.g. Salary")
	if err := fs.Parse(args); err != nil {
		return err
	}

	h := viewstate.NewAddTransactionHolder(ctx, r.App.Transactions, r.App.Config.MaxTransactionAmount, r.App.Formatter)
	defer h.Close()

	h.Submit(in)
	if err := await(ctx, h, func() bool { return h.State().Phase != viewstate.Loading }); err != nil {
		return err
	}
	st := h.State()
	if st.Phase == viewstate.Failed {
		return errors.New(st.Message)
	}
	fmt.Fprintln(r.Out, st.Message)
	return nil
}

func (r *Runner) list(ctx context.Context, _ []string) error {
	h := viewstate.NewTransactionsHolder(ctx, r.App.Transactions)
	defer h.Close()
	if err := await(ctx, h, func() bool { return h.Snapshot().Loaded }); err != nil {
		return err
	}
	s := h.Snapshot()
	if s.Message != "" {
		return errors.New(s.Message)
	}
	writeTransactions(r.Out, s.Transactions, r.App.Formatter)
	return nil
}

func (r *Runner) delete(ctx context.Context, args []string) error {
	fs := r.flags("delete")
	id := fs.Int64("id", 0, "transaction id, as shown by list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return fmt.Errorf("%w: delete needs -id", ErrUsage)
	}

	h := viewstate.NewTransactionsHolder(ctx, r.App.Transactions)
	defer h.Close()
	if err := await(ctx, h, func() bool { return h.Snapshot().Loaded }); err != nil {
		return err
	}
	if msg := h.Snapshot().Message; msg != "" {
		return errors.New(msg)
	}
	target, ok := findTransaction(h.Snapshot().Transactions, *id)
	if !ok {
		return fmt.Errorf("no transaction with id %d", *id)
	}

	h.Delete(target)
	if err := await(ctx, h, func() bool {
		s := h.Snapshot()
		_, still := findTransaction(s.Transactions, *id)
		return !still || s.Message != ""
	}); err != nil {
		return err
	}
	if msg := h.Snapshot().Message; msg != "" {
		return errors.New(msg)
	}
	fmt.Fprintf(r.Out, "Deleted %q\n", target.Title)
	return nil
}

func findTransaction(list []core.Transaction, id int64) (core.Transaction, bool) {
	for _, t := range list {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}

func (r *Runner) homeHolder(ctx context.Context) *viewstate.HomeHolder {
	return viewstate.NewHomeHolder(ctx, r.App.Transactions, r.App.Prefs, r.App.Sessions, r.App.Formatter)
}

func homeReady(s viewstate.HomeSnapshot) bool {
	return s.Loaded && s.ThemeKnown && s.ProfileKnown
}

func (r *Runner) home(ctx context.Context, args []string) error {
	fs := r.flags("home")
	group := fs.String("group", "date", "group by date or category")
	day := fs.String("day", "", "only show this day (dd/MM/yyyy)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, ok := core.ParseGroupKey(*group)
	if !ok {
		return fmt.Errorf("%w: -group must be date or category", ErrUsage)
	}
	filter := viewstate.HomeFilter{GroupBy: key}
	if *day != "" {
		d, err := core.ParseDate(*day)
		if err != nil {
			return fmt.Errorf("%w: -day: %v", ErrUsage, err)
		}
		filter.Day = d
	}

	h := r.homeHolder(ctx)
	defer h.Close()
	if err := await(ctx, h, func() bool { return homeReady(h.Snapshot()) }); err != nil {
		return err
	}
	if msg := h.Snapshot().Message; msg != "" {
		return errors.New(msg)
	}
	h.SetFilter(filter)
	writeHome(r.Out, h.Snapshot(), r.App.Formatter)
	return nil
}

func (r *Runner) theme(ctx context.Context, _ []string) error {
	h := r.homeHolder(ctx)
	defer h.Close()
	if err := await(ctx, h, func() bool { return h.Snapshot().ThemeKnown }); err != nil {
		return err
	}
	if msg := h.Snapshot().Message; msg != "" {
		return errors.New(msg)
	}
	want := !h.Snapshot().DarkTheme
	if err := h.ToggleTheme(ctx); err != nil {
		return err
	}
	if err := await(ctx, h, func() bool { return h.Snapshot().DarkTheme == want }); err != nil {
		return err
	}
	if want {
		fmt.Fprintln(r.Out, "Dark theme on")
	} else {
		fmt.Fprintln(r.Out, "Dark theme off")
	}
	return nil
}

func (r *Runner) top(ctx context.Context, args []string) error {
	fs := r.flags("top")
	n := fs.Int("n", 5, "how many expenses")
	if err := fs.Parse(args); err != nil {
		return err
	}
	list, err := r.App.Transactions.TopExpenses(ctx, *n)
	if err != nil {
		return err
	}
	writeTransactions(r.Out, list, r.App.Formatter)
	return nil
}

func (r *Runner) report(ctx context.Context, args []string) error {
	fs := r.flags("report")
	by := fs.String("by", "date", "group by date or category")
	pdf := fs.Bool("pdf", false, "write the report as a PDF")
	sheets := fs.Bool("sheets", false, "append the report to Google Sheets")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, ok := core.ParseGroupKey(*by)
	if !ok {
		return fmt.Errorf("%w: -by must be date or category", ErrUsage)
	}

	h := viewstate.NewReportHolder(ctx, r.App.Transactions, r.App.Formatter)
	defer h.Close()
	if err := await(ctx, h, func() bool { return h.Snapshot().Loaded }); err != nil {
		return err
	}
	if msg := h.Snapshot().Message; msg != "" {
		return errors.New(msg)
	}
	writeReport(r.Out, h.Snapshot(), key, r.App.Transactions.WindowDays(), r.App.Formatter)

	if *pdf {
		path, err := h.Export(ctx, r.App.PDF)
		if err != nil {
			return fmt.Errorf("pdf export: %w", err)
		}
		fmt.Fprintf(r.Out, "PDF written to %s\n", path)
	}
	if *sheets {
		var e viewstate.Exporter
		if r.App.Sheets != nil {
			e = r.App.Sheets
		}
		ref, err := h.Export(ctx, e)
		if err != nil {
			return fmt.Errorf("sheets export: %w", err)
		}
		fmt.Fprintf(r.Out, "Appended to %s\n", ref)
	}
	return nil
}

func (r *Runner) categories(_ context.Context, args []string) error {
	fs := r.flags("categories")
	income := fs.Bool("income", false, "list income sources")
	if err := fs.Parse(args); err != nil {
		return err
	}
	list := core.ExpenseCategories
	if *income {
		list = core.IncomeSources
	}
	for _, c := range list {
		fmt.Fprintln(r.Out, c)
	}
	return nil
}

// watch prints a totals line on every change until ctx is done. With a
// broker configured, changes made by other processes trigger a refresh too.
// The preferences store is only locked while it is read, so other commands
// keep working alongside.
func (r *Runner) watch(ctx context.Context, _ []string) error {
	h := r.homeHolder(ctx)
	defer h.Close()

	if r.App.Feed != nil {
		go func() {
			err := r.App.Feed.ConsumeChanges(ctx, func(*amqp.ChangeEvent) error {
				r.App.Changes.Notify()
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.WarnContext(ctx, "Change feed stopped", log.FieldComponent, log.ComponentCLI, log.FieldError, err)
			}
		}()
	}

	var last string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.Updated():
		}
		s := h.Snapshot()
		if !s.Loaded {
			continue
		}
		line := fmt.Sprintf("balance %s  income %s  expense %s  (%d transactions)",
			s.Balance, s.Income, s.Expense, len(s.Transactions))
		if s.Message != "" {
			line = s.Message
		}
		if line != last {
			last = line
			fmt.Fprintf(r.Out, "%s  %s\n", time.Now().Format(time.TimeOnly), line)
		}
	}
}

func (r *Runner) feed(ctx context.Context, _ []string) error {
	if r.App.Feed == nil {
		return errors.New("change feed not configured, set AMQP_URL")
	}
	err := r.App.Feed.ConsumeChanges(ctx, func(e *amqp.ChangeEvent) error {
		if e.TransactionID != 0 {
			fmt.Fprintf(r.Out, "%s %s transaction %d\n", e.Timestamp.Format(time.RFC3339), e.Op, e.TransactionID)
		} else {
			fmt.Fprintf(r.Out, "%s %s\n", e.Timestamp.Format(time.RFC3339), e.Op)
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
