package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"ledger/internal/amqp"
	"ledger/internal/charts"
	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/services"
	"ledger/internal/sheets"
	"ledger/internal/storage"
	"ledger/internal/worker"
)

func newFlags(name string, e *env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func (e *env) ledger() *services.Ledger {
	return e.app.Ledger.For(e.user.Email)
}

func credentials(name string, e *env, args []string) (string, string, error) {
	fs := newFlags(name, e)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	if *email == "" {
		fs.PrintDefaults()
		return "", "", fmt.Errorf("%w: missing required flag: email", core.ErrInvalidInput)
	}

	pw := *password
	if pw == "" {
		fmt.Fprint(e.stdout, "Password: ")
		var err error
		pw, err = readPassword(e.stdin)
		if err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprintln(e.stdout)
	}
	return *email, pw, nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal input such as pipes.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func cmdSignUp(ctx context.Context, e *env, args []string) error {
	email, password, err := credentials("signup", e, args)
	if err != nil {
		return err
	}
	u, err := e.app.Identity.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	cli.Success(e.stdout, "Signed up and signed in as %s", u.Email)
	return nil
}

func cmdSignIn(ctx context.Context, e *env, args []string) error {
	email, password, err := credentials("signin", e, args)
	if err != nil {
		return err
	}
	u, err := e.app.Identity.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	cli.Success(e.stdout, "Signed in as %s", u.Email)
	return nil
}

func cmdSignOut(ctx context.Context, e *env, _ []string) error {
	if err := e.app.Identity.SignOut(ctx); err != nil {
		return err
	}
	cli.Success(e.stdout, "Signed out")
	return nil
}

func cmdWhoAmI(ctx context.Context, e *env, _ []string) error {
	u, err := e.app.Identity.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if u == nil {
		fmt.Fprintln(e.stdout, "Not signed in")
		return nil
	}
	fmt.Fprintf(e.stdout, "%s (%s)\n", u.Email, u.Provider)
	return nil
}

func cmdSchema(ctx context.Context, e *env, _ []string) error {
	version, dirty, err := e.app.Store.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "schema version %d (latest %d)", version, storage.SchemaVersion)
	if dirty {
		fmt.Fprint(e.stdout, ", dirty")
	}
	fmt.Fprintln(e.stdout)
	return nil
}

func cmdAddCategory(ctx context.Context, e *env, args []string) error {
	fs := newFlags("add-category", e)
	name := fs.String("name", "", "Category name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := e.ledger().AddCategory(ctx, *name)
	if err != nil {
		return err
	}
	cli.Success(e.stdout, "Added category %s (id %d)", c.Name, c.ID)
	return nil
}

func cmdCategories(ctx context.Context, e *env, _ []string) error {
	categories, err := e.ledger().ListCategories(ctx)
	if err != nil {
		return err
	}
	return cli.RenderCategories(e.stdout, categories)
}

// resolveCategory accepts an exact category name or, failing that, an id.
func resolveCategory(ctx context.Context, l *services.Ledger, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, core.ErrUnknownCategory
	}
	categories, err := l.ListCategories(ctx)
	if err != nil {
		return 0, err
	}
	for _, c := range categories {
		if c.Name == ref {
			return c.ID, nil
		}
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}
	return 0, fmt.Errorf("category %q: %w", ref, core.ErrUnknownCategory)
}

func parseDateFlag(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now.UTC(), nil
	}
	return core.ParseDate(s)
}

func cmdAddExpense(ctx context.Context, e *env, args []string) error {
	fs := newFlags("add-expense", e)
	category := fs.String("category", "", "Category id or name")
	amount := fs.String("amount", "", "Amount, e.g. 12.50")
	date := fs.String("date", "", "Date as YYYY-MM-DD or RFC 3339 (default now)")
	description := fs.String("description", "", "Optional description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	l := e.ledger()
	categoryID, err := resolveCategory(ctx, l, *category)
	if err != nil {
		return err
	}
	when, err := parseDateFlag(*date, e.now())
	if err != nil {
		return err
	}
	x, err := l.AddExpense(ctx, categoryID, *amount, when, *description)
	if err != nil {
		return err
	}
	cli.Success(e.stdout, "Added expense %s on %s (id %d)", x.Amount, x.Date.Format("2006-01-02"), x.ID)
	return nil
}

func cmdExpenses(ctx context.Context, e *env, args []string) error {
	fs := newFlags("expenses", e)
	category := fs.String("category", "", "Only this category (id or name)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	l := e.ledger()
	var (
		expenses []core.Expense
		err      error
	)
	if *category != "" {
		categoryID, rerr := resolveCategory(ctx, l, *category)
		if rerr != nil {
			return rerr
		}
		expenses, err = l.ListExpensesByCategory(ctx, categoryID)
	} else {
		expenses, err = l.ListExpenses(ctx)
	}
	if err != nil {
		return err
	}
	names, err := l.CategoryNames(ctx)
	if err != nil {
		return err
	}
	return cli.RenderExpenses(e.stdout, expenses, names)
}

func cmdAddBill(ctx context.Context, e *env, args []string) error {
	fs := newFlags("add-bill", e)
	name := fs.String("name", "", "Bill name")
	amount := fs.String("amount", "", "Amount, e.g. 1200")
	deadline := fs.String("deadline", "", "Deadline as YYYY-MM-DD or RFC 3339")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *deadline == "" {
		return fmt.Errorf("%w: missing required flag: deadline", core.ErrInvalidDate)
	}
	when, err := core.ParseDate(*deadline)
	if err != nil {
		return err
	}
	b, err := e.ledger().AddBill(ctx, *name, *amount, when)
	if err != nil {
		return err
	}
	cli.Success(e.stdout, "Added bill %s of %s due %s (id %d)", b.Name, b.Amount, b.Deadline.Format("2006-01-02"), b.ID)
	return nil
}

func cmdBills(ctx context.Context, e *env, args []string) error {
	fs := newFlags("bills", e)
	due := fs.Bool("due", false, "Only bills due within BILL_DUE_WINDOW, overdue included")
	if err := fs.Parse(args); err != nil {
		return err
	}

	now := e.now()
	var (
		bills []core.Bill
		err   error
	)
	if *due {
		bills, err = e.app.Aggregates.BillsDueWithin(ctx, e.user.Email, now, e.cfg.BillDueWindow)
	} else {
		bills, err = e.app.Aggregates.PendingBills(ctx, e.user.Email)
	}
	if err != nil {
		return err
	}
	return cli.RenderBills(e.stdout, bills, now, e.cfg.BillDueWindow)
}

func cmdAddBudget(ctx context.Context, e *env, args []string) error {
	fs := newFlags("add-budget", e)
	category := fs.String("category", "", "Category id or name")
	amount := fs.String("amount", "", "Amount, e.g. 400")
	if err := fs.Parse(args); err != nil {
		return err
	}

	l := e.ledger()
	categoryID, err := resolveCategory(ctx, l, *category)
	if err != nil {
		return err
	}
	b, err := l.AddBudget(ctx, categoryID, *amount)
	if err != nil {
		return err
	}
	cli.Success(e.stdout, "Added budget %s (id %d)", b.Amount, b.ID)
	return nil
}

func cmdBudgets(ctx context.Context, e *env, _ []string) error {
	budgets, err := e.ledger().ListBudgets(ctx)
	if err != nil {
		return err
	}
	summaries, err := e.app.Aggregates.CategorySummaries(ctx, e.user.Email)
	if err != nil {
		return err
	}
	return cli.RenderBudgets(e.stdout, budgets, summaries)
}

func cmdDashboard(ctx context.Context, e *env, args []string) error {
	fs := newFlags("dashboard", e)
	chartPath := fs.String("chart", "", "Also write the category pie chart as PNG to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, err := e.app.Reporting.BuildDashboard(ctx, e.user.Email)
	if err != nil {
		return err
	}
	if err := cli.RenderDashboard(e.stdout, d, e.now(), e.cfg.BillDueWindow); err != nil {
		return err
	}

	if *chartPath == "" {
		return nil
	}
	return writeChart(*chartPath, d.PieChartSeries, e)
}

func writeChart(path string, series []core.ChartPoint, e *env) error {
	var buf bytes.Buffer
	if err := charts.RenderPieChart(series, &buf); err != nil {
		if errors.Is(err, charts.ErrNoChartData) {
			fmt.Fprintln(e.stdout, "No expenses to chart")
			return nil
		}
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write chart file: %w", err)
	}
	cli.Success(e.stdout, "Wrote chart to %s", path)
	return nil
}

func cmdExport(ctx context.Context, e *env, _ []string) error {
	if !e.cfg.ExportEnabled() {
		return fmt.Errorf("%w: GOOGLE_SPREADSHEET_ID is not set", core.ErrInvalidInput)
	}
	exporter, err := e.factory.CreateExporter(ctx, e.backend)
	if err != nil {
		return err
	}
	n, err := sheets.Export(ctx, e.ledger(), exporter)
	if err != nil {
		return err
	}
	cli.Success(e.stdout, "Exported %d expenses", n)
	return nil
}

func cmdWatch(ctx context.Context, e *env, args []string) error {
	fs := newFlags("watch", e)
	syncSheet := fs.Bool("sync", false, "Append newly created expenses to the configured Google Sheet")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if e.app.Events == nil {
		return fmt.Errorf("%w: the event bus is not configured or not reachable", core.ErrInvalidInput)
	}

	var syncer *worker.SyncWorker
	if *syncSheet {
		if !e.cfg.ExportEnabled() {
			return fmt.Errorf("%w: GOOGLE_SPREADSHEET_ID is not set", core.ErrInvalidInput)
		}
		exporter, err := e.factory.CreateExporter(ctx, e.backend)
		if err != nil {
			return err
		}
		syncer = worker.NewSyncWorker(e.user.Email, e.ledger(), exporter)
	}

	err := e.app.Events.ConsumeEvents(ctx, e.user.Email, func(ev *amqp.LedgerEvent) error {
		if syncer != nil {
			if err := syncer.HandleEvent(ctx, ev); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(e.stdout, "%s %-16s id=%d\n", ev.OccurredAt.Format(time.RFC3339), ev.Type, ev.EntityID)
		return err
	})
	if errors.Is(err, context.Canceled) {
		if syncer != nil {
			cli.Success(e.stdout, "Synced %d expenses", syncer.Synced())
		}
		return nil
	}
	return err
}
