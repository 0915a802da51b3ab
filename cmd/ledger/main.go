// Command ledger records categories, expenses, bills and budgets for the
// signed-in user and prints dashboards over them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/identity"
	"ledger/internal/log"
)

var errUsage = errors.New("missing command")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		cli.Failure(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command runs against.
type env struct {
	cfg     *config.Config
	backend backend.Config
	factory backend.Factory
	app     *backend.App
	user    *identity.User
	logger  *log.Logger
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	now     func() time.Time
}

type command struct {
	usage string
	// public commands run without a signed-in user.
	public bool
	run    func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"signup":       {usage: "create an account and sign in", public: true, run: cmdSignUp},
	"signin":       {usage: "sign in", public: true, run: cmdSignIn},
	"signout":      {usage: "sign out", public: true, run: cmdSignOut},
	"whoami":       {usage: "show the signed-in user", public: true, run: cmdWhoAmI},
	"schema":       {usage: "show the database schema version", public: true, run: cmdSchema},
	"add-category": {usage: "add a category", run: cmdAddCategory},
	"categories":   {usage: "list categories", run: cmdCategories},
	"add-expense":  {usage: "add an expense to a category", run: cmdAddExpense},
	"expenses":     {usage: "list expenses, optionally of one category", run: cmdExpenses},
	"add-bill":     {usage: "add a bill with a deadline", run: cmdAddBill},
	"bills":        {usage: "list pending bills", run: cmdBills},
	"add-budget":   {usage: "add a budget to a category", run: cmdAddBudget},
	"budgets":      {usage: "list budgets against spending", run: cmdBudgets},
	"dashboard":    {usage: "show totals, per-category summary and bills", run: cmdDashboard},
	"export":       {usage: "append expenses to the configured Google Sheet", run: cmdExport},
	"watch":        {usage: "print ledger events, optionally syncing new expenses to the sheet", run: cmdWatch},
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "Path to the ledger database (overrides LEDGER_DB_PATH)")
	envFile := fs.String("env", ".env", "Path to an optional .env file")
	fs.Usage = func() { usage(fs, stderr) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", core.ErrInvalidInput, name)
	}

	if err := cli.LoadEnvFile(*envFile); err != nil {
		return err
	}
	cfg, err := cli.LoadAndValidateConfig(func(c *config.Config) {
		if *dbPath != "" {
			c.LedgerDBPath = *dbPath
		}
	})
	if err != nil {
		return err
	}
	logger, err := cli.SetupLogger(cfg.LogLevel, stderr)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
	ctx = log.WithContext(ctx, logger)

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	factory := backend.NewFactory(logger)
	app, err := factory.CreateApp(ctx, bc)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Cleanup(); err != nil {
			logger.Warn("Cleanup failed", log.FieldOperation, log.OpShutdown, log.FieldError, err)
		}
	}()

	e := &env{
		cfg:     cfg,
		backend: bc,
		factory: factory,
		app:     app,
		logger:  logger,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		now:     time.Now,
	}

	if !cmd.public {
		if e.user, err = identity.RequireUser(ctx, app.Identity); err != nil {
			return err
		}
	}

	start := time.Now()
	err = cmd.run(ctx, e, fs.Args()[1:])
	fields := log.NewFields().
		WithCommand(name, time.Since(start).Milliseconds(), err == nil).
		WithError(err)
	if e.user != nil {
		fields.WithUser(e.user.Email)
	}
	logger.Debug("Command finished", fields.ToSlice()...)
	return err
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "Usage: ledger [-db path] [-env file] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %s\n", name, commands[name].usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	fs.PrintDefaults()
}
