// Command accountbook is a development shell over the ledger store.
//
//	accountbook add -kind expense -amount 10,000 -note lunch -date 2026-10-01
//	accountbook update -id 3 -amount 12,000
//	accountbook list
//	accountbook show -id 3
//	accountbook totals
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"accountbook/internal/cli"
	"accountbook/internal/core"
	"accountbook/internal/log"
	"accountbook/internal/services"
)

const dateLayout = "2006-01-02"

var errUsage = errors.New("usage: accountbook add|update|list|show|totals [flags]")

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := cli.InitService(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}

	loc, _ := cfg.Location()
	err = run(ctx, svc, loc, os.Args[1:], os.Stdout)
	if cerr := svc.Close(); cerr != nil {
		logger.Error("Failed to close ledger service", log.FieldError, cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

// describeError tells the user whether running the command again may help.
func describeError(err error) string {
	if core.IsRetryable(err) {
		return fmt.Sprintf("%v (temporary failure, try again)", err)
	}
	return err.Error()
}

// ledger is the part of services.LedgerService the shell drives.
type ledger interface {
	Insert(ctx context.Context, d core.Draft) (core.Entry, error)
	Update(ctx context.Context, e core.Entry) (core.Entry, error)
	List(ctx context.Context) ([]core.Entry, error)
	Get(ctx context.Context, id int64) (core.Entry, error)
	MonthlyTotals(ctx context.Context) ([]core.MonthTotal, error)
}

var _ ledger = (*services.LedgerService)(nil)

func run(ctx context.Context, l ledger, loc *time.Location, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	if loc == nil {
		loc = time.Local
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		return runAdd(ctx, l, loc, rest, out)
	case "update":
		return runUpdate(ctx, l, loc, rest, out)
	case "list":
		return runList(ctx, l, out)
	case "show":
		return runShow(ctx, l, rest, out)
	case "totals":
		return runTotals(ctx, l, out)
	}
	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

type entryFlags struct {
	kind   string
	amount string
	note   string
	date   string
	photo  string
}

func (f *entryFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.kind, "kind", "", "expense or income")
	fs.StringVar(&f.amount, "amount", "", "amount in won, separators allowed")
	fs.StringVar(&f.note, "note", "", "free-text note")
	fs.StringVar(&f.date, "date", "", "occurred date, "+dateLayout)
	fs.StringVar(&f.photo, "photo", "", "photo URI")
}

func runAdd(ctx context.Context, l ledger, loc *time.Location, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var f entryFlags
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var d core.Draft
	var err error
	if f.kind != "" {
		if d.Kind, err = core.ParseKind(f.kind); err != nil {
			return err
		}
	}
	if d.Amount, err = core.ParseAmount(f.amount); err != nil {
		return err
	}
	if f.date != "" {
		if d.OccurredAt, err = time.ParseInLocation(dateLayout, f.date, loc); err != nil {
			return fmt.Errorf("parse date: %w", err)
		}
	}
	d.Note = f.note
	d.PhotoRef = core.PhotoRef(f.photo)

	entry, err := l.Insert(ctx, d)
	if err != nil {
		return err
	}
	return printEntry(out, entry)
}

func runUpdate(ctx context.Context, l ledger, loc *time.Location, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var f entryFlags
	f.register(fs)
	id := fs.Int64("id", 0, "entry id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("update: %w", core.ErrMissingID)
	}

	entry, err := l.Get(ctx, *id)
	if err != nil {
		return err
	}

	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if set["kind"] {
		if entry.Kind, err = core.ParseKind(f.kind); err != nil {
			return err
		}
	}
	if set["amount"] {
		if entry.Amount, err = core.ParseAmount(f.amount); err != nil {
			return err
		}
	}
	if set["note"] {
		entry.Note = f.note
	}
	if set["date"] {
		if entry.OccurredAt, err = time.ParseInLocation(dateLayout, f.date, loc); err != nil {
			return fmt.Errorf("parse date: %w", err)
		}
	}
	if set["photo"] {
		entry.PhotoRef = core.PhotoRef(f.photo)
	}

	updated, err := l.Update(ctx, entry)
	if err != nil {
		return err
	}
	return printEntry(out, updated)
}

func runList(ctx context.Context, l ledger, out io.Writer) error {
	entries, err := l.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tKIND\tAMOUNT\tNOTE")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			e.ID, e.OccurredAt.Format(dateLayout), e.Kind, core.FormatAmount(e.Amount), e.Note)
	}
	return w.Flush()
}

func runShow(ctx context.Context, l ledger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	id := fs.Int64("id", 0, "entry id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	entry, err := l.Get(ctx, *id)
	if err != nil {
		return err
	}
	return printEntry(out, entry)
}

func runTotals(ctx context.Context, l ledger, out io.Writer) error {
	totals, err := l.MonthlyTotals(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MONTH\tEXPENSE\tINCOME")
	for _, m := range totals {
		fmt.Fprintf(w, "%04d-%02d\t%s\t%s\n",
			m.Year, m.MonthIndex+1, core.FormatAmount(m.ExpenseSum), core.FormatAmount(m.IncomeSum))
	}
	expense, income := core.SumWindow(totals)
	fmt.Fprintf(w, "TOTAL\t%s\t%s\n", core.FormatAmount(expense), core.FormatAmount(income))
	return w.Flush()
}

func printEntry(out io.Writer, e core.Entry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "id\t%d\n", e.ID)
	fmt.Fprintf(w, "kind\t%s\n", e.Kind)
	fmt.Fprintf(w, "amount\t%s\n", core.FormatAmount(e.Amount))
	fmt.Fprintf(w, "note\t%s\n", e.Note)
	fmt.Fprintf(w, "date\t%s\n", e.OccurredAt.Format(dateLayout))
	if e.PhotoRef != nil {
		fmt.Fprintf(w, "photo\t%s\n", *e.PhotoRef)
	}
	fmt.Fprintf(w, "created\t%s\n", e.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "updated\t%s\n", e.UpdatedAt.Format(time.RFC3339))
	return w.Flush()
}
