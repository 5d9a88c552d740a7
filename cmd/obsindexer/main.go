package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"ObservationsIndexer/internal/app"
	"ObservationsIndexer/internal/config"
	"ObservationsIndexer/internal/crawler"
	"ObservationsIndexer/internal/logging"
)

const usage = `usage: obsindexer <command> [flags]

commands:
  crawl    extract FITS headers of a tree into batch files
  insert   reconcile batch files into the catalog
  run      crawl and insert without intermediate files
  watch    ingest the previous day on a schedule
  summary  print catalog size and date range
`

func main() {
	ctx := context.Background()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(ctx, cfg, logger, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Error("obsindexer stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return flag.ErrHelp
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "crawl":
		return crawlCmd(ctx, cfg, logger, args)
	case "insert":
		return insertCmd(ctx, cfg, logger, args, stdout)
	case "run":
		return runCmd(ctx, cfg, logger, args, stdout)
	case "watch":
		return watchCmd(ctx, cfg, logger, args)
	case "summary":
		return summaryCmd(ctx, cfg, logger, args, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// selectionFlags registers the date selection flags shared by crawl and run.
type selectionFlags struct {
	date, from, to string
	all            bool
}

func (s *selectionFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.date, "date", "", "single date YYMMDD (default yesterday)")
	fs.StringVar(&s.from, "from", "", "first date YYMMDD of an inclusive range")
	fs.StringVar(&s.to, "to", "", "last date YYMMDD of an inclusive range")
	fs.BoolVar(&s.all, "all", false, "select every date directory")
}

func (s selectionFlags) selection(now time.Time) (crawler.Selection, error) {
	switch {
	case s.all:
		if s.date != "" || s.from != "" || s.to != "" {
			return crawler.Selection{}, fmt.Errorf("--all cannot be combined with a date")
		}
		return crawler.SelectAll(), nil
	case s.from != "" || s.to != "":
		if s.from == "" || s.to == "" || s.date != "" {
			return crawler.Selection{}, fmt.Errorf("a range needs both --from and --to and no --date")
		}
		from, err := crawler.ParseDay(s.from)
		if err != nil {
			return crawler.Selection{}, err
		}
		to, err := crawler.ParseDay(s.to)
		if err != nil {
			return crawler.Selection{}, err
		}
		return crawler.SelectRange(from, to)
	case s.date != "":
		day, err := crawler.ParseDay(s.date)
		if err != nil {
			return crawler.Selection{}, err
		}
		return crawler.SelectDate(day), nil
	default:
		return crawler.SelectDate(now.AddDate(0, 0, -1)), nil
	}
}

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (t *multiFlag) String() string { return strings.Join(*t, ",") }

func (t *multiFlag) Set(v string) error {
	*t = append(*t, v)
	return nil
}

func crawlCmd(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("crawl", flag.ContinueOnError)
	var sel selectionFlags
	sel.register(fs)
	base := fs.String("base", "", "tree to crawl, e.g. gbt-raw")
	out := fs.String("o", ".", "output directory for batch files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *base == "" {
		return fmt.Errorf("crawl: --base is required")
	}

	selection, err := sel.selection(time.Now().In(cfg.Schedule.Location()))
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	application, err := app.New(ctx, cfg, logger, app.Options{SkipStorage: true})
	if err != nil {
		return err
	}
	defer application.Close()

	_, err = application.Crawl(ctx, *base, selection, *out)
	return err
}

func insertCmd(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("insert", flag.ContinueOnError)
	var files multiFlag
	fs.Var(&files, "file", "batch file to insert (repeatable); remaining arguments are files too")
	reload := fs.Bool("reload-db", false, "drop and recreate the catalog table first")
	dryRun := fs.Bool("dry-run", false, "reconcile against an in-memory catalog")
	if err := fs.Parse(args); err != nil {
		return err
	}
	files = append(files, fs.Args()...)
	if len(files) == 0 {
		return fmt.Errorf("insert: no batch file given")
	}

	application, err := app.New(ctx, cfg, logger, app.Options{DryRun: *dryRun, ResetSchema: *reload})
	if err != nil {
		return err
	}
	defer application.Close()

	for _, path := range files {
		report, err := application.Insert(ctx, path)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, report.String())
	}
	return nil
}

func runCmd(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var sel selectionFlags
	sel.register(fs)
	var trees multiFlag
	fs.Var(&trees, "tree", "tree to ingest (repeatable, default: scheduled trees)")
	dryRun := fs.Bool("dry-run", false, "reconcile against an in-memory catalog")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(trees) == 0 {
		trees = cfg.Schedule.Trees
	}

	selection, err := sel.selection(time.Now().In(cfg.Schedule.Location()))
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	application, err := app.New(ctx, cfg, logger, app.Options{DryRun: *dryRun})
	if err != nil {
		return err
	}
	defer application.Close()

	reports, err := application.Run(ctx, trees, selection)
	for _, r := range reports {
		fmt.Fprintln(stdout, r.String())
	}
	return err
}

func watchCmd(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	application, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Watch(ctx)
}

func summaryCmd(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	application, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer application.Close()

	summary, err := application.Summary(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "entries: %d\n", summary.Count)
	if summary.First != nil && summary.Last != nil {
		fmt.Fprintf(stdout, "first:   %s\nlast:    %s\n", summary.First.Format(time.RFC3339), summary.Last.Format(time.RFC3339))
	}
	return nil
}
