// Command sales-report runs the sales pipeline over one input file and
// writes the requested charts and exports.
//
//	sales-report [flags] <input>
//
// Exit codes: 0 success (artifact failures are reported but tolerated
// unless -strict), 1 usage, configuration or load failure, 2 data quality
// or schema failure, 3 artifact failures with -strict.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"salescli/internal/config"
	apperrors "salescli/internal/errors"
	"salescli/internal/infrastructure"
	"salescli/internal/operations"
	"salescli/pkg/contracts"
	"salescli/pkg/contracts/domain"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitData      = 2
	exitArtifacts = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options holds the parsed command line. Only flags the user actually set
// override the loaded configuration.
type options struct {
	input       string
	configPath  string
	outDir      string
	format      string
	sheet       string
	policy      string
	granularity string
	charts      string
	exports     string
	chartFormat string
	strict      bool
	set         map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("sales-report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file (defaults to sales.yaml when present)")
	fs.StringVar(&opts.outDir, "out", "", "output directory for charts and exports")
	fs.StringVar(&opts.format, "format", "", "input format: auto, csv, tsv or xlsx")
	fs.StringVar(&opts.sheet, "sheet", "", "worksheet to read from a spreadsheet (defaults to the first)")
	fs.StringVar(&opts.policy, "policy", "", "missing value policy: drop, fill_zero, fill_forward, fill_median or fill_mode")
	fs.StringVar(&opts.granularity, "granularity", "", "period granularity: day, week, month, quarter or year")
	fs.StringVar(&opts.charts, "charts", "", "comma separated chart types (trend, category, distribution, growth)")
	fs.StringVar(&opts.exports, "exports", "", "comma separated export formats (xlsx, csv, json, sqlite)")
	fs.StringVar(&opts.chartFormat, "chart-format", "", "chart image format: png or svg")
	fs.BoolVar(&opts.strict, "strict", false, "exit with status 3 when any artifact fails")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: sales-report [flags] <input>\n\nsales-report %s\n\nFlags:\n", contracts.Version)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("expected exactly one input file, got %d arguments", fs.NArg())
	}
	opts.input = fs.Arg(0)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// apply overlays the flags onto cfg and revalidates it
func (o *options) apply(cfg *config.Config) error {
	cfg.Input.Path = o.input
	if o.set["out"] {
		cfg.Report.OutputDir = o.outDir
	}
	if o.set["format"] {
		cfg.Input.Format = o.format
	}
	if o.set["sheet"] {
		cfg.Input.Sheet = o.sheet
	}
	if o.set["policy"] {
		cfg.Cleaning.MissingPolicy = strings.ToLower(strings.TrimSpace(o.policy))
	}
	if o.set["granularity"] {
		cfg.Aggregation.Granularity = o.granularity
	}
	if o.set["charts"] {
		cfg.Report.Charts = splitList(o.charts)
	}
	if o.set["exports"] {
		cfg.Report.Exports = splitList(o.exports)
	}
	if o.set["chart-format"] {
		cfg.Report.ChartFormat = o.chartFormat
	}
	if o.set["strict"] {
		cfg.Report.Strict = o.strict
	}
	if err := cfg.Validate(); err != nil {
		return apperrors.NewConfigError("invalid command line options", err)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	if err := opts.apply(cfg); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	// a one-shot process has no scrape endpoint
	cfg.Telemetry.MetricExporter = "none"

	// stdout carries the summary, so logs and spans go to stderr
	logger, err := infrastructure.NewLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: failed to initialize logger: %v\n", err)
		return exitFailure
	}
	defer infrastructure.CloseLogFile()

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, stderr, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			logger.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	tracer, err := operations.NewRunTracer(providers)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	manager := operations.NewManager(nil, nil, tracer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := manager.Run(ctx, operations.RunRequest{Input: opts.input, Config: cfg})
	if result != nil {
		printSummary(stdout, result)
	}
	return exitCode(result, runErr, cfg.Report.Strict, stderr)
}

func exitCode(result *domain.Run, err error, strict bool, stderr io.Writer) int {
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		switch apperrors.TypeOf(err) {
		case apperrors.ErrTypeDataQuality, apperrors.ErrTypeSchema:
			return exitData
		default:
			return exitFailure
		}
	}
	if strict && result != nil && result.Report != nil && result.Report.Partial() {
		fmt.Fprintf(stderr, "error: %d artifact(s) failed\n", len(result.Report.Failures))
		return exitArtifacts
	}
	return exitOK
}

func printSummary(w io.Writer, r *domain.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	elapsed := time.Duration(0)
	if r.CompletedAt != nil {
		elapsed = r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond)
	}
	fmt.Fprintf(tw, "Run %s %s in %s\n", r.ID, r.Status, elapsed)
	fmt.Fprintf(tw, "Input:\t%s\n", r.Input)

	if c := r.Clean; c != nil {
		fmt.Fprintf(tw, "Rows:\t%d read, %d kept (%d duplicates, %d missing, %d coercion failures, %d cells filled)\n",
			c.InputRows, c.OutputRows, c.DuplicatesRemoved, c.MissingDropped, c.CoercionFailures, c.CellsFilled)
	}

	if m := r.Metrics; m != nil {
		s := m.Summary
		fmt.Fprintf(tw, "Total sales:\t%.2f\n", s.TotalSales)
		fmt.Fprintf(tw, "Orders:\t%d\n", s.TotalOrders)
		fmt.Fprintf(tw, "Average order value:\t%.2f\n", s.AverageOrderValue)
		if !s.DateRange.Start.IsZero() {
			fmt.Fprintf(tw, "Date range:\t%s to %s\n",
				s.DateRange.Start.Format("2006-01-02"), s.DateRange.End.Format("2006-01-02"))
		}
		if rate := m.LatestGrowth(); rate != nil {
			fmt.Fprintf(tw, "Latest growth:\t%.1f%%\n", *rate*100)
		} else {
			fmt.Fprintf(tw, "Latest growth:\tn/a\n")
		}
		if len(m.Trend) > 0 {
			fmt.Fprintf(tw, "Trend (%s):\n", m.Granularity)
			for _, p := range m.Trend {
				fmt.Fprintf(tw, "  %s\t%.2f\n", p.Period.Label(), p.Total)
			}
		}
	}

	if rep := r.Report; rep != nil {
		if len(rep.Artifacts) > 0 {
			fmt.Fprintf(tw, "Artifacts (%s):\n", r.OutputDir)
			for _, a := range rep.Artifacts {
				fmt.Fprintf(tw, "  %s\t%d bytes\n", a.Name, a.Bytes)
			}
		}
		if len(rep.Failures) > 0 {
			fmt.Fprintf(tw, "Failed artifacts:\n")
			for _, f := range rep.Failures {
				fmt.Fprintf(tw, "  %s\t%s\n", f.Request.Name(), f.Message)
			}
		}
	}

	if r.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", r.Error)
	}
}
