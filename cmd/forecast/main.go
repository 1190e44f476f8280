// Command forecast runs the dashboard pipeline over a transactions file and
// writes the sales forecast as CSV.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"retail-dashboard/internal/config"
	"retail-dashboard/internal/models"
	"retail-dashboard/internal/observability"
	"retail-dashboard/internal/services"
)

const dateLayout = "2006-01-02"

type options struct {
	file      string
	sheet     string
	countries string
	start     string
	end       string
	horizon   int
	out       string
}

func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (options, error) {
	var opts options

	fset := flag.NewFlagSet("forecast", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&opts.file, "file", "", "transactions file (.xlsx or .csv)")
	fset.StringVar(&opts.sheet, "sheet", cfg.Dashboard.SheetName, "worksheet to read from .xlsx files")
	fset.StringVar(&opts.countries, "country", cfg.Dashboard.DefaultCountry, "comma separated countries to include")
	fset.StringVar(&opts.start, "start", "", "first day to include, YYYY-MM-DD (default: earliest date)")
	fset.StringVar(&opts.end, "end", "", "last day to include, YYYY-MM-DD (default: latest date)")
	fset.IntVar(&opts.horizon, "horizon", cfg.Dashboard.DefaultHorizon, fmt.Sprintf("days to forecast (%d-%d)", services.MinForecastHorizon, services.MaxForecastHorizon))
	fset.StringVar(&opts.out, "out", "", "write the CSV here instead of stdout")

	if err := fset.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func (o options) params() (services.Params, error) {
	p := services.Params{Horizon: o.horizon, Countries: []string{}}
	for _, c := range strings.Split(o.countries, ",") {
		if c = strings.TrimSpace(c); c != "" {
			p.Countries = append(p.Countries, c)
		}
	}

	var err error
	if o.start != "" {
		if p.Start, err = time.Parse(dateLayout, o.start); err != nil {
			return services.Params{}, fmt.Errorf("invalid -start: %w", err)
		}
	}
	if o.end != "" {
		if p.End, err = time.Parse(dateLayout, o.end); err != nil {
			return services.Params{}, fmt.Errorf("invalid -end: %w", err)
		}
	}
	return p, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLoggerTo(stderr, cfg.Logger)

	opts, err := parseFlags(args, cfg, stderr)
	if err != nil {
		return err
	}

	params, err := opts.params()
	if err != nil {
		return err
	}

	records, err := load(opts.file, opts.sheet)
	if err != nil {
		return err
	}
	logger.Info("transactions loaded", "file", opts.file, "rows", len(records))

	result, err := services.Run(records, params)
	if err != nil {
		return err
	}

	logger.Info("forecast computed",
		"countries", result.Params.Countries,
		"start", result.Params.Start.Format(dateLayout),
		"end", result.Params.End.Format(dateLayout),
		"total_sales", result.Summary.TotalSales.StringFixed(2),
		"orders", result.Summary.TotalOrders,
		"customers", result.Summary.UniqueCustomers,
		"slope", result.Forecast.Slope,
		"degenerate", result.Forecast.Degenerate,
	)

	if opts.out == "" {
		return services.WriteForecastCSV(stdout, result.Forecast.Points)
	}

	f, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := services.WriteForecastCSV(f, result.Forecast.Points); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	logger.Info("forecast written", "path", opts.out, "points", len(result.Forecast.Points))
	return nil
}

func load(path, sheet string) ([]models.Transaction, error) {
	if path == "" {
		return nil, services.ErrMissingFile
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return services.Load(f, path, services.LoadOptions{SheetName: sheet})
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("forecast failed", "error", err)
		os.Exit(1)
	}
}
