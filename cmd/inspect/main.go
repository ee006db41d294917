// Command inspect ingests a local CSV or spreadsheet file and prints the
// parsed outcome. Filter, sort, and page flags run the same query the HTTP
// API does, and -format writes Arrow IPC or Parquet instead of JSON.
//
// Usage:
//
//	inspect -file auction.xls -filter 출품가=1000.. -sort 출품가 -dir desc
//	inspect -file auction.csv -format parquet -out auction.parquet
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/JonMunkholm/tabular/internal/core"
	_ "github.com/JonMunkholm/tabular/internal/core/schemas" // Register built-in schemas
	"github.com/JonMunkholm/tabular/internal/logging"
)

// filterFlags collects repeated -filter column=value flags.
type filterFlags map[string]core.Constraint

func (f filterFlags) String() string {
	parts := make([]string, 0, len(f))
	for col := range f {
		parts = append(parts, col)
	}
	return strings.Join(parts, ",")
}

func (f filterFlags) Set(v string) error {
	col, raw, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(col) == "" {
		return fmt.Errorf("filter %q: want column=value", v)
	}
	f[strings.TrimSpace(col)] = core.ParseConstraint(raw)
	return nil
}

// options is everything the command needs after flag parsing.
type options struct {
	file       string
	query      core.QuerySpec
	schema     string
	schemaFile string
	format     string
	out        string
	pretty     bool
	engine     core.Options

	datadog bool
	tags    string
}

func main() {
	opts, logLevel, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// stdout carries the data; logs go to stderr.
	logger := logging.New(os.Stderr, logLevel, "text")
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		logger.Error("inspect failed", "file", opts.file, "error", err)
		fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, string, error) {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	filters := filterFlags{}

	var (
		flagFile    = fs.String("file", "", "Path of the CSV, XLSX, or XLS file to ingest")
		flagSort    = fs.String("sort", "", "Column to sort by")
		flagDir     = fs.String("dir", "asc", "Sort direction: asc|desc")
		flagNulls   = fs.String("nulls", "last", "Where empty values sort: last|first")
		flagPage    = fs.Int("page", 1, "Page number, starting at 1")
		flagSize    = fs.Int("size", 0, "Page size; 0 prints every record")
		flagSchema  = fs.String("schema", "", "Project records onto a registered schema key")
		flagSchFile = fs.String("schema-file", "", "YAML file of extra schemas to register")
		flagFormat  = fs.String("format", "json", "Output format: json|arrow|parquet")
		flagOut     = fs.String("out", "", "Output path; stdout when empty")
		flagPretty  = fs.Bool("pretty", true, "Indent JSON output")

		flagHeaderRows = fs.Int("header-rows", core.DefaultHeaderSearchRows, "Leading rows scanned for the header")
		flagMinCols    = fs.Int("min-header-columns", core.DefaultMinHeaderColumns, "Non-empty cells a header row needs")
		flagThreshold  = fs.Float64("threshold", core.DefaultTypeThreshold, "Share of values a type needs to claim a column")
		flagKeepEmpty  = fs.Bool("keep-empty-rows", false, "Keep rows whose cells are all blank")
		flagBlankLines = fs.String("blank-lines", "greedy", "CSV blank line policy: greedy|skip")

		flagDatadog  = fs.Bool("datadog", false, "Report the run to Datadog (reads DD_API_KEY)")
		flagTags     = fs.String("tags", "", "Extra comma-separated Datadog tags")
		flagLogLevel = fs.String("log-level", "warn", "Log level: debug|info|warn|error")
	)
	fs.Var(filters, "filter", "Constraint column=value; value is text, a number, or min..max (repeatable)")

	if err := fs.Parse(args); err != nil {
		return options{}, "", err
	}

	file := strings.TrimSpace(*flagFile)
	if file == "" && fs.NArg() > 0 {
		file = fs.Arg(0)
	}
	if file == "" {
		fs.Usage()
		return options{}, "", errors.New("missing -file")
	}

	format := strings.ToLower(strings.TrimSpace(*flagFormat))
	switch format {
	case "json", "arrow", "parquet":
	default:
		return options{}, "", fmt.Errorf("unknown -format %q", *flagFormat)
	}
	if *flagPage < 1 || *flagSize < 0 {
		return options{}, "", errors.New("-page must be at least 1 and -size must not be negative")
	}

	engine := core.DefaultOptions()
	engine.Header.SearchRows = *flagHeaderRows
	engine.Header.MinColumns = *flagMinCols
	engine.TypeThreshold = *flagThreshold
	engine.KeepEmptyRows = *flagKeepEmpty
	engine.BlankLines = core.ParseBlankLinePolicy(*flagBlankLines)

	return options{
		file: file,
		query: core.QuerySpec{
			Constraints: filters,
			Sort: core.SortOptions{
				Field:     *flagSort,
				Direction: core.ParseDirection(*flagDir),
				Nulls:     core.ParseNullPlacement(*flagNulls),
			},
			Page: *flagPage,
			Size: *flagSize,
		},
		schema:     strings.TrimSpace(*flagSchema),
		schemaFile: strings.TrimSpace(*flagSchFile),
		format:     format,
		out:        *flagOut,
		pretty:     *flagPretty,
		engine:     engine,
		datadog:    *flagDatadog,
		tags:       *flagTags,
	}, *flagLogLevel, nil
}
