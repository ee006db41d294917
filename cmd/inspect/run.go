package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JonMunkholm/tabular/internal/columnar"
	"github.com/JonMunkholm/tabular/internal/core"
	"github.com/JonMunkholm/tabular/internal/metrics"
	"github.com/JonMunkholm/tabular/internal/metrics/datadog"
)

// report is the JSON document printed in json mode.
type report struct {
	ID      string                `json:"id"`
	Source  core.SourceDescriptor `json:"source"`
	Columns []core.ColumnMetadata `json:"columns"`
	Stats   core.Stats            `json:"stats"`
	Total   int                   `json:"total"`
	Records []core.Record         `json:"records"`
	Typed   *core.TypedProjection `json:"typed,omitempty"`
}

// run ingests opts.file and writes the selected records to stdout, or to
// opts.out when set.
func run(ctx context.Context, opts options, stdout io.Writer) error {
	if opts.schemaFile != "" {
		if err := registerSchemaFile(opts.schemaFile); err != nil {
			return err
		}
	}

	var schema *core.Schema
	if opts.schema != "" {
		s, err := core.LookupSchema(opts.schema)
		if err != nil {
			return err
		}
		schema = &s
	}

	backend, closeBackend, err := newBackend(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeBackend(); err != nil {
			slog.Warn("metrics flush failed", "error", err)
		}
	}()

	data, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.file, err)
	}

	cfg := core.DefaultServiceConfig()
	cfg.Options = opts.engine
	cfg.MaxFileSize = max(int64(len(data)), 1)
	cfg.MaxConcurrent = 1
	cfg.RetainFor = -1
	svc := core.NewService(cfg, backend)

	out, err := svc.Ingest(ctx, opts.file, data)
	if err != nil {
		return err
	}
	if out.Err != nil {
		return out.Err
	}

	w := stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create %s: %w", opts.out, err)
		}
		defer f.Close()
		w = f
	}

	switch opts.format {
	case "arrow", "parquet":
		sel := out
		spec := opts.query
		spec.Page, spec.Size = 0, 0
		sel.Records, _ = spec.Apply(out.Records)
		if opts.format == "arrow" {
			return columnar.WriteIPC(w, sel)
		}
		return columnar.WriteParquet(w, sel)
	default:
		return writeReport(w, out, opts, schema)
	}
}

func writeReport(w io.Writer, out core.ParseOutcome, opts options, schema *core.Schema) error {
	records, total := opts.query.Apply(out.Records)
	rep := report{
		ID:      out.ID,
		Source:  out.Source,
		Columns: out.Columns,
		Stats:   out.Stats,
		Total:   total,
		Records: records,
	}

	if schema != nil {
		page := out
		page.Records = records
		proj := core.ProjectTyped(page, *schema)
		if proj.Err != nil {
			slog.Warn("schema projection incomplete", "schema", schema.Key, "missing", proj.Missing)
		}
		rep.Typed = &proj
	}

	enc := json.NewEncoder(w)
	if opts.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(rep)
}

// newBackend returns a Datadog backend when -datadog is set. Closing it
// submits the single run's counters.
func newBackend(opts options) (metrics.Backend, func() error, error) {
	if !opts.datadog {
		return metrics.Nop{}, func() error { return nil }, nil
	}
	b, err := datadog.NewBackend(context.Background(), datadog.Options{
		JobName: "tabular-inspect",
		Tags:    datadog.ParseTagsCSV(opts.tags),
	})
	if err != nil {
		return nil, nil, err
	}
	return b, b.Close, nil
}

func registerSchemaFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := core.RegisterSchemasYAML(f); err != nil {
		return fmt.Errorf("schema file %s: %w", path, err)
	}
	return nil
}
