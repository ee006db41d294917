// Package metrics defines the small backend interface the ingestion service
// reports to. Concrete backends live in subpackages so the core never
// imports a vendor SDK.
package metrics

// Metric names emitted by the ingestion service.
const (
	// IngestTotal counts finished ingestions. Labels: format, status.
	IngestTotal = "ingest_total"

	// IngestRowsTotal counts materialized records. Labels: format.
	IngestRowsTotal = "ingest_rows_total"

	// IngestRejectedTotal counts requests turned away before parsing.
	// Labels: reason (busy, too_large, cancelled).
	IngestRejectedTotal = "ingest_rejected_total"

	// IngestDurationSeconds observes wall time per ingestion. Labels: format, status.
	IngestDurationSeconds = "ingest_duration_seconds"

	// IngestBytes observes input size per ingestion. Labels: format.
	IngestBytes = "ingest_bytes"
)

// Status label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Labels are metric dimensions. Backends decide which keys they keep.
type Labels map[string]string

// Backend receives metric updates. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }

var _ Backend = Nop{}
