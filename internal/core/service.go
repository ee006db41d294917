package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/JonMunkholm/tabular/internal/logging"
	"github.com/JonMunkholm/tabular/internal/metrics"
	"github.com/google/uuid"
)

// ErrFileTooLarge is returned when an input exceeds ServiceConfig.MaxFileSize.
var ErrFileTooLarge = errors.New("file too large")

// ErrOutcomeNotFound is returned for unknown or expired ingestion IDs.
var ErrOutcomeNotFound = errors.New("ingestion not found")

// Service defaults.
const (
	DefaultMaxFileSize = 32 << 20
	DefaultRetainFor   = 15 * time.Minute
	DefaultMaxRetained = 64
)

// ServiceConfig holds the limits a Service enforces around the engine.
type ServiceConfig struct {
	Options       Options
	MaxFileSize   int64
	MaxConcurrent int
	MaxWait       time.Duration

	// RetainFor is how long a successful outcome stays queryable by ID.
	// Zero uses DefaultRetainFor; negative disables retention.
	RetainFor   time.Duration
	MaxRetained int
}

// DefaultServiceConfig returns the defaults used when fields are zero.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Options:       DefaultOptions(),
		MaxFileSize:   DefaultMaxFileSize,
		MaxConcurrent: DefaultMaxConcurrentIngestions,
		MaxWait:       DefaultMaxIngestWait,
		RetainFor:     DefaultRetainFor,
		MaxRetained:   DefaultMaxRetained,
	}
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	c.Options = c.Options.withDefaults()
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.RetainFor == 0 {
		c.RetainFor = DefaultRetainFor
	}
	if c.MaxRetained <= 0 {
		c.MaxRetained = DefaultMaxRetained
	}
	return c
}

// Service wraps the ingestion engine with admission control, logging,
// metrics, and a short-lived cache of outcomes so callers can re-query a
// file without uploading it again.
type Service struct {
	cfg     ServiceConfig
	limiter *IngestLimiter
	metrics metrics.Backend
	now     func() time.Time

	mu       sync.RWMutex
	retained map[string]retainedOutcome
}

type retainedOutcome struct {
	outcome  ParseOutcome
	storedAt time.Time
}

// NewService creates a Service. A nil backend discards metrics.
func NewService(cfg ServiceConfig, backend metrics.Backend) *Service {
	cfg = cfg.withDefaults()
	if backend == nil {
		backend = metrics.Nop{}
	}
	return &Service{
		cfg:      cfg,
		limiter:  NewIngestLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		metrics:  backend,
		now:      time.Now,
		retained: make(map[string]retainedOutcome),
	}
}

// Options returns the engine options applied to every ingestion.
func (s *Service) Options() Options { return s.cfg.Options }

// MaxFileSize returns the largest accepted input in bytes.
func (s *Service) MaxFileSize() int64 { return s.cfg.MaxFileSize }

// Limiter exposes the admission limiter for status reporting and drain.
func (s *Service) Limiter() *IngestLimiter { return s.limiter }

// Ingest parses data as the named file. The returned error is reserved for
// admission failures (busy, too large, cancelled); parse failures travel in
// ParseOutcome.Err like they do from the package-level Ingest.
func (s *Service) Ingest(ctx context.Context, name string, data []byte) (ParseOutcome, error) {
	return s.IngestWith(ctx, name, data, s.cfg.Options)
}

// IngestWith is Ingest with per-call engine options.
func (s *Service) IngestWith(ctx context.Context, name string, data []byte, opts Options) (ParseOutcome, error) {
	format := formatLabel(DetectFormat(name))

	if int64(len(data)) > s.cfg.MaxFileSize {
		s.reject("too_large")
		return ParseOutcome{}, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, len(data), s.cfg.MaxFileSize)
	}
	if err := ctx.Err(); err != nil {
		s.reject("cancelled")
		return ParseOutcome{}, err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ErrTooManyIngestions) {
			s.reject("busy")
		} else {
			s.reject("cancelled")
		}
		return ParseOutcome{}, err
	}
	defer s.limiter.Release()

	start := s.now()
	out := Ingest(name, data, opts)
	out.ID = uuid.New().String()
	elapsed := s.now().Sub(start)

	logger := logging.WithFields(ctx,
		"ingest_id", out.ID,
		"file", name,
		"format", format,
		"client_ip", ClientIPFromContext(ctx),
		"user_agent", UserAgentFromContext(ctx),
	)

	status := metrics.StatusOK
	if out.Err != nil {
		status = metrics.StatusFailed
		logger.Warn("ingestion failed",
			"bytes", len(data),
			"duration_ms", elapsed.Milliseconds(),
			"error", out.Err,
		)
	} else {
		if out.Stats.HeaderFallback {
			logger.Debug("no qualifying header row, using first row")
		}
		if len(out.Stats.PrunedColumns) > 0 {
			logger.Debug("pruned empty columns", "pruned", out.Stats.PrunedColumns)
		}
		logger.Info("ingestion completed",
			"rows", out.Source.RowCount,
			"columns", out.Source.ColumnCount,
			"header_row", out.Stats.HeaderRow,
			"encoding", out.Stats.Encoding,
			"sheet", out.Stats.SheetName,
			"duration_ms", elapsed.Milliseconds(),
		)
		s.retain(out)
	}

	s.metrics.IncCounter(metrics.IngestTotal, 1, metrics.Labels{"format": format, "status": status})
	s.metrics.ObserveHistogram(metrics.IngestDurationSeconds, elapsed.Seconds(), metrics.Labels{"format": format, "status": status})
	s.metrics.ObserveHistogram(metrics.IngestBytes, float64(len(data)), metrics.Labels{"format": format})
	if out.Err == nil {
		s.metrics.IncCounter(metrics.IngestRowsTotal, float64(out.Source.RowCount), metrics.Labels{"format": format})
	}

	return out, nil
}

// IngestReader buffers r, refusing inputs over the size limit, then ingests it.
func (s *Service) IngestReader(ctx context.Context, name string, r io.Reader) (ParseOutcome, error) {
	return s.IngestReaderWith(ctx, name, r, s.cfg.Options)
}

// IngestReaderWith is IngestReader with per-call engine options.
func (s *Service) IngestReaderWith(ctx context.Context, name string, r io.Reader, opts Options) (ParseOutcome, error) {
	var buf bytes.Buffer
	n, err := buf.ReadFrom(io.LimitReader(r, s.cfg.MaxFileSize+1))
	if err != nil {
		return ParseOutcome{}, fmt.Errorf("read %s: %w", name, err)
	}
	if n > s.cfg.MaxFileSize {
		s.reject("too_large")
		return ParseOutcome{}, fmt.Errorf("%w: limit %d bytes", ErrFileTooLarge, s.cfg.MaxFileSize)
	}
	return s.IngestWith(ctx, name, buf.Bytes(), opts)
}

func (s *Service) reject(reason string) {
	s.metrics.IncCounter(metrics.IngestRejectedTotal, 1, metrics.Labels{"reason": reason})
}

func formatLabel(f Format) string {
	if f == FormatUnknown {
		return "unknown"
	}
	return string(f)
}

// ============================================================================
// Retained outcomes
// ============================================================================

func (s *Service) retain(out ParseOutcome) {
	if s.cfg.RetainFor < 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.retained[out.ID] = retainedOutcome{outcome: out, storedAt: s.now()}
	for len(s.retained) > s.cfg.MaxRetained {
		var oldestID string
		var oldest time.Time
		for id, r := range s.retained {
			if oldestID == "" || r.storedAt.Before(oldest) {
				oldestID, oldest = id, r.storedAt
			}
		}
		delete(s.retained, oldestID)
	}
}

// Outcome returns a retained outcome by ingestion ID.
func (s *Service) Outcome(id string) (ParseOutcome, error) {
	s.mu.RLock()
	r, ok := s.retained[id]
	s.mu.RUnlock()

	if !ok || s.expired(r, s.now()) {
		return ParseOutcome{}, fmt.Errorf("%w: %s", ErrOutcomeNotFound, id)
	}
	return r.outcome, nil
}

// Forget drops a retained outcome. It reports whether one was present.
func (s *Service) Forget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.retained[id]
	delete(s.retained, id)
	return ok
}

// RetainedCount returns the number of outcomes currently held.
func (s *Service) RetainedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.retained)
}

func (s *Service) expired(r retainedOutcome, now time.Time) bool {
	return now.Sub(r.storedAt) > s.cfg.RetainFor
}

// evictExpired removes outcomes older than RetainFor and returns how many
// were dropped.
func (s *Service) evictExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, r := range s.retained {
		if s.expired(r, now) {
			delete(s.retained, id)
			n++
		}
	}
	return n
}

// WaitForDrain blocks until in-flight ingestions finish or ctx is done.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
