package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/tabular/internal/columnar"
	"github.com/JonMunkholm/tabular/internal/core"
	"github.com/JonMunkholm/tabular/internal/logging"
	"github.com/go-chi/chi/v5"
)

const (
	contentTypeArrow   = "application/vnd.apache.arrow.stream"
	contentTypeParquet = "application/vnd.apache.parquet"

	// multipartOverhead covers boundaries and part headers around the file.
	multipartOverhead = 1 << 20
)

// IngestResponse is the JSON body for ingest and query requests.
type IngestResponse struct {
	ID      string                `json:"id,omitempty"`
	Source  core.SourceDescriptor `json:"source"`
	Columns []core.ColumnMetadata `json:"columns"`
	Records []core.Record         `json:"records"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	Size    int                   `json:"size"`
	Stats   core.Stats            `json:"stats"`
	Typed   *core.TypedProjection `json:"typed,omitempty"`
	Error   *core.UserMessage     `json:"error,omitempty"`
}

// StatusResponse reports ingestion capacity.
type StatusResponse struct {
	Limiter  core.LimiterStatus `json:"limiter"`
	Retained int                `json:"retained"`
	Formats  []string           `json:"formats"`
}

// ============================================================================
// Ingest
// ============================================================================

// handleIngest accepts a multipart upload in the "file" field and returns
// the parsed records with any filter, sort, and paging applied.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	out, ok := s.ingestUpload(w, r)
	if !ok {
		return
	}
	if out.Err != nil {
		s.respondFailedOutcome(w, r, out)
		return
	}
	writeJSON(w, http.StatusOK, buildResponse(out, q))
}

// handleIngestArrow ingests an upload and streams it back as Arrow IPC.
func (s *Server) handleIngestArrow(w http.ResponseWriter, r *http.Request) {
	s.ingestAndExport(w, r, contentTypeArrow, ".arrow", columnar.WriteIPC)
}

// handleIngestParquet ingests an upload and returns it as a Parquet file.
func (s *Server) handleIngestParquet(w http.ResponseWriter, r *http.Request) {
	s.ingestAndExport(w, r, contentTypeParquet, ".parquet", columnar.WriteParquet)
}

type exportFunc func(io.Writer, core.ParseOutcome) error

func (s *Server) ingestAndExport(w http.ResponseWriter, r *http.Request, contentType, ext string, export exportFunc) {
	q, err := s.parseQuery(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	out, ok := s.ingestUpload(w, r)
	if !ok {
		return
	}
	if out.Err != nil {
		s.respondFailedOutcome(w, r, out)
		return
	}
	writeExport(w, r, q.selection(out), contentType, ext, export)
}

// ingestUpload reads the "file" part and runs it through the service.
// On false the error response has already been written.
func (s *Server) ingestUpload(w http.ResponseWriter, r *http.Request) (core.ParseOutcome, bool) {
	opts, err := s.parseOptions(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return core.ParseOutcome{}, false
	}

	file, header, err := s.formFile(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return core.ParseOutcome{}, false
	}
	defer file.Close()

	ctx := WithRequestMetadata(r.Context(), r)
	out, err := s.service.IngestReaderWith(ctx, header.Filename, file, opts)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return core.ParseOutcome{}, false
	}
	return out, true
}

// formFile bounds the request body and returns the uploaded file part.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxFileSize()+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, fmt.Errorf("%w: limit %d bytes", core.ErrFileTooLarge, s.service.MaxFileSize())
		}
		return nil, nil, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errNoFile
	}
	return file, header, nil
}

// respondFailedOutcome reports an outcome that carries a parse failure.
// Parse errors that match no known sentinel are still the caller's input,
// so they map to 422 rather than 500.
func (s *Server) respondFailedOutcome(w http.ResponseWriter, r *http.Request, out core.ParseOutcome) {
	status := statusFor(out.Err)
	if status == http.StatusInternalServerError {
		status = http.StatusUnprocessableEntity
	}
	respondError(w, r, out.Err, status)
}

// ============================================================================
// Retained outcomes
// ============================================================================

// handleQueryIngest re-queries a retained outcome by id.
func (s *Server) handleQueryIngest(w http.ResponseWriter, r *http.Request) {
	out, err := s.service.Outcome(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	q, err := s.parseQuery(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, buildResponse(out, q))
}

// handleExportArrow streams a retained outcome as Arrow IPC. Filter and
// sort apply; paging does not.
func (s *Server) handleExportArrow(w http.ResponseWriter, r *http.Request) {
	out, err := s.service.Outcome(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	q, err := s.parseQuery(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeExport(w, r, q.selection(out), contentTypeArrow, ".arrow", columnar.WriteIPC)
}

// handleForgetIngest drops a retained outcome.
func (s *Server) handleForgetIngest(w http.ResponseWriter, r *http.Request) {
	if !s.service.Forget(chi.URLParam(r, "id")) {
		respondError(w, r, core.ErrOutcomeNotFound, http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Metadata
// ============================================================================

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.Schemas())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Limiter:  s.service.Limiter().Status(),
		Retained: s.service.RetainedCount(),
		Formats:  core.SupportedExtensions(),
	})
}

// ============================================================================
// Response building
// ============================================================================

// buildResponse applies the query to out and projects the page onto the
// requested schema, if any.
func buildResponse(out core.ParseOutcome, q queryParams) IngestResponse {
	records, total := q.spec.Apply(out.Records)
	if records == nil {
		records = []core.Record{}
	}

	resp := IngestResponse{
		ID:      out.ID,
		Source:  out.Source,
		Columns: out.Columns,
		Records: records,
		Total:   total,
		Page:    max(q.spec.Page, 1),
		Size:    q.spec.Size,
		Stats:   out.Stats,
	}

	if q.schema != nil {
		page := out
		page.Records = records
		proj := core.ProjectTyped(page, *q.schema)
		resp.Typed = &proj
		if proj.Err != nil {
			msg := core.MapError(proj.Err)
			resp.Error = &msg
		}
	}
	return resp
}

// selection returns out with only the filtered, sorted records.
func (q queryParams) selection(out core.ParseOutcome) core.ParseOutcome {
	spec := q.spec
	spec.Page, spec.Size = 0, 0
	out.Records, _ = spec.Apply(out.Records)
	return out
}

// writeExport encodes into a buffer first so an encoding failure can still
// produce a JSON error instead of a truncated body.
func writeExport(w http.ResponseWriter, r *http.Request, out core.ParseOutcome, contentType, ext string, export exportFunc) {
	var buf bytes.Buffer
	if err := export(&buf, out); err != nil {
		respondError(w, r, fmt.Errorf("export %s: %w", out.Source.OriginalName, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(out.Source.OriginalName, ext)))
	if out.ID != "" {
		w.Header().Set("X-Ingest-ID", out.ID)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.FromContext(r.Context()).Warn("export write failed", "error", err)
	}
}

func exportName(original, ext string) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "export"
	}
	return base + ext
}
