package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/JonMunkholm/tabular/internal/config"
	"github.com/JonMunkholm/tabular/internal/core"
	_ "github.com/JonMunkholm/tabular/internal/core/schemas"
)

const auctionCSV = "출품번호,차량명,출품가\n" +
	"A101,쏘나타,1500\n" +
	"A102,아반떼,900\n" +
	"A103,그랜저,3000\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080},
		Ingest: config.IngestConfig{
			MaxFileSize:     1 << 20,
			MaxConcurrent:   2,
			MaxWaitTime:     time.Second,
			DefaultPageSize: 2,
			MaxPageSize:     100,
		},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	svc := core.NewService(core.ServiceConfig{
		Options:       core.DefaultOptions(),
		MaxFileSize:   cfg.Ingest.MaxFileSize,
		MaxConcurrent: cfg.Ingest.MaxConcurrent,
		MaxWait:       cfg.Ingest.MaxWaitTime,
		RetainFor:     time.Minute,
		MaxRetained:   8,
	}, nil)
	s := NewServer(svc, cfg)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

// uploadRequest builds a multipart POST with content in the "file" field.
func uploadRequest(t *testing.T, target, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("part.Write() error = %v", err)
		}
	} else if err := mw.WriteField("note", "no file"); err != nil {
		t.Fatalf("WriteField() error = %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

type ingestBody struct {
	ID      string           `json:"id"`
	Records []map[string]any `json:"records"`
	Columns []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"columns"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Typed *struct {
		Schema  string `json:"schema"`
		Invalid int    `json:"invalid"`
		Records []struct {
			Row int `json:"row"`
		} `json:"records"`
	} `json:"typed"`
	Error *core.UserMessage `json:"error"`
}

func decodeIngest(t *testing.T, rec *httptest.ResponseRecorder) ingestBody {
	t.Helper()
	var body ingestBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
	}
	return body
}

func names(records []map[string]any) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = fmt.Sprint(r["차량명"])
	}
	return out
}

// ============================================================================
// Health
// ============================================================================

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

// ============================================================================
// Ingest
// ============================================================================

func TestHandleIngest_DefaultPage(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := serve(s, uploadRequest(t, "/api/ingest", "auction.csv", []byte(auctionCSV)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	body := decodeIngest(t, rec)
	if body.ID == "" {
		t.Error("ID is empty")
	}
	if body.Total != 3 {
		t.Errorf("Total = %d, want 3", body.Total)
	}
	if len(body.Records) != 2 || body.Size != 2 || body.Page != 1 {
		t.Errorf("page = %d records (page %d, size %d), want 2 records on page 1", len(body.Records), body.Page, body.Size)
	}
	if len(body.Columns) != 3 || body.Columns[2].Type != string(core.TypeNumeric) {
		t.Errorf("Columns = %+v, want 3 with numeric 출품가", body.Columns)
	}
}

func TestHandleIngest_FilterSortPage(t *testing.T) {
	s := newTestServer(t, testConfig())

	q := url.Values{}
	q.Set("filter[출품가]", "1000..")
	q.Set("sort", "출품가")
	q.Set("dir", "desc")
	q.Set("size", "10")
	rec := serve(s, uploadRequest(t, "/api/ingest?"+q.Encode(), "auction.csv", []byte(auctionCSV)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	body := decodeIngest(t, rec)
	got := names(body.Records)
	want := []string{"그랜저", "쏘나타"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("records = %q, want %q", got, want)
	}
	if body.Total != 2 {
		t.Errorf("Total = %d, want 2", body.Total)
	}
}

func TestHandleIngest_TypedSchema(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := serve(s, uploadRequest(t, "/api/ingest?schema=vehicle_auction&size=10", "auction.csv", []byte(auctionCSV)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	body := decodeIngest(t, rec)
	if body.Typed == nil {
		t.Fatal("Typed = nil, want projection")
	}
	if body.Typed.Schema != "vehicle_auction" || len(body.Typed.Records) != 3 || body.Typed.Invalid != 0 {
		t.Errorf("Typed = %+v", body.Typed)
	}
	if body.Error != nil {
		t.Errorf("Error = %+v, want nil", body.Error)
	}
}

func TestHandleIngest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		filename string
		content  string
		want     int
	}{
		{"no file", "/api/ingest", "", "", http.StatusBadRequest},
		{"unsupported format", "/api/ingest", "notes.txt", "a,b\n1,2\n", http.StatusUnsupportedMediaType},
		{"empty source", "/api/ingest", "empty.csv", "", http.StatusUnprocessableEntity},
		{"broken workbook", "/api/ingest", "book.xlsx", "not a zip", http.StatusUnprocessableEntity},
		{"bad page", "/api/ingest?page=0", "a.csv", auctionCSV, http.StatusBadRequest},
		{"bad size", "/api/ingest?size=x", "a.csv", auctionCSV, http.StatusBadRequest},
		{"bad threshold", "/api/ingest?threshold=2", "a.csv", auctionCSV, http.StatusBadRequest},
		{"unknown schema", "/api/ingest?schema=nope", "a.csv", auctionCSV, http.StatusNotFound},
	}

	s := newTestServer(t, testConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, uploadRequest(t, tt.target, tt.filename, []byte(tt.content)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", rec.Code, tt.want, rec.Body.String())
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Code == "" {
				t.Errorf("error body = %s, want JSON with code", rec.Body.String())
			}
		})
	}
}

func TestHandleIngest_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Ingest.MaxFileSize = 16
	s := newTestServer(t, cfg)

	rec := serve(s, uploadRequest(t, "/api/ingest", "big.csv", bytes.Repeat([]byte("a,b\n"), 64)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
}

// ============================================================================
// Retained outcomes
// ============================================================================

func TestHandleQueryIngest(t *testing.T) {
	s := newTestServer(t, testConfig())
	first := decodeIngest(t, serve(s, uploadRequest(t, "/api/ingest", "auction.csv", []byte(auctionCSV))))

	q := url.Values{}
	q.Set("sort", "차량명")
	q.Set("size", "all")
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/ingest/"+first.ID+"?"+q.Encode(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	body := decodeIngest(t, rec)
	want := []string{"그랜저", "쏘나타", "아반떼"}
	if got := names(body.Records); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("records = %q, want %q", got, want)
	}
}

func TestHandleQueryIngest_NotFound(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/ingest/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleForgetIngest(t *testing.T) {
	s := newTestServer(t, testConfig())
	first := decodeIngest(t, serve(s, uploadRequest(t, "/api/ingest", "auction.csv", []byte(auctionCSV))))

	rec := serve(s, httptest.NewRequest(http.MethodDelete, "/api/ingest/"+first.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first DELETE status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	rec = serve(s, httptest.NewRequest(http.MethodDelete, "/api/ingest/"+first.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// ============================================================================
// Columnar export
// ============================================================================

func TestHandleIngestArrow(t *testing.T) {
	s := newTestServer(t, testConfig())
	q := url.Values{}
	q.Set("filter[차량명]", "쏘")
	rec := serve(s, uploadRequest(t, "/api/ingest/arrow?"+q.Encode(), "auction.csv", []byte(auctionCSV)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != contentTypeArrow {
		t.Errorf("Content-Type = %q, want %q", got, contentTypeArrow)
	}
	if rec.Header().Get("X-Ingest-ID") == "" {
		t.Error("X-Ingest-ID header missing")
	}

	rdr, err := ipc.NewReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("ipc.NewReader() error = %v", err)
	}
	defer rdr.Release()

	var rows int64
	for rdr.Next() {
		rows += rdr.Record().NumRows()
	}
	if rows != 1 {
		t.Errorf("rows = %d, want 1", rows)
	}
	if n := len(rdr.Schema().Fields()); n != 3 {
		t.Errorf("fields = %d, want 3", n)
	}
}

func TestHandleIngestParquet(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := serve(s, uploadRequest(t, "/api/ingest/parquet", "auction.csv", []byte(auctionCSV)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="auction.parquet"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PAR1")) {
		t.Error("body does not start with the Parquet magic")
	}
}

func TestHandleExportArrow_NotFound(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/ingest/missing/arrow", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestExportName(t *testing.T) {
	tests := []struct {
		original string
		want     string
	}{
		{"auction.csv", "auction.arrow"},
		{"dir/report.xlsx", "report.arrow"},
		{"", "export.arrow"},
	}
	for _, tt := range tests {
		if got := exportName(tt.original, ".arrow"); got != tt.want {
			t.Errorf("exportName(%q) = %q, want %q", tt.original, got, tt.want)
		}
	}
}

// ============================================================================
// Metadata
// ============================================================================

func TestHandleListSchemas(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/schemas", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var schemas []core.Schema
	if err := json.Unmarshal(rec.Body.Bytes(), &schemas); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, sc := range schemas {
		if sc.Key != "vehicle_auction" {
			continue
		}
		found = true
		for _, f := range sc.Fields {
			if f.Name == "price" && f.Type != core.FieldNumeric {
				t.Errorf("price type = %v, want numeric", f.Type)
			}
		}
	}
	if !found {
		t.Error("vehicle_auction schema not listed")
	}
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t, testConfig())
	serve(s, uploadRequest(t, "/api/ingest", "auction.csv", []byte(auctionCSV)))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	var status StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Retained != 1 {
		t.Errorf("Retained = %d, want 1", status.Retained)
	}
	if status.Limiter.MaxConcurrent != 2 || status.Limiter.Available != 2 {
		t.Errorf("Limiter = %+v, want 2 of 2 available", status.Limiter)
	}
}

// ============================================================================
// Middleware wiring
// ============================================================================

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, IngestLimit: 1, Burst: 1}
	s := newTestServer(t, cfg)

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", rec.Code)
	}
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}

	other := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	other.RemoteAddr = "198.51.100.7:4000"
	if rec := serve(s, other); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s := newTestServer(t, cfg)

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "X-API-Key", "nope", http.StatusForbidden},
		{"header", "X-API-Key", "secret", http.StatusOK},
		{"bearer", "Authorization", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/schemas", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			if rec := serve(s, req); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200 without key", rec.Code)
	}
}

// ============================================================================
// Error mapping
// ============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{fmt.Errorf("wrap: %w", core.ErrTooManyIngestions), http.StatusServiceUnavailable},
		{core.ErrOutcomeNotFound, http.StatusNotFound},
		{core.ErrSchemaNotFound, http.StatusNotFound},
		{core.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{context.Canceled, 499},
		{errNoFile, http.StatusBadRequest},
		{fmt.Errorf("%w: page", errInvalidParam), http.StatusBadRequest},
		{core.ErrWorkbook, http.StatusUnprocessableEntity},
		{core.ErrEmptySource, http.StatusUnprocessableEntity},
		{core.ErrMissingColumn, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRespondError_Body(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ingest/x", nil)
	respondError(rec, req, core.ErrOutcomeNotFound, http.StatusNotFound)

	body, _ := io.ReadAll(rec.Body)
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "ING004" {
		t.Errorf("Code = %q, want ING004", resp.Code)
	}
	if resp.Action == "" {
		t.Error("Action is empty")
	}
}
