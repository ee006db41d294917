package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tabular/internal/core"
)

// queryParams is the parsed read side of a request: filter, sort, page, and
// an optional typed schema.
type queryParams struct {
	spec   core.QuerySpec
	schema *core.Schema
}

// parseQuery reads filter[col], sort, dir, nulls, page, size, and schema.
// Filters naming unknown columns are kept; they simply match nothing
// unless the constraint is empty.
func (s *Server) parseQuery(r *http.Request) (queryParams, error) {
	q := r.URL.Query()
	var p queryParams

	p.spec.Constraints = parseFilters(q)
	p.spec.Sort = core.SortOptions{
		Field:     strings.TrimSpace(q.Get("sort")),
		Direction: core.ParseDirection(q.Get("dir")),
		Nulls:     core.ParseNullPlacement(q.Get("nulls")),
	}

	page, err := parseIntParam(q, "page", 1)
	if err != nil {
		return p, err
	}
	p.spec.Page = page

	size := s.cfg.Ingest.DefaultPageSize
	if raw := strings.TrimSpace(q.Get("size")); strings.EqualFold(raw, "all") {
		size = 0
	} else if size, err = parseIntParam(q, "size", size); err != nil {
		return p, err
	}
	if size > s.cfg.Ingest.MaxPageSize || size == 0 {
		size = s.cfg.Ingest.MaxPageSize
	}
	p.spec.Size = size

	if key := strings.TrimSpace(q.Get("schema")); key != "" {
		schema, err := core.LookupSchema(key)
		if err != nil {
			return p, err
		}
		p.schema = &schema
	}
	return p, nil
}

// parseFilters extracts filter[col]=value pairs. The last non-empty value
// for a column wins.
func parseFilters(q url.Values) map[string]core.Constraint {
	filters := make(map[string]core.Constraint)
	for key, values := range q {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		col := key[len("filter[") : len(key)-1]
		if col == "" {
			continue
		}
		for _, v := range values {
			if c := core.ParseConstraint(v); !c.IsEmpty() {
				filters[col] = c
			}
		}
	}
	return filters
}

// parseIntParam parses a positive integer query parameter.
func parseIntParam(q url.Values, name string, defaultVal int) (int, error) {
	val := strings.TrimSpace(q.Get(name))
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errInvalidParam, name)
	}
	return i, nil
}

// parseOptions applies per-request engine overrides on top of the service
// defaults: header_rows, min_header_columns, threshold, keep_empty_rows,
// preserve_types, and blank_lines.
func (s *Server) parseOptions(r *http.Request) (core.Options, error) {
	q := r.URL.Query()
	opts := s.service.Options()

	if q.Has("header_rows") {
		n, err := parseIntParam(q, "header_rows", opts.Header.SearchRows)
		if err != nil {
			return opts, err
		}
		opts.Header.SearchRows = n
	}
	if q.Has("min_header_columns") {
		n, err := parseIntParam(q, "min_header_columns", opts.Header.MinColumns)
		if err != nil {
			return opts, err
		}
		opts.Header.MinColumns = n
	}
	if raw := strings.TrimSpace(q.Get("threshold")); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f <= 0 || f > 1 {
			return opts, fmt.Errorf("%w: threshold must be in (0, 1]", errInvalidParam)
		}
		opts.TypeThreshold = f
	}
	if raw := q.Get("keep_empty_rows"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("%w: keep_empty_rows must be a boolean", errInvalidParam)
		}
		opts.KeepEmptyRows = b
	}
	if raw := q.Get("preserve_types"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("%w: preserve_types must be a boolean", errInvalidParam)
		}
		opts.PreserveCellTypes = b
	}
	if raw := q.Get("blank_lines"); raw != "" {
		opts.BlankLines = core.ParseBlankLinePolicy(raw)
	}
	return opts, nil
}
