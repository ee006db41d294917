package core

// project.go holds the two views of a ParseOutcome: the generic projection
// (every column as text) and the typed projection onto a registered Schema.
// Both read the records Materialize produced, so header handling is shared.

import (
	"errors"
	"slices"

	"github.com/jackc/pgx/v5/pgtype"
)

// ProjectGeneric returns each record as a column-to-text map.
func ProjectGeneric(out ParseOutcome) []map[string]string {
	rows := make([]map[string]string, len(out.Records))
	for i, r := range out.Records {
		rows[i] = r.Strings()
	}
	return rows
}

// TypedRecord is one record coerced onto a schema. Values holds a pgtype
// value per schema field; fields without a column or with an invalid value
// hold the invalid (NULL) form of their type.
type TypedRecord struct {
	Row    int               `json:"row"`
	Values map[string]any    `json:"values"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Valid reports whether the record has no field errors.
func (r TypedRecord) Valid() bool { return len(r.Errors) == 0 }

// TypedProjection is the result of ProjectTyped.
type TypedProjection struct {
	Schema  string            `json:"schema"`
	Fields  []string          `json:"fields"`
	Columns map[string]string `json:"columns"`
	Missing []string          `json:"missing,omitempty"`
	Records []TypedRecord     `json:"records"`
	Invalid int               `json:"invalid"`
	Err     error             `json:"-"`
}

// ProjectTyped maps the outcome's records onto schema's fields.
//
// Columns are matched to fields by name or alias, ignoring case. A missing
// required column sets Err and lists the field in Missing, but projection
// still runs so the caller can see what did match. Every record is kept;
// values that fail validation are NULL and reported in the record's Errors.
func ProjectTyped(out ParseOutcome, schema Schema) TypedProjection {
	proj := TypedProjection{
		Schema:  schema.Key,
		Fields:  schema.FieldNames(),
		Records: make([]TypedRecord, 0, len(out.Records)),
	}

	columns, err := MatchHeaders(out.ColumnNames(), schema.Fields)
	proj.Columns = columns
	if err != nil {
		proj.Err = err
		for _, f := range schema.Fields {
			if _, ok := columns[f.Name]; !ok && f.Required {
				proj.Missing = append(proj.Missing, f.Name)
			}
		}
	}

	for i, r := range out.Records {
		row := r.SourceRow()
		if row == 0 {
			row = i + 1
		}
		tr := TypedRecord{Row: row, Values: make(map[string]any, len(schema.Fields))}

		for _, spec := range schema.Fields {
			col, ok := columns[spec.Name]
			if !ok {
				tr.Values[spec.Name] = nullValue(spec.Type)
				continue
			}

			raw := CleanCell(r.Get(col).String())
			if raw == "" {
				if spec.Required && !spec.AllowEmpty {
					tr.Errors = append(tr.Errors, ValidationError{
						Field:   spec.Name,
						Message: "required field is empty",
					})
				}
				tr.Values[spec.Name] = nullValue(spec.Type)
				continue
			}

			if spec.Normalizer != nil {
				raw = spec.Normalizer(raw)
			}
			if err := ValidateCell(raw, spec); err != nil {
				tr.Errors = append(tr.Errors, ValidationError{
					Field:   spec.Name,
					Value:   raw,
					Message: err.Error(),
				})
				tr.Values[spec.Name] = nullValue(spec.Type)
				continue
			}
			tr.Values[spec.Name] = typedValue(raw, spec)
		}

		if !tr.Valid() {
			proj.Invalid++
		}
		proj.Records = append(proj.Records, tr)
	}
	return proj
}

// HasMissing reports whether field was required but not found.
func (p TypedProjection) HasMissing(field string) bool {
	return slices.Contains(p.Missing, field)
}

// MissingColumns reports whether the projection failed header matching.
func (p TypedProjection) MissingColumns() bool {
	return errors.Is(p.Err, ErrMissingColumn)
}

func typedValue(raw string, spec FieldSpec) any {
	switch spec.Type {
	case FieldNumeric:
		return ToPgNumeric(raw)
	case FieldDate:
		return ToPgDate(raw)
	case FieldBool:
		return ToPgBool(raw)
	case FieldEnum:
		canon, _ := matchEnum(raw, spec.EnumValues)
		return ToPgText(canon)
	default:
		return ToPgText(raw)
	}
}

func nullValue(t FieldType) any {
	switch t {
	case FieldNumeric:
		return pgtype.Numeric{}
	case FieldDate:
		return pgtype.Date{}
	case FieldBool:
		return pgtype.Bool{}
	default:
		return pgtype.Text{}
	}
}
