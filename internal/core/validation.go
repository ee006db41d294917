package core

// validation.go checks projected values against their FieldSpec. Headers
// are checked once per outcome; cells are checked per record, and every
// problem is collected so callers can show them all at once.

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingColumn is wrapped by header matching when a required field has
// no column.
var ErrMissingColumn = errors.New("missing required column")

// ValidationError is a single field problem.
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidateCell checks a cleaned, normalized value against spec. Empty
// values are always valid here; required-ness is checked by the caller.
func ValidateCell(value string, spec FieldSpec) error {
	if value == "" {
		return nil
	}

	switch spec.Type {
	case FieldNumeric:
		if !ToPgNumeric(value).Valid {
			return fmt.Errorf("invalid number format")
		}
	case FieldDate:
		if !ToPgDate(value).Valid {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD or similar)")
		}
	case FieldBool:
		if !ToPgBool(value).Valid {
			return fmt.Errorf("must be yes/no, true/false, or 1/0")
		}
	case FieldEnum:
		if _, ok := matchEnum(value, spec.EnumValues); !ok {
			return fmt.Errorf("value must be one of: %s", strings.Join(spec.EnumValues, ", "))
		}
	}
	return nil
}

// matchEnum returns the canonical spelling of value from allowed.
func matchEnum(value string, allowed []string) (string, bool) {
	if len(allowed) == 0 {
		return value, true
	}
	for _, ev := range allowed {
		if strings.EqualFold(ev, value) {
			return ev, true
		}
	}
	return "", false
}

// MatchHeaders finds the column for each field. The result maps field
// name to column name; unmatched optional fields are absent. The error
// lists every required field without a column and wraps ErrMissingColumn.
func MatchHeaders(columns []string, specs []FieldSpec) (map[string]string, error) {
	matched := make(map[string]string, len(specs))
	used := make(map[string]bool, len(columns))
	var missing []string

	for _, spec := range specs {
		for _, col := range columns {
			if !used[col] && spec.Matches(col) {
				matched[spec.Name] = col
				used[col] = true
				break
			}
		}
		if _, ok := matched[spec.Name]; !ok && spec.Required {
			missing = append(missing, spec.Name)
		}
	}

	if len(missing) > 0 {
		return matched, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return matched, nil
}
