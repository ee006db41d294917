package core

// schema.go defines typed schemas: fixed field sets that generic records
// can be projected onto. Schemas are registered in code by
// internal/core/schemas or loaded from a YAML file at startup.

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// FieldType is the target type of a schema field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldBool
)

var fieldTypeNames = map[FieldType]string{
	FieldText:    "text",
	FieldEnum:    "enum",
	FieldDate:    "date",
	FieldNumeric: "numeric",
	FieldBool:    "bool",
}

func (t FieldType) String() string {
	if s, ok := fieldTypeNames[t]; ok {
		return s
	}
	return "value"
}

// ParseFieldType maps a type name to a FieldType. "number" and "boolean"
// are accepted as aliases.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "string":
		return FieldText, nil
	case "enum":
		return FieldEnum, nil
	case "date":
		return FieldDate, nil
	case "numeric", "number":
		return FieldNumeric, nil
	case "bool", "boolean":
		return FieldBool, nil
	default:
		return FieldText, fmt.Errorf("unknown field type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FieldType) UnmarshalText(b []byte) error {
	ft, err := ParseFieldType(string(b))
	if err != nil {
		return err
	}
	*t = ft
	return nil
}

// UnmarshalYAML reads a type name.
func (t *FieldType) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	ft, err := ParseFieldType(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*t = ft
	return nil
}

// FieldSpec describes one schema field and the header names it accepts.
type FieldSpec struct {
	Name       string    `yaml:"name" json:"name"`
	Aliases    []string  `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Type       FieldType `yaml:"type" json:"type"`
	Required   bool      `yaml:"required,omitempty" json:"required,omitempty"`
	AllowEmpty bool      `yaml:"allowEmpty,omitempty" json:"allowEmpty,omitempty"`
	EnumValues []string  `yaml:"enum,omitempty" json:"enum,omitempty"`

	// Normalize names a registered normalizer; see RegisterNormalizer.
	Normalize  string              `yaml:"normalize,omitempty" json:"normalize,omitempty"`
	Normalizer func(string) string `yaml:"-" json:"-"`
}

// Matches reports whether a header name refers to this field. Comparison
// ignores case and the formula wrapping CleanCell removes.
func (f FieldSpec) Matches(header string) bool {
	h := CleanCell(header)
	if strings.EqualFold(h, f.Name) {
		return true
	}
	for _, a := range f.Aliases {
		if strings.EqualFold(h, strings.TrimSpace(a)) {
			return true
		}
	}
	return false
}

// Schema is a named, fixed set of fields.
type Schema struct {
	Key    string      `yaml:"key" json:"key"`
	Group  string      `yaml:"group,omitempty" json:"group,omitempty"`
	Label  string      `yaml:"label" json:"label"`
	Fields []FieldSpec `yaml:"fields" json:"fields"`
}

// FieldNames returns the field names in declaration order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Validate checks that the schema has a key, at least one field, unique
// field names, and known normalizers.
func (s Schema) Validate() error {
	if strings.TrimSpace(s.Key) == "" {
		return fmt.Errorf("schema has no key")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %s: no fields", s.Key)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		name := strings.ToLower(strings.TrimSpace(f.Name))
		if name == "" {
			return fmt.Errorf("schema %s: field with empty name", s.Key)
		}
		if seen[name] {
			return fmt.Errorf("schema %s: duplicate field %q", s.Key, f.Name)
		}
		seen[name] = true
		if f.Normalize != "" {
			if _, ok := lookupNormalizer(f.Normalize); !ok {
				return fmt.Errorf("schema %s: field %q: unknown normalizer %q", s.Key, f.Name, f.Normalize)
			}
		}
		if f.Type == FieldEnum && len(f.EnumValues) == 0 {
			return fmt.Errorf("schema %s: enum field %q lists no values", s.Key, f.Name)
		}
	}
	return nil
}

// resolve fills Normalizer from Normalize where only the name is set.
func (s Schema) resolve() Schema {
	fields := make([]FieldSpec, len(s.Fields))
	copy(fields, s.Fields)
	for i, f := range fields {
		if f.Normalizer == nil && f.Normalize != "" {
			fields[i].Normalizer, _ = lookupNormalizer(f.Normalize)
		}
	}
	s.Fields = fields
	return s
}

// ============================================================================
// Normalizers
// ============================================================================

var (
	normalizers   = make(map[string]func(string) string)
	normalizersMu sync.RWMutex
)

// RegisterNormalizer makes fn available to YAML schemas under name.
// Panics if name is already registered.
func RegisterNormalizer(name string, fn func(string) string) {
	normalizersMu.Lock()
	defer normalizersMu.Unlock()

	if _, exists := normalizers[name]; exists {
		panic(fmt.Sprintf("normalizer already registered: %s", name))
	}
	normalizers[name] = fn
}

func lookupNormalizer(name string) (func(string) string, bool) {
	normalizersMu.RLock()
	defer normalizersMu.RUnlock()
	fn, ok := normalizers[name]
	return fn, ok
}

func init() {
	RegisterNormalizer("upper", strings.ToUpper)
	RegisterNormalizer("lower", strings.ToLower)
	RegisterNormalizer("digits", func(s string) string {
		return strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, s)
	})
}

// ============================================================================
// YAML
// ============================================================================

type schemaFile struct {
	Schemas []Schema `yaml:"schemas"`
}

// LoadSchemasYAML decodes a document of the form
//
//	schemas:
//	  - key: vendor_list
//	    label: Vendor list
//	    fields:
//	      - {name: vendor, aliases: [공급사], type: text, required: true}
//
// and validates every schema. Nothing is registered.
func LoadSchemasYAML(r io.Reader) ([]Schema, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc schemaFile
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode schema file: %w", err)
	}

	for _, s := range doc.Schemas {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Schemas, nil
}
