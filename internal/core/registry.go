package core

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// ErrSchemaNotFound is returned when a schema key is not registered.
var ErrSchemaNotFound = errors.New("schema not found")

var (
	registry   = make(map[string]Schema)
	registryMu sync.RWMutex
)

// RegisterSchema adds a schema to the registry.
// Panics if the schema is invalid or its key is already registered.
func RegisterSchema(s Schema) {
	if err := s.Validate(); err != nil {
		panic(err.Error())
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[s.Key]; exists {
		panic(fmt.Sprintf("schema already registered: %s", s.Key))
	}
	registry[s.Key] = s.resolve()
}

// RegisterSchemasYAML loads schemas from r and registers them. Unlike
// RegisterSchema it reports problems as errors, since the input is a
// user-supplied file.
func RegisterSchemasYAML(r io.Reader) (int, error) {
	schemas, err := LoadSchemasYAML(r)
	if err != nil {
		return 0, err
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	for _, s := range schemas {
		if _, exists := registry[s.Key]; exists {
			return 0, fmt.Errorf("schema already registered: %s", s.Key)
		}
	}
	for _, s := range schemas {
		registry[s.Key] = s.resolve()
	}
	return len(schemas), nil
}

// GetSchema returns a schema by key.
func GetSchema(key string) (Schema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	s, ok := registry[key]
	return s, ok
}

// LookupSchema is GetSchema with an error wrapping ErrSchemaNotFound.
func LookupSchema(key string) (Schema, error) {
	s, ok := GetSchema(key)
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", ErrSchemaNotFound, key)
	}
	return s, nil
}

// Schemas returns every registered schema, sorted by group then key.
func Schemas() []Schema {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Schema, 0, len(registry))
	for _, s := range registry {
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Group != result[j].Group {
			return result[i].Group < result[j].Group
		}
		return result[i].Key < result[j].Key
	})
	return result
}

// SchemaCount returns the number of registered schemas.
func SchemaCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// ClearSchemas removes all registered schemas.
// Primarily useful for testing.
func ClearSchemas() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Schema)
}
