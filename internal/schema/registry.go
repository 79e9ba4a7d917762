// Package schema holds the JSON Schemas of the records smartpdf emits and
// validates values against them.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names.
const (
	PageRecord     = "page_record"
	Classification = "classification"
	Result         = "result"
)

// ErrUnknownSchema is returned for a name with no embedded schema.
var ErrUnknownSchema = errors.New("schema not found")

// Schema is one embedded JSON Schema document.
type Schema struct {
	Name string // e.g. "page_record"
	JSON []byte
}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

// All returns every embedded schema sorted by name.
func All() ([]Schema, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	var out []Schema
	for _, e := range entries {
		s, err := Get(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns a single schema by name.
func Get(name string) (*Schema, error) {
	content, err := schemaFS.ReadFile(filename(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	return &Schema{Name: name, JSON: content}, nil
}

// Validate checks v against the named schema. v is encoded to JSON first,
// so any value with json tags can be passed.
func Validate(name string, v any) error {
	compileOnce.Do(compileAll)
	if compileErr != nil {
		return compileErr
	}
	sch, ok := compiled[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s for validation: %w", name, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode %s for validation: %w", name, err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("%s does not match schema: %w", name, err)
	}
	return nil
}

// compileAll registers every schema as a resource so $ref between them
// resolves, then compiles each one.
func compileAll() {
	schemas, err := All()
	if err != nil {
		compileErr = err
		return
	}
	compiler := jsonschema.NewCompiler()
	for _, s := range schemas {
		if err := compiler.AddResource(filename(s.Name), bytes.NewReader(s.JSON)); err != nil {
			compileErr = fmt.Errorf("failed to load schema %s: %w", s.Name, err)
			return
		}
	}
	compiled = make(map[string]*jsonschema.Schema, len(schemas))
	for _, s := range schemas {
		sch, err := compiler.Compile(filename(s.Name))
		if err != nil {
			compileErr = fmt.Errorf("failed to compile schema %s: %w", s.Name, err)
			return
		}
		compiled[s.Name] = sch
	}
}

func filename(name string) string {
	return "schemas/" + name + ".json"
}
