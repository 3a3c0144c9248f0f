package validation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema wraps a compiled JSON schema, matching the
// output_schema/input_schema fields of registry.Descriptor.
type Schema struct {
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON schema document (as raw JSON text) into a
// reusable Schema.
func CompileSchema(schemaJSON string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("validation: add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("validation: compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// CompileSchemaMap compiles a schema already decoded into a Go map (as
// registry.Descriptor.OutputSchema carries it).
func CompileSchemaMap(schema map[string]any) (*Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("validation: marshal schema map: %w", err)
	}
	return CompileSchema(string(raw))
}

// MustCompileSchema compiles a schema or panics. Intended for package-level
// schemas whose text is a compile-time constant (e.g. the AI strategy's
// ReasoningResult schema), where a compile failure is a programming error.
func MustCompileSchema(schemaJSON string) *Schema {
	s, err := CompileSchema(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// Violation is one path-qualified schema violation.
type Violation struct {
	Path    string
	Message string
}

func (v Violation) String() string {
	if v.Path == "" || v.Path == "/" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// Validate checks data (already decoded into Go values: map[string]any,
// []any, etc.) against the schema and returns every path-qualified
// violation, innermost cause first.
func (s *Schema) Validate(data any) []Violation {
	err := s.compiled.Validate(data)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []Violation{{Message: err.Error()}}
	}
	var out []Violation
	collectCauses(ve, &out)
	if len(out) == 0 {
		out = append(out, Violation{Path: pointerPath(ve.InstanceLocation), Message: ve.Message})
	}
	return out
}

// ValidateJSON decodes raw JSON and validates it against the schema.
func (s *Schema) ValidateJSON(raw []byte) error {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("validation: decode json: %w", err)
	}
	if v := s.Validate(data); len(v) > 0 {
		msgs := make([]string, len(v))
		for i, vi := range v {
			msgs[i] = vi.String()
		}
		return fmt.Errorf("schema violations: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// collectCauses walks the ValidationError tree, recording leaves (the
// actual failures) rather than the wrapping "doesn't validate with..."
// summary nodes.
func collectCauses(ve *jsonschema.ValidationError, out *[]Violation) {
	if len(ve.Causes) == 0 {
		*out = append(*out, Violation{Path: pointerPath(ve.InstanceLocation), Message: ve.Message})
		return
	}
	for _, c := range ve.Causes {
		collectCauses(c, out)
	}
}

func pointerPath(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	var b strings.Builder
	for _, seg := range segments {
		b.WriteByte('/')
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString(seg)
			continue
		}
		b.WriteString(seg)
	}
	return b.String()
}
