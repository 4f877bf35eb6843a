package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// MetadataFields lists the metadata properties in schema order.
var MetadataFields = []string{"title", "company", "position", "date"}

var (
	resolveOnce     sync.Once
	resolvedSchema  *jsonschema.Resolved
	resolveSchemaEr error
)

// MetadataSchema is the JSON Schema every extraction result must satisfy:
// an object with exactly the four fields, each a string or null.
func MetadataSchema() *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema, len(MetadataFields))
	for _, name := range MetadataFields {
		props[name] = &jsonschema.Schema{Types: []string{"string", "null"}}
	}
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             append([]string(nil), MetadataFields...),
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

// MetadataWireSchema is MetadataSchema in the plain form sent to providers
// that accept a JSON Schema response format.
func MetadataWireSchema() map[string]any {
	props := make(map[string]any, len(MetadataFields))
	for _, name := range MetadataFields {
		props[name] = map[string]any{"type": []string{"string", "null"}}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             MetadataFields,
		"additionalProperties": false,
	}
}

func resolved() (*jsonschema.Resolved, error) {
	resolveOnce.Do(func() {
		resolvedSchema, resolveSchemaEr = MetadataSchema().Resolve(nil)
	})
	return resolvedSchema, resolveSchemaEr
}

// DecodeMetadata parses and validates a structured extraction response.
// Blank strings are normalized to null.
func DecodeMetadata(raw string) (Metadata, error) {
	body := StripCodeFences(raw)
	if body == "" {
		return Metadata{}, ErrEmptyOutput
	}

	var instance any
	if err := json.Unmarshal([]byte(body), &instance); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	rs, err := resolved()
	if err != nil {
		return Metadata{}, fmt.Errorf("resolve metadata schema: %w", err)
	}
	if err := rs.Validate(instance); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}

	var md Metadata
	if err := json.Unmarshal([]byte(body), &md); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	md.Title = normalize(md.Title)
	md.Company = normalize(md.Company)
	md.Position = normalize(md.Position)
	md.Date = normalize(md.Date)
	return md, nil
}

func normalize(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}
