// Package schema describes the shape of structured model results: the
// prompt-facing field listing spliced into prompts, the JSON schema document
// derived from it, and runtime validation of model output against that schema.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Field is one field of a structured result.
type Field struct {
	Name        string
	Type        string // JSON type: "string", "integer", "number", "boolean", "array", "object"
	Description string
	Optional    bool     // omitted from the schema's required list
	Nullable    bool     // null is an accepted value
	Enum        []string // allowed values, string fields only
	Items       string   // element type when Type is "array" (defaults to "string")
}

// Definition is a structured result type: an ordered list of fields plus a
// name used in schema resources and error messages.
type Definition struct {
	Name   string
	Fields []Field
}

// Description renders the field listing embedded into model prompts, one line
// per field in declaration order.
func (d Definition) Description() string {
	lines := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		lines = append(lines, fmt.Sprintf("        %s: %s - %s", f.Name, f.Type, f.Description))
	}
	return strings.Join(lines, "\n")
}

// JSONSchema returns the definition as a JSON-schema object document.
func (d Definition) JSONSchema() map[string]any {
	properties := make(map[string]any, len(d.Fields))
	required := make([]string, 0, len(d.Fields))

	for _, f := range d.Fields {
		prop := map[string]any{
			"description": f.Description,
		}
		if f.Nullable {
			prop["type"] = []string{f.Type, "null"}
		} else {
			prop["type"] = f.Type
		}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		if f.Type == "array" {
			items := f.Items
			if items == "" {
				items = "string"
			}
			prop["items"] = map[string]any{"type": items}
		}
		properties[f.Name] = prop

		if !f.Optional {
			required = append(required, f.Name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Validate checks raw JSON against the definition's schema.
func (d Definition) Validate(raw json.RawMessage) error {
	schemaBytes, err := json.Marshal(d.JSONSchema())
	if err != nil {
		return fmt.Errorf("failed to serialize schema: %w", err)
	}

	resource := d.resourceName()
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resource, bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("output does not match %s schema: %w", d.resourceBase(), err)
	}
	return nil
}

func (d Definition) resourceName() string {
	return d.resourceBase() + ".schema.json"
}

func (d Definition) resourceBase() string {
	if d.Name == "" {
		return "result"
	}
	return d.Name
}
