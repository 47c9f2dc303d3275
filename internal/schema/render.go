package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// JSONSchema renders the contract for providers that accept a response schema.
func (s *Schema) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	var required []string
	for _, f := range s.fields {
		props.Set(f.Name, fieldSchema(f))
		if !f.Optional {
			required = append(required, f.Name)
		}
	}
	return &jsonschema.Schema{
		Type:                 "object",
		Title:                s.name,
		Description:          s.description,
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

func fieldSchema(f Field) *jsonschema.Schema {
	out := &jsonschema.Schema{Description: f.Description}
	switch f.Kind {
	case KindString:
		out.Type = "string"
	case KindNumber:
		out.Type = "number"
	case KindInteger:
		out.Type = "integer"
	case KindBoolean:
		out.Type = "boolean"
	case KindStringList:
		out.Type = "array"
		out.Items = &jsonschema.Schema{Type: "string"}
	case KindObject:
		out.Type = "object"
	}
	if f.Optional && f.Default != nil {
		out.Default = f.Default
	}

	for _, c := range f.Constraints {
		switch c.kind {
		case constraintRange:
			out.Minimum = json.Number(formatFloat(c.min))
			out.Maximum = json.Number(formatFloat(c.max))
		case constraintNonEmpty:
			one := uint64(1)
			out.MinLength = &one
		case constraintOneOf:
			for _, v := range c.values {
				out.Enum = append(out.Enum, v)
			}
		case constraintItems:
			lo := uint64(c.min)
			out.MinItems = &lo
			if c.max > 0 {
				hi := uint64(c.max)
				out.MaxItems = &hi
			}
		}
	}
	return out
}

// Describe renders the contract as prompt text so the model knows the target shape.
func (s *Schema) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Respond with a single JSON object (%s) with these fields:\n", s.name)
	for _, f := range s.fields {
		fmt.Fprintf(&sb, "- %s (%s", f.Name, kindLabel(f.Kind))
		if f.Optional {
			sb.WriteString(", optional")
		} else {
			sb.WriteString(", required")
		}
		sb.WriteString(")")
		if f.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(f.Description)
		}
		for _, c := range f.Constraints {
			sb.WriteString("; ")
			sb.WriteString(c.describe())
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Do not include any other text outside the JSON object.")
	return sb.String()
}

func kindLabel(kind Kind) string {
	if kind == KindStringList {
		return "list of strings"
	}
	return string(kind)
}
