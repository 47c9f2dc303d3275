package schema

import (
	"fmt"
	"strings"
)

// Violation describes one field that failed validation.
type Violation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// SchemaError lists every violation found in a candidate, in field order.
type SchemaError struct {
	Schema     string      `json:"schema"`
	Violations []Violation `json:"violations"`
}

func (e *SchemaError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "schema validation failed"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("%s output invalid: %s", e.Schema, strings.Join(parts, "; "))
}

// Fields returns the names of the violated fields without duplicates.
func (e *SchemaError) Fields() []string {
	if e == nil {
		return nil
	}
	seen := make(map[string]bool, len(e.Violations))
	var out []string
	for _, v := range e.Violations {
		name := v.Field
		if i := strings.IndexByte(name, '['); i > 0 {
			name = name[:i]
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Feedback renders the violations as corrective instructions for the model.
func (e *SchemaError) Feedback() string {
	var sb strings.Builder
	sb.WriteString("Your previous response did not match the required output format.\n")
	sb.WriteString("Fix the following problems:\n")
	for _, v := range e.Violations {
		sb.WriteString("- ")
		sb.WriteString(v.String())
		sb.WriteString("\n")
	}
	sb.WriteString("Respond again with only the corrected JSON object.")
	return sb.String()
}
