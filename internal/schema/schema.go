package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kaptinlin/jsonrepair"
)

var (
	validate      = validator.New()
	codeFenceExpr = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")
)

// Schema is an ordered, immutable set of fields a structured result must satisfy.
// It has no side effects and is safe to share between agents.
type Schema struct {
	name        string
	description string
	fields      []Field
}

// Define builds a schema. Field names must be unique and every constraint
// must apply to the kind of field it is attached to.
func Define(name, description string, fields ...Field) (*Schema, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("schema name is required")
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema %s: at least one field is required", name)
	}
	seen := make(map[string]bool, len(fields))
	copied := make([]Field, 0, len(fields))
	for _, f := range fields {
		if err := f.validateDefinition(); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("schema %s: duplicate field %s", name, f.Name)
		}
		seen[f.Name] = true
		f.Constraints = append([]Constraint(nil), f.Constraints...)
		copied = append(copied, f)
	}
	return &Schema{name: name, description: description, fields: copied}, nil
}

// MustDefine is Define for package-level schemas; it panics on a bad definition.
func MustDefine(name, description string, fields ...Field) *Schema {
	s, err := Define(name, description, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string        { return s.name }
func (s *Schema) Description() string { return s.description }

// Fields returns a copy of the field list in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Validate checks a candidate against every field. The candidate may be a
// map, a struct, or raw JSON bytes. Unknown members are dropped.
func (s *Schema) Validate(candidate any) (*Validated, error) {
	object, err := toObject(candidate)
	if err != nil {
		return nil, &SchemaError{Schema: s.name, Violations: []Violation{{
			Constraint: "object",
			Message:    err.Error(),
		}}}
	}

	values := make(map[string]any, len(s.fields))
	var violations []Violation
	for _, f := range s.fields {
		raw, present := object[f.Name]
		if !present || raw == nil {
			if f.Optional {
				values[f.Name] = f.Default
				continue
			}
			violations = append(violations, Violation{Field: f.Name, Constraint: "required", Message: "field is required"})
			continue
		}

		value, typeViolations := coerce(f, raw)
		if len(typeViolations) > 0 {
			violations = append(violations, typeViolations...)
			continue
		}
		violations = append(violations, checkConstraints(f, value)...)
		values[f.Name] = value
	}

	if len(violations) > 0 {
		return nil, &SchemaError{Schema: s.name, Violations: violations}
	}
	return &Validated{schema: s, values: values}, nil
}

// ValidateJSON decodes a model reply and validates it. Markdown code fences
// and text around the outermost object are ignored; near-JSON is repaired.
func (s *Schema) ValidateJSON(text string) (*Validated, error) {
	object, err := decodeObject(text)
	if err != nil {
		return nil, &SchemaError{Schema: s.name, Violations: []Violation{{
			Constraint: "json",
			Message:    fmt.Sprintf("response is not a JSON object: %v", err),
		}}}
	}
	return s.Validate(object)
}

func decodeObject(text string) (map[string]any, error) {
	body := strings.TrimSpace(text)
	if m := codeFenceExpr.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}
	if start := strings.IndexByte(body, '{'); start >= 0 {
		if end := strings.LastIndexByte(body, '}'); end > start {
			body = body[start : end+1]
		} else {
			body = body[start:]
		}
	}
	if body == "" {
		return nil, fmt.Errorf("empty response")
	}

	object, err := unmarshalObject(body)
	if err == nil {
		return object, nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(body)
	if repairErr != nil {
		return nil, err
	}
	return unmarshalObject(repaired)
}

func unmarshalObject(body string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var object map[string]any
	if err := dec.Decode(&object); err != nil {
		return nil, err
	}
	if object == nil {
		return nil, fmt.Errorf("expected an object, got null")
	}
	return object, nil
}

func toObject(candidate any) (map[string]any, error) {
	switch c := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("expected an object, got null")
	case map[string]any:
		return c, nil
	case *Validated:
		return c.Map(), nil
	case json.RawMessage:
		return unmarshalObject(string(c))
	case []byte:
		return unmarshalObject(string(c))
	case string:
		return unmarshalObject(c)
	}
	data, err := json.Marshal(candidate)
	if err != nil {
		return nil, fmt.Errorf("candidate is not serializable: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var object map[string]any
	if err := dec.Decode(&object); err != nil {
		return nil, fmt.Errorf("expected an object: %w", err)
	}
	return object, nil
}

func coerce(f Field, raw any) (any, []Violation) {
	typeErr := func(want string) []Violation {
		return []Violation{{Field: f.Name, Constraint: "type", Message: fmt.Sprintf("must be %s, got %s", want, describeJSONType(raw))}}
	}

	switch f.Kind {
	case KindString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return nil, typeErr("a string")

	case KindNumber:
		n, ok := toFloat(raw)
		if !ok {
			return nil, typeErr("a number")
		}
		return n, nil

	case KindInteger:
		n, ok := toFloat(raw)
		if !ok || n != math.Trunc(n) {
			return nil, typeErr("an integer")
		}
		if !fitsInt64(n) {
			return nil, []Violation{{Field: f.Name, Constraint: "type", Message: fmt.Sprintf("must be a 64-bit integer, got %s", formatFloat(n))}}
		}
		return int64(n), nil

	case KindBoolean:
		switch b := raw.(type) {
		case bool:
			return b, nil
		case string:
			if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
				return parsed, nil
			}
		}
		return nil, typeErr("a boolean")

	case KindStringList:
		items, ok := toList(raw)
		if !ok {
			return nil, typeErr("a list of strings")
		}
		out := make([]string, 0, len(items))
		var violations []Violation
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				violations = append(violations, Violation{
					Field:      fmt.Sprintf("%s[%d]", f.Name, i),
					Constraint: "type",
					Message:    fmt.Sprintf("must be a string, got %s", describeJSONType(item)),
				})
				continue
			}
			out = append(out, s)
		}
		if len(violations) > 0 {
			return nil, violations
		}
		return out, nil

	case KindObject:
		if m, ok := raw.(map[string]any); ok {
			return m, nil
		}
		return nil, typeErr("an object")
	}
	return nil, typeErr(string(f.Kind))
}

func checkConstraints(f Field, value any) []Violation {
	var violations []Violation
	for _, c := range f.Constraints {
		target := value
		if c.kind == constraintNonEmpty {
			target = strings.TrimSpace(value.(string))
		}
		if err := validate.Var(target, c.tag()); err != nil {
			violations = append(violations, Violation{
				Field:      f.Name,
				Constraint: c.name(),
				Message:    fmt.Sprintf("%s, got %s", c.describe(), describeValue(value)),
			})
		}
	}
	return violations
}

// toFloat accepts JSON numbers and, leniently, numeric strings.
func toFloat(raw any) (float64, bool) {
	var (
		n   float64
		err error
	)
	switch v := raw.(type) {
	case json.Number:
		n, err = v.Float64()
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case string:
		n, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func toList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func describeJSONType(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int64:
		return "number"
	case []any, []string:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", raw)
}

func describeValue(value any) string {
	switch v := value.(type) {
	case string:
		return strconv.Quote(v)
	case float64:
		return formatFloat(v)
	case []string:
		return fmt.Sprintf("%d items", len(v))
	}
	return fmt.Sprint(value)
}
