package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the JSON type of a field.
type Kind string

const (
	KindString     Kind = "string"
	KindNumber     Kind = "number"
	KindInteger    Kind = "integer"
	KindBoolean    Kind = "boolean"
	KindStringList Kind = "string_list"
	KindObject     Kind = "object"
)

type constraintKind int

const (
	constraintRange constraintKind = iota
	constraintNonEmpty
	constraintOneOf
	constraintItems
)

// Constraint is a declarative rule attached to a field at definition time.
type Constraint struct {
	kind     constraintKind
	min, max float64
	values   []string
}

// Range bounds a number or integer field to [min, max].
func Range(min, max float64) Constraint {
	return Constraint{kind: constraintRange, min: min, max: max}
}

// NonEmpty requires a string with at least one non-space character.
func NonEmpty() Constraint {
	return Constraint{kind: constraintNonEmpty}
}

// OneOf restricts a string field to an enumerated set.
func OneOf(values ...string) Constraint {
	return Constraint{kind: constraintOneOf, values: append([]string(nil), values...)}
}

// Items bounds the length of a list field. max <= 0 means unbounded.
func Items(min, max int) Constraint {
	return Constraint{kind: constraintItems, min: float64(min), max: float64(max)}
}

// name is the identifier reported in violations.
func (c Constraint) name() string {
	switch c.kind {
	case constraintRange:
		return "range"
	case constraintNonEmpty:
		return "non_empty"
	case constraintOneOf:
		return "one_of"
	case constraintItems:
		return "items"
	}
	return "unknown"
}

// tag renders the validator tag enforcing the constraint.
func (c Constraint) tag() string {
	switch c.kind {
	case constraintRange:
		return fmt.Sprintf("gte=%s,lte=%s", formatFloat(c.min), formatFloat(c.max))
	case constraintNonEmpty:
		return "required"
	case constraintOneOf:
		return "oneof=" + strings.Join(c.values, " ")
	case constraintItems:
		if c.max > 0 {
			return fmt.Sprintf("min=%d,max=%d", int(c.min), int(c.max))
		}
		return fmt.Sprintf("min=%d", int(c.min))
	}
	return ""
}

// describe is the human-readable rule, used in prompts and violation messages.
func (c Constraint) describe() string {
	switch c.kind {
	case constraintRange:
		return fmt.Sprintf("must be between %s and %s", formatFloat(c.min), formatFloat(c.max))
	case constraintNonEmpty:
		return "must not be empty"
	case constraintOneOf:
		return fmt.Sprintf("must be one of: %s", strings.Join(c.values, ", "))
	case constraintItems:
		if c.max > 0 {
			return fmt.Sprintf("must have between %d and %d items", int(c.min), int(c.max))
		}
		return fmt.Sprintf("must have at least %d items", int(c.min))
	}
	return ""
}

func (c Constraint) appliesTo(kind Kind) bool {
	switch c.kind {
	case constraintRange:
		return kind == KindNumber || kind == KindInteger
	case constraintNonEmpty, constraintOneOf:
		return kind == KindString
	case constraintItems:
		return kind == KindStringList
	}
	return false
}

// Field is one named entry of an output contract.
type Field struct {
	Name        string
	Kind        Kind
	Description string
	Optional    bool
	Default     any
	Constraints []Constraint
}

// String declares a required string field.
func String(name, description string, constraints ...Constraint) Field {
	return Field{Name: name, Kind: KindString, Description: description, Constraints: constraints}
}

// Number declares a required floating point field.
func Number(name, description string, constraints ...Constraint) Field {
	return Field{Name: name, Kind: KindNumber, Description: description, Constraints: constraints}
}

// Integer declares a required integer field.
func Integer(name, description string, constraints ...Constraint) Field {
	return Field{Name: name, Kind: KindInteger, Description: description, Constraints: constraints}
}

// Boolean declares a required boolean field.
func Boolean(name, description string) Field {
	return Field{Name: name, Kind: KindBoolean, Description: description}
}

// StringList declares a required list of strings.
func StringList(name, description string, constraints ...Constraint) Field {
	return Field{Name: name, Kind: KindStringList, Description: description, Constraints: constraints}
}

// Object declares a required free-form JSON object.
func Object(name, description string) Field {
	return Field{Name: name, Kind: KindObject, Description: description}
}

// WithDefault marks the field optional; absent or null values take def.
func (f Field) WithDefault(def any) Field {
	f.Optional = true
	f.Default = def
	return f
}

func (f Field) validateDefinition() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("field name is required")
	}
	switch f.Kind {
	case KindString, KindNumber, KindInteger, KindBoolean, KindStringList, KindObject:
	default:
		return fmt.Errorf("field %s: unknown kind %q", f.Name, f.Kind)
	}
	for _, c := range f.Constraints {
		if !c.appliesTo(f.Kind) {
			return fmt.Errorf("field %s: %s constraint does not apply to %s", f.Name, c.name(), f.Kind)
		}
		switch c.kind {
		case constraintRange:
			if c.min > c.max {
				return fmt.Errorf("field %s: range min %s exceeds max %s", f.Name, formatFloat(c.min), formatFloat(c.max))
			}
			if f.Kind == KindInteger && !(fitsInt64(c.min) && fitsInt64(c.max)) {
				return fmt.Errorf("field %s: integer range bounds must be whole 64-bit numbers, got %s and %s", f.Name, formatFloat(c.min), formatFloat(c.max))
			}
		case constraintOneOf:
			if len(c.values) == 0 {
				return fmt.Errorf("field %s: one_of needs at least one value", f.Name)
			}
			for _, v := range c.values {
				if v == "" || strings.ContainsAny(v, " \t\n") {
					return fmt.Errorf("field %s: one_of value %q must be a single word", f.Name, v)
				}
			}
		case constraintItems:
			if c.min < 0 || (c.max > 0 && c.min > c.max) {
				return fmt.Errorf("field %s: invalid item bounds", f.Name)
			}
		}
	}
	return nil
}

// fitsInt64 reports whether v is a whole number int64 can hold.
func fitsInt64(v float64) bool {
	return v == math.Trunc(v) && v >= math.MinInt64 && v < -math.MinInt64
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
