package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Validated is a result that satisfied every field of its schema.
// Values are normalized: strings, float64, int64, bool, []string and objects.
type Validated struct {
	schema *Schema
	values map[string]any
}

// Schema returns the name of the schema the value was validated against.
func (v *Validated) Schema() string {
	if v == nil || v.schema == nil {
		return ""
	}
	return v.schema.name
}

// Get returns a single field value.
func (v *Validated) Get(field string) (any, bool) {
	if v == nil {
		return nil, false
	}
	value, ok := v.values[field]
	return value, ok
}

// Map returns a shallow copy of the field values.
func (v *Validated) Map() map[string]any {
	if v == nil {
		return nil
	}
	out := make(map[string]any, len(v.values))
	for k, value := range v.values {
		out[k] = value
	}
	return out
}

// MarshalJSON writes fields in schema order.
func (v *Validated) MarshalJSON() ([]byte, error) {
	if v == nil || v.schema == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range v.schema.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(f.Name)
		buf.Write(key)
		buf.WriteByte(':')
		data, err := json.Marshal(v.values[f.Name])
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", f.Name, err)
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Decode copies the values into a typed struct using its json tags.
func (v *Validated) Decode(out any) error {
	data, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
