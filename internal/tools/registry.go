package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
	"github.com/sahilm/fuzzy"

	"agentsvc/internal/agent/ports"
)

const maxSuggestions = 3

// Result is the outcome of a successful invocation.
type Result struct {
	Tool     string
	Value    any
	Content  string
	Duration time.Duration
}

// Registry maps tool names to specs. Once frozen it is read-only and can be
// shared by concurrent runs.
type Registry struct {
	mu     sync.RWMutex
	specs  map[string]Spec
	order  []string
	frozen bool
}

// NewRegistry creates a registry holding specs.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{specs: make(map[string]Spec)}
	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a spec. Names must be unique.
func (r *Registry) Register(spec Spec) error {
	if err := spec.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("tool registry is frozen, cannot register %s", spec.Name)
	}
	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("tool already exists: %s", spec.Name)
	}
	if spec.Parameters == nil {
		spec.Parameters = &jsonschema.Schema{Type: "object", Properties: jsonschema.NewProperties()}
	}
	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

func (r *Registry) Get(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	return spec, ok
}

// List returns specs in registration order.
func (r *Registry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

// Names returns the registered names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Definitions returns the catalog shown to the model.
func (r *Registry) Definitions() []ports.ToolDefinition {
	specs := r.List()
	defs := make([]ports.ToolDefinition, 0, len(specs))
	for _, spec := range specs {
		defs = append(defs, spec.Definition())
	}
	return defs
}

// Invoke validates raw arguments and runs the named tool. Every failure is a
// *ToolError; the handler is never called when arguments are invalid.
func (r *Registry) Invoke(ctx context.Context, name string, rc *ports.RunContext, rawArgs json.RawMessage) (*Result, error) {
	spec, ok := r.Get(name)
	if !ok {
		return nil, &ToolError{Kind: UnknownTool, Tool: name, Detail: "not registered", Suggestions: r.suggest(name)}
	}

	args, err := normalizeArguments(rawArgs)
	if err != nil {
		return nil, invalidArguments(name, "%v", err)
	}
	if err := checkArguments(spec.Parameters, args); err != nil {
		return nil, invalidArguments(name, "%v", err)
	}

	start := time.Now()
	value, err := spec.Handler(ctx, rc, args)
	if err != nil {
		var argErr *argumentsError
		if errors.As(err, &argErr) {
			return nil, &ToolError{Kind: InvalidArguments, Tool: name, Detail: argErr.detail}
		}
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}
		return nil, &ToolError{Kind: HandlerFailure, Tool: name, Detail: err.Error(), Err: err}
	}

	content, err := render(value)
	if err != nil {
		return nil, &ToolError{Kind: HandlerFailure, Tool: name, Detail: err.Error(), Err: err}
	}
	return &Result{Tool: name, Value: value, Content: content, Duration: time.Since(start)}, nil
}

func (r *Registry) suggest(name string) []string {
	matches := fuzzy.Find(name, r.Names())
	out := make([]string, 0, maxSuggestions)
	for i := 0; i < len(matches) && i < maxSuggestions; i++ {
		out = append(out, matches[i].Str)
	}
	return out
}

// normalizeArguments turns model output into a JSON object, repairing
// near-JSON the way final payloads are repaired.
func normalizeArguments(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}"), nil
	}
	if json.Valid(trimmed) {
		return trimmed, nil
	}
	repaired, err := jsonrepair.JSONRepair(string(trimmed))
	if err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON")
	}
	return json.RawMessage(repaired), nil
}

// checkArguments enforces the top level of the parameter schema: the value
// is an object, required members are present and members have the declared type.
func checkArguments(params *jsonschema.Schema, args json.RawMessage) error {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(args, &object); err != nil || object == nil {
		return fmt.Errorf("arguments must be a JSON object")
	}
	if params == nil {
		return nil
	}
	for _, name := range params.Required {
		if _, ok := object[name]; !ok {
			return fmt.Errorf("missing required field %s", name)
		}
	}
	if params.Properties == nil {
		return nil
	}
	for pair := params.Properties.Oldest(); pair != nil; pair = pair.Next() {
		value, ok := object[pair.Key]
		if !ok || pair.Value == nil || pair.Value.Type == "" {
			continue
		}
		if got := jsonType(value); !typeMatches(pair.Value.Type, got) {
			return fmt.Errorf("%s must be %s, got %s", pair.Key, pair.Value.Type, got)
		}
	}
	if params.AdditionalProperties == jsonschema.FalseSchema {
		for key := range object {
			if _, declared := params.Properties.Get(key); !declared {
				return fmt.Errorf("unexpected field %s", key)
			}
		}
	}
	return nil
}

func jsonType(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "null"
	}
	switch trimmed[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	}
	if bytes.ContainsAny(trimmed, ".eE") {
		return "number"
	}
	return "integer"
}

func typeMatches(want, got string) bool {
	return want == got || (want == "number" && got == "integer")
}

func render(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("render result: %w", err)
	}
	return string(data), nil
}
