package ports

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// KnowledgeBaseKey is the context entry holding the key/value knowledge base.
const KnowledgeBaseKey = "knowledge_base"

// KnowledgeEntry is one key/value pair of a knowledge base.
type KnowledgeEntry struct {
	Key   string
	Value string
}

// KnowledgeBase keeps entries in the order the caller supplied them.
type KnowledgeBase []KnowledgeEntry

// RunContext holds the dependencies injected into a single run.
// It is created per request and never shared between runs.
type RunContext struct {
	values    map[string]any
	knowledge KnowledgeBase
}

// NewRunContext parses a request context object. Entry order of the knowledge
// base is preserved; a knowledge_base that is not an object is ignored.
func NewRunContext(raw json.RawMessage) (*RunContext, error) {
	rc := &RunContext{values: map[string]any{}}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return rc, nil
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, fmt.Errorf("context must be a JSON object: %w", err)
	}
	for key, value := range values {
		var decoded any
		if err := decodeNumbers(value, &decoded); err != nil {
			return nil, fmt.Errorf("context.%s: %w", key, err)
		}
		rc.values[key] = decoded
	}

	if kb, ok := values[KnowledgeBaseKey]; ok {
		entries, err := parseOrderedObject(kb)
		if err == nil {
			rc.knowledge = entries
		}
	}
	return rc, nil
}

// RunContextFromMap builds a run context from already-decoded values.
// Map iteration order is not stable, so knowledge entries are sorted by key.
func RunContextFromMap(values map[string]any) *RunContext {
	rc := &RunContext{values: map[string]any{}}
	for k, v := range values {
		rc.values[k] = v
	}
	kb, ok := values[KnowledgeBaseKey].(map[string]any)
	if !ok {
		return rc
	}
	keys := make([]string, 0, len(kb))
	for k := range kb {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rc.knowledge = append(rc.knowledge, KnowledgeEntry{Key: k, Value: Stringify(kb[k])})
	}
	return rc
}

// KnowledgeBase returns the knowledge base visible to tools during this run.
func (rc *RunContext) KnowledgeBase() KnowledgeBase {
	if rc == nil {
		return nil
	}
	return rc.knowledge
}

// HasKnowledgeBase reports whether the caller supplied a knowledge_base object.
func (rc *RunContext) HasKnowledgeBase() bool {
	if rc == nil {
		return false
	}
	_, ok := rc.values[KnowledgeBaseKey].(map[string]any)
	return ok
}

// Value returns a raw context entry.
func (rc *RunContext) Value(key string) (any, bool) {
	if rc == nil {
		return nil, false
	}
	v, ok := rc.values[key]
	return v, ok
}

// Stringify renders a knowledge value the way it is matched and displayed:
// strings verbatim, numbers and booleans as literals, composites as compact JSON.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(data)
}

func decodeNumbers(raw json.RawMessage, out *any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

// parseOrderedObject reads a JSON object keeping member order. A repeated
// key keeps its first position and its last value.
func parseOrderedObject(raw json.RawMessage) (KnowledgeBase, error) {
	members := orderedmap.New[string, json.RawMessage]()
	if err := members.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("knowledge_base must be an object: %w", err)
	}

	entries := make(KnowledgeBase, 0, members.Len())
	for pair := members.Oldest(); pair != nil; pair = pair.Next() {
		var value any
		if err := decodeNumbers(pair.Value, &value); err != nil {
			return nil, fmt.Errorf("knowledge_base.%s: %w", pair.Key, err)
		}
		entries = append(entries, KnowledgeEntry{Key: pair.Key, Value: Stringify(value)})
	}
	return entries, nil
}
