package schema

import (
	"fmt"
	"sort"
)

// Names of the builtin output contracts.
const (
	AnalysisName = "analysis"
	QAName       = "qa"
)

// Sentiments accepted by the analysis contract.
var Sentiments = []string{"positive", "negative", "neutral", "mixed"}

// AnalysisOutput is the typed form of the analysis contract.
type AnalysisOutput struct {
	Summary    string   `json:"summary"`
	KeyPoints  []string `json:"key_points"`
	Sentiment  string   `json:"sentiment"`
	Confidence float64  `json:"confidence"`
	Categories []string `json:"categories"`
}

// QAOutput is the typed form of the question answering contract.
type QAOutput struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// Analysis is the structured output of the analysis agent.
var Analysis = MustDefine(AnalysisName, "Structured output for content analysis",
	String("summary", "Brief summary of the content (2-3 sentences)", NonEmpty()),
	StringList("key_points", "3-5 key points extracted from the content"),
	String("sentiment", "Overall sentiment: positive, negative, neutral, or mixed", OneOf(Sentiments...)),
	Number("confidence", "Confidence score between 0 and 1", Range(0, 1)),
	StringList("categories", "Relevant categories or topics").WithDefault(nil),
)

// QA is the structured output of the question answering agent.
var QA = MustDefine(QAName, "Structured output for question answering",
	String("answer", "Direct answer to the question", NonEmpty()),
	Number("confidence", "Confidence in the answer", Range(0, 1)),
	StringList("sources", "Sources used").WithDefault(nil),
)

// Registry is a name-indexed set of schemas. It is populated at startup and
// only read afterwards.
type Registry struct {
	schemas map[string]*Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Builtin returns a registry holding the analysis and qa contracts.
func Builtin() *Registry {
	r := NewRegistry()
	_ = r.Register(Analysis)
	_ = r.Register(QA)
	return r
}

func (r *Registry) Register(s *Schema) error {
	if s == nil {
		return fmt.Errorf("schema is nil")
	}
	if _, exists := r.schemas[s.name]; exists {
		return fmt.Errorf("schema already registered: %s", s.name)
	}
	r.schemas[s.name] = s
	return nil
}

func (r *Registry) Get(name string) (*Schema, error) {
	s, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("schema not found: %s", name)
	}
	return s, nil
}

// Names lists registered schemas in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
