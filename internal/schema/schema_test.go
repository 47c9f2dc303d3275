package schema

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAnalysis() map[string]any {
	return map[string]any{
		"summary":    "Quarterly revenue grew.",
		"key_points": []any{"revenue up", "costs flat", "margin improved"},
		"sentiment":  "positive",
		"confidence": 0.8,
	}
}

func TestAnalysisAcceptsValidCandidate(t *testing.T) {
	out, err := Analysis.Validate(validAnalysis())
	require.NoError(t, err)

	var typed AnalysisOutput
	require.NoError(t, out.Decode(&typed))
	assert.Equal(t, "positive", typed.Sentiment)
	assert.Equal(t, 0.8, typed.Confidence)
	assert.Len(t, typed.KeyPoints, 3)
	assert.Nil(t, typed.Categories)
}

func TestAnalysisConfidenceBounds(t *testing.T) {
	for _, confidence := range []any{-0.01, 1.5, 42} {
		candidate := validAnalysis()
		candidate["confidence"] = confidence

		_, err := Analysis.Validate(candidate)
		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr), "confidence %v should fail", confidence)
		assert.Equal(t, []string{"confidence"}, schemaErr.Fields())
		assert.Equal(t, "range", schemaErr.Violations[0].Constraint)
	}

	for _, confidence := range []any{0, 1, 0.5} {
		candidate := validAnalysis()
		candidate["confidence"] = confidence
		_, err := Analysis.Validate(candidate)
		assert.NoError(t, err, "confidence %v should pass", confidence)
	}
}

func TestValidateReportsEveryViolationInFieldOrder(t *testing.T) {
	_, err := Analysis.Validate(map[string]any{
		"summary":    "   ",
		"key_points": []any{"ok", 3},
		"sentiment":  "Happy",
		"extra":      "dropped",
	})

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []Violation{
		{Field: "summary", Constraint: "non_empty", Message: `must not be empty, got "   "`},
		{Field: "key_points[1]", Constraint: "type", Message: "must be a string, got number"},
		{Field: "sentiment", Constraint: "one_of", Message: `must be one of: positive, negative, neutral, mixed, got "Happy"`},
		{Field: "confidence", Constraint: "required", Message: "field is required"},
	}, schemaErr.Violations)
	assert.Contains(t, err.Error(), "analysis output invalid")
	assert.Contains(t, schemaErr.Feedback(), "- sentiment: must be one of")
}

func TestValidateDropsUnknownFieldsAndFillsDefaults(t *testing.T) {
	out, err := QA.Validate(map[string]any{
		"answer":     "Paris",
		"confidence": "0.9",
		"note":       "ignored",
	})
	require.NoError(t, err)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"Paris","confidence":0.9,"sources":null}`, string(data))

	_, ok := out.Get("note")
	assert.False(t, ok)
}

func TestValidateAcceptsTypedStruct(t *testing.T) {
	out, err := QA.Validate(QAOutput{Answer: "42", Confidence: 1, Sources: []string{"guide"}})
	require.NoError(t, err)

	var typed QAOutput
	require.NoError(t, out.Decode(&typed))
	assert.Equal(t, []string{"guide"}, typed.Sources)
}

func TestValidateJSONHandlesFencesAndRepair(t *testing.T) {
	cases := map[string]string{
		"plain":    `{"answer": "yes", "confidence": 0.7}`,
		"fenced":   "```json\n{\"answer\": \"yes\", \"confidence\": 0.7}\n```",
		"prose":    "Here is the result: {\"answer\": \"yes\", \"confidence\": 0.7} hope it helps",
		"trailing": `{"answer": "yes", "confidence": 0.7,}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := QA.ValidateJSON(text)
			require.NoError(t, err)
			answer, _ := out.Get("answer")
			assert.Equal(t, "yes", answer)
		})
	}
}

func TestValidateJSONRejectsNonObject(t *testing.T) {
	_, err := QA.ValidateJSON("I cannot answer that.")
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Len(t, schemaErr.Violations, 1)
	assert.Equal(t, "json", schemaErr.Violations[0].Constraint)
}

func TestDefineRejectsBadDefinitions(t *testing.T) {
	_, err := Define("", "x", String("a", ""))
	assert.Error(t, err)

	_, err = Define("dup", "", String("a", ""), Number("a", ""))
	assert.ErrorContains(t, err, "duplicate field a")

	_, err = Define("mismatch", "", String("a", "", Range(0, 1)))
	assert.ErrorContains(t, err, "range constraint does not apply to string")

	_, err = Define("bounds", "", Number("a", "", Range(2, 1)))
	assert.Error(t, err)

	_, err = Define("fractional", "", Integer("n", "", Range(0, 2.5)))
	assert.ErrorContains(t, err, "integer range bounds must be whole")

	_, err = Define("huge", "", Integer("n", "", Range(0, 1e300)))
	assert.ErrorContains(t, err, "integer range bounds must be whole")

	_, err = Define("fractional_number", "", Number("x", "", Range(0, 2.5)))
	assert.NoError(t, err)
}

func TestIntegerRangeValidates(t *testing.T) {
	s := MustDefine("count", "", Integer("n", "", Range(0, 2)))

	out, err := s.Validate(map[string]any{"n": 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mustGet(t, out, "n"))

	_, err = s.Validate(map[string]any{"n": 3})
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "range", schemaErr.Violations[0].Constraint)
}

func TestIntegerOutsideInt64IsTypeViolation(t *testing.T) {
	s := MustDefine("count", "", Integer("n", ""))

	for _, raw := range []string{`{"n": 1e19}`, `{"n": -1e19}`, `{"n": 9223372036854775808}`} {
		_, err := s.ValidateJSON(raw)
		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr, raw)
		require.Len(t, schemaErr.Violations, 1)
		assert.Equal(t, "type", schemaErr.Violations[0].Constraint)
		assert.Contains(t, schemaErr.Violations[0].Message, "64-bit integer")
	}

	out, err := s.ValidateJSON(`{"n": -9223372036854775808}`)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), mustGet(t, out, "n"))
}

func TestItemsConstraint(t *testing.T) {
	s := MustDefine("points", "", StringList("points", "", Items(3, 5)))

	_, err := s.Validate(map[string]any{"points": []any{"a", "b"}})
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "items", schemaErr.Violations[0].Constraint)

	_, err = s.Validate(map[string]any{"points": []any{"a", "b", "c"}})
	assert.NoError(t, err)
}

func TestJSONSchemaRendering(t *testing.T) {
	rendered := Analysis.JSONSchema()
	assert.Equal(t, "object", rendered.Type)
	assert.Equal(t, []string{"summary", "key_points", "sentiment", "confidence"}, rendered.Required)

	sentiment, ok := rendered.Properties.Get("sentiment")
	require.True(t, ok)
	assert.Equal(t, []any{"positive", "negative", "neutral", "mixed"}, sentiment.Enum)

	confidence, ok := rendered.Properties.Get("confidence")
	require.True(t, ok)
	assert.Equal(t, json.Number("0"), confidence.Minimum)
	assert.Equal(t, json.Number("1"), confidence.Maximum)

	data, err := json.Marshal(rendered)
	require.NoError(t, err)
	assert.True(t, strings.Index(string(data), `"summary"`) < strings.Index(string(data), `"categories"`))
}

func TestDescribeListsFields(t *testing.T) {
	text := QA.Describe()
	assert.Contains(t, text, "- answer (string, required)")
	assert.Contains(t, text, "- sources (list of strings, optional)")
	assert.Contains(t, text, "must be between 0 and 1")
}

func TestBuiltinRegistry(t *testing.T) {
	r := Builtin()
	assert.Equal(t, []string{"analysis", "qa"}, r.Names())

	s, err := r.Get("qa")
	require.NoError(t, err)
	assert.Same(t, QA, s)

	_, err = r.Get("missing")
	assert.Error(t, err)
	assert.Error(t, r.Register(QA))
}

func mustGet(t *testing.T, out *Validated, field string) any {
	t.Helper()
	value, ok := out.Get(field)
	require.True(t, ok, field)
	return value
}
