package ports

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunContextPreservesKnowledgeOrder(t *testing.T) {
	raw := json.RawMessage(`{"knowledge_base": {"zeta": "last letter", "alpha": 1.50, "nested": {"a": [1, 2]}, "flag": true}, "user": "ada"}`)

	rc, err := NewRunContext(raw)
	require.NoError(t, err)

	assert.Equal(t, KnowledgeBase{
		{Key: "zeta", Value: "last letter"},
		{Key: "alpha", Value: "1.50"},
		{Key: "nested", Value: `{"a":[1,2]}`},
		{Key: "flag", Value: "true"},
	}, rc.KnowledgeBase())
	assert.True(t, rc.HasKnowledgeBase())

	user, ok := rc.Value("user")
	require.True(t, ok)
	assert.Equal(t, "ada", user)
}

func TestNewRunContextToleratesMissingOrInvalidKnowledge(t *testing.T) {
	rc, err := NewRunContext(nil)
	require.NoError(t, err)
	assert.Empty(t, rc.KnowledgeBase())

	rc, err = NewRunContext(json.RawMessage(`{"knowledge_base": ["not", "an", "object"]}`))
	require.NoError(t, err)
	assert.Empty(t, rc.KnowledgeBase())
	assert.False(t, rc.HasKnowledgeBase())

	_, err = NewRunContext(json.RawMessage(`[1,2]`))
	require.Error(t, err)
}

func TestNewRunContextRepeatedKnowledgeKeyKeepsLastValue(t *testing.T) {
	raw := json.RawMessage(`{"knowledge_base": {"capital": "Lyon", "river": "Seine", "capital": "Paris"}}`)

	rc, err := NewRunContext(raw)
	require.NoError(t, err)
	assert.Equal(t, KnowledgeBase{
		{Key: "capital", Value: "Paris"},
		{Key: "river", Value: "Seine"},
	}, rc.KnowledgeBase())
}

func TestNewRunContextEmptyKnowledgeBase(t *testing.T) {
	rc, err := NewRunContext(json.RawMessage(`{"knowledge_base": {}}`))
	require.NoError(t, err)
	assert.Empty(t, rc.KnowledgeBase())
	assert.True(t, rc.HasKnowledgeBase())
}

func TestRunContextFromMapSortsKeys(t *testing.T) {
	rc := RunContextFromMap(map[string]any{
		"knowledge_base": map[string]any{"b": "two", "a": 1},
	})
	assert.Equal(t, KnowledgeBase{{Key: "a", Value: "1"}, {Key: "b", Value: "two"}}, rc.KnowledgeBase())
}

func TestNilRunContextIsEmpty(t *testing.T) {
	var rc *RunContext
	assert.Nil(t, rc.KnowledgeBase())
	_, ok := rc.Value("anything")
	assert.False(t, ok)
}
