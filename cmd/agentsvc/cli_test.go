package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func mapEnv(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func execute(t *testing.T, c *cli, args ...string) (string, string, error) {
	t.Helper()
	if c.logOutput == nil {
		c.logOutput = io.Discard
	}
	root := newRootCommandWith(c)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func mockCLI() *cli {
	return &cli{env: mapEnv(map[string]string{"AGENTSVC_MODEL_PROVIDER": "mock"})}
}

func TestYAMLToJSONKeepsMappingOrder(t *testing.T) {
	doc := "knowledge_base:\n  zeta: 1\n  alpha: two\n  list: [a, 2.5, true, null]\nuser: bob\n"
	out, err := yamlToJSON([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, `{"knowledge_base":{"zeta":1,"alpha":"two","list":["a",2.5,true,null]},"user":"bob"}`, string(out))
}

func TestYAMLToJSONAcceptsJSON(t *testing.T) {
	out, err := yamlToJSON([]byte(`{"b": {"y": "1", "x": [1, 2]}, "a": false}`))
	require.NoError(t, err)
	assert.Equal(t, `{"b":{"y":"1","x":[1,2]},"a":false}`, string(out))
}

func TestYAMLToJSONEmptyDocument(t *testing.T) {
	out, err := yamlToJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestReadInput(t *testing.T) {
	got, err := readInput([]string{"hello", "world"}, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)

	got, err = readInput([]string{"-"}, strings.NewReader("from stdin\n"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	got, err = readInput(nil, strings.NewReader("piped"))
	require.NoError(t, err)
	assert.Equal(t, "piped", got)
}

func TestRunFlagsMergeKnowledgeBase(t *testing.T) {
	ctxPath := writeFile(t, "ctx.yaml", "user: bob\nknowledge_base:\n  old: gone\n")
	kbPath := writeFile(t, "kb.yaml", "zeta: last letter\nalpha: first letter\n")

	flags := runFlags{contextPath: ctxPath, kbPath: kbPath}
	rc, err := flags.runContext()
	require.NoError(t, err)

	kb := rc.KnowledgeBase()
	require.Len(t, kb, 2)
	assert.Equal(t, "zeta", kb[0].Key)
	assert.Equal(t, "alpha", kb[1].Key)
	user, ok := rc.Value("user")
	require.True(t, ok)
	assert.Equal(t, "bob", user)
}

func TestRunFlagsRejectNonObjectContext(t *testing.T) {
	flags := runFlags{contextPath: writeFile(t, "ctx.yaml", "- a\n- b\n")}
	_, err := flags.runContext()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid context")
}

func TestToolsSearchCommand(t *testing.T) {
	kbPath := writeFile(t, "kb.yaml", "capital: Paris\nriver: Seine\n")

	stdout, _, err := execute(t, &cli{}, "tools", "search", "--kb", kbPath, "--query", "CAPITAL")
	require.NoError(t, err)
	assert.Equal(t, "capital: Paris\n", stdout)

	stdout, _, err = execute(t, &cli{}, "tools", "search", "--kb", kbPath, "--query", "mountain")
	require.NoError(t, err)
	assert.Equal(t, "No relevant information found in knowledge base.\n", stdout)
}

func TestToolsStatsCommand(t *testing.T) {
	stdout, _, err := execute(t, &cli{}, "tools", "stats", "Hello world. Bye!")
	require.NoError(t, err)

	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &stats))
	assert.EqualValues(t, 3, stats["word_count"])
	assert.Equal(t, true, stats["has_exclamations"])
	assert.Equal(t, false, stats["has_questions"])
}

func TestSchemaShowCommand(t *testing.T) {
	stdout, _, err := execute(t, &cli{}, "schema", "show", "qa")
	require.NoError(t, err)
	assert.Contains(t, stdout, "answer")
	assert.Contains(t, stdout, "confidence")

	stdout, _, err = execute(t, &cli{}, "schema", "show", "analysis", "--json-schema")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Contains(t, doc, "properties")

	_, _, err = execute(t, &cli{}, "schema", "show", "summary")
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, &cli{}, "version")
	require.NoError(t, err)
	assert.Equal(t, "agentsvc 1.0.0\n", stdout)
}

func TestAnalyzeWithMockProvider(t *testing.T) {
	stdout, _, err := execute(t, mockCLI(), "analyze", "The launch went well.")
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &env))
	assert.Equal(t, true, env["success"])
	assert.Nil(t, env["error"])
	result := env["result"].(map[string]any)
	assert.Contains(t, result, "summary")
	assert.Contains(t, result, "sentiment")
}

func TestVerboseWritesDiagnostics(t *testing.T) {
	_, stderr, err := execute(t, mockCLI(), "--verbose", "ask", "why?")
	require.NoError(t, err)
	assert.Contains(t, stderr, "qa run")
	assert.Contains(t, stderr, "awaiting_model")
}

func TestComplexUnknownTaskType(t *testing.T) {
	_, _, err := execute(t, mockCLI(), "complex", "--task-type", "summarize", "--content", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown task type: summarize")
	assert.Contains(t, err.Error(), "analysis, qa")
}

func TestComplexRequiresTaskType(t *testing.T) {
	_, _, err := execute(t, mockCLI(), "complex", "--content", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task-type")
}

func TestConfigShowMasksKey(t *testing.T) {
	c := &cli{env: mapEnv(map[string]string{
		"AZURE_OPENAI_ENDPOINT": "https://example.openai.azure.com",
		"AZURE_OPENAI_API_KEY":  "sk-abcdefghijklmnop",
	})}
	stdout, stderr, err := execute(t, c, "config", "show", "--sources")
	require.NoError(t, err)

	assert.NotContains(t, stdout, "sk-abcdefghijklmnop")
	assert.Contains(t, stdout, "sk-a...mnop")
	assert.Contains(t, stdout, "# model.api_key: env")
	assert.Contains(t, stdout, "# server.port: default")
	assert.Empty(t, stderr)
}

func TestConfigShowReportsMissingKey(t *testing.T) {
	c := &cli{env: mapEnv(map[string]string{"AZURE_OPENAI_ENDPOINT": "https://example.openai.azure.com"})}
	_, stderr, err := execute(t, c, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stderr, "no API key configured")
}

func TestConfigShowRejectsInvalidFile(t *testing.T) {
	path := writeFile(t, "agentsvc.yaml", "model:\n  provider: bedrock\n")
	_, _, err := execute(t, &cli{env: mapEnv(nil)}, "--config", path, "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.provider")
}

func TestConfigFlagReadsFile(t *testing.T) {
	path := writeFile(t, "agentsvc.yaml", "model:\n  provider: mock\nserver:\n  port: 9100\n")
	stdout, _, err := execute(t, &cli{env: mapEnv(nil)}, "-c", path, "config", "show", "--sources")
	require.NoError(t, err)
	assert.Contains(t, stdout, "9100")
	assert.Contains(t, stdout, "# server.port: file")
}
