package logging

import (
	"bytes"
	"testing"

	"agentsvc/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Debug(format string, args ...any) { r.lines = append(r.lines, "D:"+format) }
func (r *recordingLogger) Info(format string, args ...any)  { r.lines = append(r.lines, "I:"+format) }
func (r *recordingLogger) Warn(format string, args ...any)  { r.lines = append(r.lines, "W:"+format) }
func (r *recordingLogger) Error(format string, args ...any) { r.lines = append(r.lines, "E:"+format) }

func TestOrNopHandlesTypedNilPointers(t *testing.T) {
	var typed *recordingLogger
	var logger Logger = typed
	require.True(t, IsNil(logger))

	safe := OrNop(logger)
	require.False(t, IsNil(safe))
	safe.Info("hello %s", "world")
}

func TestFromObservabilityFormatsMessages(t *testing.T) {
	buf := &bytes.Buffer{}
	base := observability.NewLogger(observability.LogConfig{Level: "info", Format: "text", Output: buf})

	logger := FromObservabilityWithComponent(base, "runtime")
	logger.Info("hello %s", "world")

	assert.Contains(t, buf.String(), "hello world")
	assert.Contains(t, buf.String(), "component=runtime")
}

func TestSetDefaultRoutesComponentLoggers(t *testing.T) {
	previous := Default()
	t.Cleanup(func() { SetDefault(previous) })

	buf := &bytes.Buffer{}
	SetDefault(observability.NewLogger(observability.LogConfig{Level: "debug", Format: "text", Output: buf}))

	NewComponentLogger("dispatch").Debug("routed %d", 3)
	assert.Contains(t, buf.String(), "routed 3")
}

func TestMultiFlattensAndSkipsNil(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	var typed *recordingLogger

	logger := Multi(a, nil, typed, Multi(b))
	logger.Warn("careful")

	assert.Equal(t, []string{"W:careful"}, a.lines)
	assert.Equal(t, []string{"W:careful"}, b.lines)
	assert.Equal(t, a, Multi(a))
}
