package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsvc/internal/agent"
	"agentsvc/internal/agent/ports"
	"agentsvc/internal/dispatch"
	"agentsvc/internal/llm"
	"agentsvc/internal/logging"
	"agentsvc/internal/observability"
	"agentsvc/internal/schema"
)

type dispatchCall struct {
	taskType string
	payload  dispatch.Payload
}

type fakeDispatcher struct {
	calls  []dispatchCall
	result *agent.RunResult
	err    error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, taskType string, payload dispatch.Payload) (*agent.RunResult, error) {
	f.calls = append(f.calls, dispatchCall{taskType: taskType, payload: payload})
	if taskType != dispatch.TaskAnalysis && taskType != dispatch.TaskQA {
		return nil, agent.NewUnknownTaskType(taskType)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func validatedAnalysis(t *testing.T) *schema.Validated {
	t.Helper()
	validated, err := schema.Analysis.Validate(`{"summary":"ok","key_points":["a","b","c"],"sentiment":"neutral","confidence":0.5}`)
	require.NoError(t, err)
	return validated
}

func newTestRouter(d Dispatcher) http.Handler {
	return NewRouter(RouterDeps{
		Dispatcher:     d,
		AllowedOrigins: []string{"http://localhost:3000"},
		Logger:         logging.Nop(),
	})
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(&fakeDispatcher{})
	for _, path := range []string{"/", "/health"} {
		rec := serve(t, router, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"healthy","version":"1.0.0"}`, rec.Body.String())
	}
}

func TestAnalyzeSuccessEnvelope(t *testing.T) {
	d := &fakeDispatcher{result: &agent.RunResult{RunID: "run-1", Output: validatedAnalysis(t)}}
	router := newTestRouter(d)

	rec := serve(t, router, http.MethodPost, "/analyze", `{"content":"hello","context":{"knowledge_base":{"k":"v"}}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-1", rec.Header().Get(runIDHeader))

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body, "error")
	assert.Nil(t, body["error"])
	result := body["result"].(map[string]any)
	assert.Equal(t, "neutral", result["sentiment"])

	require.Len(t, d.calls, 1)
	assert.Equal(t, dispatch.TaskAnalysis, d.calls[0].taskType)
	assert.Equal(t, "hello", d.calls[0].payload.Content)
	assert.True(t, d.calls[0].payload.Context.HasKnowledgeBase())
}

func TestAnalyzeFailureStaysOK(t *testing.T) {
	d := &fakeDispatcher{err: &agent.AgentError{Kind: agent.ModelUnavailable, Detail: "connection refused"}}
	rec := serve(t, newTestRouter(d), http.MethodPost, "/analyze", `{"content":"hello"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body, "result")
	assert.Nil(t, body["result"])
	assert.Equal(t, "model unavailable: connection refused", body["error"])
}

func TestAnalyzeAcceptsEmptyContent(t *testing.T) {
	d := &fakeDispatcher{result: &agent.RunResult{Output: validatedAnalysis(t)}}
	rec := serve(t, newTestRouter(d), http.MethodPost, "/analyze", `{"content":""}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, d.calls, 1)
	assert.Equal(t, "", d.calls[0].payload.Content)
}

func TestMalformedBodiesAreRejected(t *testing.T) {
	cases := []struct {
		name string
		path string
		body string
		want string
	}{
		{"missing content", "/analyze", `{}`, "content is required"},
		{"missing question", "/qa", `{"content":"x"}`, "question is required"},
		{"not json", "/analyze", `{"content":`, "invalid request"},
		{"wrong type", "/qa", `{"question":42}`, "must be string"},
		{"non-object context", "/analyze", `{"content":"x","context":[1]}`, "invalid request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &fakeDispatcher{}
			rec := serve(t, newTestRouter(d), http.MethodPost, tc.path, tc.body)

			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Contains(t, body["error"], tc.want)
			assert.Empty(t, d.calls)
		})
	}
}

func TestQARoutesQuestion(t *testing.T) {
	d := &fakeDispatcher{result: &agent.RunResult{Output: validatedAnalysis(t)}}
	rec := serve(t, newTestRouter(d), http.MethodPost, "/qa", `{"question":"why?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, d.calls, 1)
	assert.Equal(t, dispatch.TaskQA, d.calls[0].taskType)
	assert.Equal(t, "why?", d.calls[0].payload.Question)
	assert.False(t, d.calls[0].payload.Context.HasKnowledgeBase())
}

func TestComplexUnknownTaskType(t *testing.T) {
	d := &fakeDispatcher{}
	rec := serve(t, newTestRouter(d), http.MethodPost, "/complex", `{"task_type":"summarize","content":"x"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"Unknown task type: summarize"}`, rec.Body.String())
	assert.Empty(t, d.calls)
}

func TestComplexChecksTaskTypeBeforeContext(t *testing.T) {
	d := &fakeDispatcher{}
	router := newTestRouter(d)

	rec := serve(t, router, http.MethodPost, "/complex", `{"task_type":"unknown","context":[1]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"Unknown task type: unknown"}`, rec.Body.String())

	rec = serve(t, router, http.MethodPost, "/complex", `{"task_type":"qa","question":"x","context":[1]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "context")
	assert.Empty(t, d.calls)
}

func TestComplexFailureIsServerError(t *testing.T) {
	d := &fakeDispatcher{err: &agent.AgentError{Kind: agent.ToolLoopExceeded, Detail: "more than 5 tool rounds"}}
	rec := serve(t, newTestRouter(d), http.MethodPost, "/complex", `{"task_type":"qa","question":"x"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"tool loop exceeded: more than 5 tool rounds"}`, rec.Body.String())
}

func TestComplexSuccess(t *testing.T) {
	d := &fakeDispatcher{result: &agent.RunResult{RunID: "run-9", Output: validatedAnalysis(t)}}
	rec := serve(t, newTestRouter(d), http.MethodPost, "/complex", `{"task_type":"analysis","content":"text"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "error")
	assert.Equal(t, "ok", body["result"].(map[string]any)["summary"])
	assert.Equal(t, "text", d.calls[0].payload.Content)
}

func TestComplexMalformedBody(t *testing.T) {
	rec := serve(t, newTestRouter(&fakeDispatcher{}), http.MethodPost, "/complex", `not json`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "invalid request")
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	router := newTestRouter(&fakeDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	router := newTestRouter(&fakeDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-abc", rec.Header().Get(requestIDHeader))

	rec = serve(t, router, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestUnknownRouteReturnsDetail(t *testing.T) {
	rec := serve(t, newTestRouter(&fakeDispatcher{}), http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Not Found"}`, rec.Body.String())
}

func TestMetricsEndpointExposesHTTPCounters(t *testing.T) {
	cfg := observability.DefaultConfig()
	cfg.Metrics.Enabled = true
	obs, err := observability.New(cfg, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	router := NewRouter(RouterDeps{Dispatcher: &fakeDispatcher{}, Observability: obs, Logger: logging.Nop()})
	serve(t, router, http.MethodGet, "/health", "")

	rec := serve(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agentsvc_http_requests")
}

func TestMetricsRouteAbsentWhenDisabled(t *testing.T) {
	rec := serve(t, newTestRouter(&fakeDispatcher{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeEndToEndThroughAgents(t *testing.T) {
	model := llm.NewScriptedClient("test",
		llm.Final(`{"summary":"Short.","key_points":["x","y","z"],"sentiment":"negative","confidence":0.3}`),
	)
	analysis, err := dispatch.NewAnalysisAgent(model, agent.WithLogger(logging.Nop()))
	require.NoError(t, err)
	qa, err := dispatch.NewQAAgent(llm.NewScriptedClient("qa", llm.Fail(errors.New("unused"))), agent.WithLogger(logging.Nop()))
	require.NoError(t, err)
	d, err := dispatch.New(analysis, qa, dispatch.WithLogger(logging.Nop()))
	require.NoError(t, err)

	rec := serve(t, newTestRouter(d), http.MethodPost, "/analyze", `{"content":"Bad day."}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	result := body["result"].(map[string]any)
	assert.Equal(t, "negative", result["sentiment"])
	assert.InDelta(t, 0.3, result["confidence"], 1e-9)
	assert.NotEmpty(t, rec.Header().Get(runIDHeader))

	requests := model.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, ports.RoleUser, requests[0].Messages[1].Role)
	assert.Equal(t, "Bad day.", requests[0].Messages[1].Content)
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	rec := serve(t, newTestRouter(panickingDispatcher{}), http.MethodPost, "/analyze", `{"content":"x"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeBody(t, rec)["error"])
}

type panickingDispatcher struct{}

func (panickingDispatcher) Dispatch(context.Context, string, dispatch.Payload) (*agent.RunResult, error) {
	panic("boom")
}
