package id

import "context"

type contextKey string

const (
	runKey     contextKey = "agentsvc_run_id"
	requestKey contextKey = "agentsvc_request_id"
)

// WithRunID stores the current run identifier on the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runKey, runID)
}

// RunIDFromContext extracts the run identifier from context.
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if runID, ok := ctx.Value(runKey).(string); ok {
		return runID
	}
	return ""
}

// WithRequestID stores the inbound request identifier on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestKey, requestID)
}

// RequestIDFromContext extracts the request identifier from context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(requestKey).(string); ok {
		return requestID
	}
	return ""
}
