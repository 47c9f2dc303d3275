package http

import "encoding/json"

// AnalysisRequest is the body of POST /analyze.
type AnalysisRequest struct {
	Content *string         `json:"content" binding:"required"`
	Context json.RawMessage `json:"context,omitempty"`
}

// QARequest is the body of POST /qa.
type QARequest struct {
	Question *string         `json:"question" binding:"required"`
	Context  json.RawMessage `json:"context,omitempty"`
}

// ComplexRequest is the body of POST /complex.
type ComplexRequest struct {
	TaskType string          `json:"task_type"`
	Content  string          `json:"content"`
	Question string          `json:"question"`
	Context  json.RawMessage `json:"context,omitempty"`
}

// AgentResponse is the envelope of /analyze and /qa. Both result and error
// are always present; exactly one of them is non-null.
type AgentResponse struct {
	Success bool    `json:"success"`
	Result  any     `json:"result"`
	Error   *string `json:"error"`
}

// ComplexResponse is the success body of /complex.
type ComplexResponse struct {
	Success bool `json:"success"`
	Result  any  `json:"result"`
}

// ErrorDetail is the failure body of /complex.
type ErrorDetail struct {
	Detail string `json:"detail"`
}

// HealthResponse is returned by / and /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
