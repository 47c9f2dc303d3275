package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"agentsvc/internal/agent"
	"agentsvc/internal/agent/ports"
	"agentsvc/internal/dispatch"
	"agentsvc/internal/logging"
	"agentsvc/internal/utils"
)

// Dispatcher is the part of *dispatch.Dispatcher the handlers use.
type Dispatcher interface {
	Dispatch(ctx context.Context, taskType string, payload dispatch.Payload) (*agent.RunResult, error)
}

// AgentHandler serves the agent endpoints.
type AgentHandler struct {
	dispatcher Dispatcher
	logger     logging.Logger
}

func NewAgentHandler(dispatcher Dispatcher, logger logging.Logger) *AgentHandler {
	return &AgentHandler{
		dispatcher: dispatcher,
		logger:     logging.OrNop(logger),
	}
}

// HandleHealth reports liveness.
func (h *AgentHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: utils.Version})
}

// HandleAnalyze runs the analysis agent. Agent failures are reported in the
// envelope with status 200; only unreadable bodies get an error status.
func (h *AgentHandler) HandleAnalyze(c *gin.Context) {
	var req AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rejectBody(c, err)
		return
	}
	rc, err := runContext(req.Context)
	if err != nil {
		h.reject(c, err.Error())
		return
	}
	h.respond(c, dispatch.TaskAnalysis, dispatch.Payload{Content: *req.Content, Context: rc})
}

// HandleQA runs the question answering agent.
func (h *AgentHandler) HandleQA(c *gin.Context) {
	var req QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rejectBody(c, err)
		return
	}
	rc, err := runContext(req.Context)
	if err != nil {
		h.reject(c, err.Error())
		return
	}
	h.respond(c, dispatch.TaskQA, dispatch.Payload{Question: *req.Question, Context: rc})
}

// HandleComplex dispatches on task_type. Unlike the dedicated endpoints it
// signals failures with HTTP status: 400 for an unknown task type, 500 for a
// failed run. The task type is checked before the context is decoded.
func (h *AgentHandler) HandleComplex(c *gin.Context) {
	var req ComplexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorDetail{Detail: describeBindError(err)})
		return
	}
	if !dispatch.KnownTaskType(req.TaskType) {
		err := agent.NewUnknownTaskType(req.TaskType)
		h.logger.Warn("complex task rejected: %v", err)
		c.JSON(http.StatusBadRequest, ErrorDetail{Detail: err.Error()})
		return
	}
	rc, err := runContext(req.Context)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorDetail{Detail: err.Error()})
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), req.TaskType, dispatch.Payload{
		Content:  req.Content,
		Question: req.Question,
		Context:  rc,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if agent.KindOf(err) == agent.UnknownTaskType {
			status = http.StatusBadRequest
		}
		h.logger.Warn("complex task %q failed: %v", req.TaskType, err)
		c.JSON(status, ErrorDetail{Detail: err.Error()})
		return
	}
	c.Header(runIDHeader, result.RunID)
	c.JSON(http.StatusOK, ComplexResponse{Success: true, Result: result.Output})
}

func (h *AgentHandler) respond(c *gin.Context, taskType string, payload dispatch.Payload) {
	result, err := h.dispatcher.Dispatch(c.Request.Context(), taskType, payload)
	if err != nil {
		msg := err.Error()
		h.logger.Warn("%s request failed: %v", taskType, err)
		c.JSON(http.StatusOK, AgentResponse{Success: false, Error: &msg})
		return
	}
	c.Header(runIDHeader, result.RunID)
	c.JSON(http.StatusOK, AgentResponse{Success: true, Result: result.Output})
}

func (h *AgentHandler) rejectBody(c *gin.Context, err error) {
	h.reject(c, describeBindError(err))
}

func (h *AgentHandler) reject(c *gin.Context, msg string) {
	c.JSON(http.StatusUnprocessableEntity, AgentResponse{Success: false, Error: &msg})
}

func runContext(raw json.RawMessage) (*ports.RunContext, error) {
	rc, err := ports.NewRunContext(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return rc, nil
}

func describeBindError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.Is(err, io.EOF):
		return "invalid request: body must be a JSON object"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("invalid request: malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		want := typeErr.Type
		for want.Kind() == reflect.Pointer {
			want = want.Elem()
		}
		return fmt.Sprintf("invalid request: %s must be %s, got %s", typeErr.Field, want.Kind(), typeErr.Value)
	case errors.As(err, &fieldErrs):
		problems := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			problems = append(problems, fmt.Sprintf("%s is %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return "invalid request: " + strings.Join(problems, "; ")
	}
	return "invalid request: " + err.Error()
}
