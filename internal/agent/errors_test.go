package agent

import (
	"errors"
	"testing"
)

func TestClassifyToolError(t *testing.T) {
	tests := []struct {
		err  error
		want ToolErrorType
	}{
		{errors.New("dial tcp: connection refused"), ToolErrorNetwork},
		{errors.New("context deadline exceeded"), ToolErrorTimeout},
		{errors.New("429 too many requests"), ToolErrorRateLimit},
		{errors.New("permission denied"), ToolErrorPermission},
		{errors.New("missing required field"), ToolErrorInvalidInput},
		{errors.New("path escapes workspace root"), ToolErrorSecurity},
		{errors.New("totally unclassified"), ToolErrorExecution},
	}
	for _, tt := range tests {
		if got := classifyToolError(tt.err); got != tt.want {
			t.Errorf("classifyToolError(%q) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestToolErrorType_IsRetryable(t *testing.T) {
	retryable := []ToolErrorType{ToolErrorTimeout, ToolErrorNetwork, ToolErrorRateLimit}
	for _, ty := range retryable {
		if !ty.IsRetryable() {
			t.Errorf("%s should be retryable", ty)
		}
	}
	notRetryable := []ToolErrorType{ToolErrorNotFound, ToolErrorInvalidInput, ToolErrorPermission, ToolErrorSecurity}
	for _, ty := range notRetryable {
		if ty.IsRetryable() {
			t.Errorf("%s should not be retryable", ty)
		}
	}
}

func TestNewToolError_ClassifiesAndWraps(t *testing.T) {
	cause := errors.New("connection refused")
	te := NewToolError("web_search", cause)
	if te.Type != ToolErrorNetwork {
		t.Errorf("Type = %s, want network", te.Type)
	}
	if !te.Retryable {
		t.Error("expected retryable")
	}
	if !errors.Is(te, cause) && errors.Unwrap(te) != cause {
		t.Error("expected Unwrap to expose cause")
	}
}

func TestGetToolError(t *testing.T) {
	te := NewToolError("x", errors.New("boom")).WithToolCallID("call_1")
	wrapped := errors.New("outer: " + te.Error())
	if _, ok := GetToolError(wrapped); ok {
		t.Error("plain wrapped string should not be extracted as ToolError")
	}
	if got, ok := GetToolError(te); !ok || got.ToolCallID != "call_1" {
		t.Errorf("GetToolError(te) = %v, %v", got, ok)
	}
}

func TestLoopError_Error(t *testing.T) {
	le := &LoopError{Phase: PhaseExecuteTools, Iteration: 3, Message: "boom"}
	want := "loop error at execute_tools (iteration 3): boom"
	if got := le.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
