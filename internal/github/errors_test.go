package github

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name:     "simple message",
			err:      &APIError{StatusCode: 404, Message: "Not Found"},
			expected: "github: HTTP 404: Not Found",
		},
		{
			name: "validation error with message",
			err: &APIError{
				StatusCode: 422,
				Message:    "Validation Failed",
				Errors:     []ValidationError{{Resource: "Workflow", Field: "ref", Message: "No ref found"}},
			},
			expected: "github: HTTP 422: Validation Failed; Workflow.ref: No ref found",
		},
		{
			name: "validation error with code",
			err: &APIError{
				StatusCode: 422,
				Message:    "Validation Failed",
				Errors:     []ValidationError{{Resource: "Workflow", Field: "ref", Code: "missing_field"}},
			},
			expected: "github: HTTP 422: Validation Failed; Workflow.ref: missing_field",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestStatusCode(t *testing.T) {
	wrapped := fmt.Errorf("listing runs: %w", &APIError{StatusCode: 404, Message: "Not Found"})
	if got := StatusCode(wrapped); got != 404 {
		t.Errorf("StatusCode = %d, want 404", got)
	}
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should see through wrapping")
	}
	if got := StatusCode(errors.New("dial tcp: refused")); got != 0 {
		t.Errorf("StatusCode = %d, want 0", got)
	}
	if IsNotFound(nil) {
		t.Error("IsNotFound(nil) should be false")
	}
}
