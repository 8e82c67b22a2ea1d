package github

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string

	// Errors holds field-level failures, present on 422 responses.
	Errors []ValidationError
}

// ValidationError describes one rejected field of a request.
type ValidationError struct {
	Resource string
	Field    string
	Code     string
	Message  string
}

func (err *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", err.StatusCode, err.Detail())
}

// Detail is the upstream explanation without the status prefix.
func (err *APIError) Detail() string {
	var builder strings.Builder
	builder.WriteString(err.Message)
	for _, v := range err.Errors {
		reason := v.Message
		if reason == "" {
			reason = v.Code
		}
		fmt.Fprintf(&builder, "; %s.%s: %s", v.Resource, v.Field, reason)
	}
	return builder.String()
}

// IsNotFound reports whether err is a GitHub API 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the upstream HTTP status carried by err, or 0 when
// err did not come from a GitHub response.
func StatusCode(err error) int {
	var apiError *APIError
	if errors.As(err, &apiError) {
		return apiError.StatusCode
	}
	return 0
}
