// Package assertion decides when `watch` should stop. An assertion names a
// dotted path into an activity message and a condition on the value found
// there, e.g. "payload.workflow_run.conclusion=success".
package assertion

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type Operator string

const (
	OpEquals Operator = "eq"
	OpRegex  Operator = "regex"
	OpExists Operator = "exists"
)

type Assertion struct {
	Path     string
	Operator Operator
	Value    string

	// ExitCode is what watch exits with when the assertion matches.
	ExitCode int

	re *regexp.Regexp
}

// Parse reads one of "path=value", "path=~regex" or "path exists".
func Parse(input string, exitCode int) (Assertion, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Assertion{}, errors.New("assertion cannot be empty")
	}

	path, value, found := strings.Cut(trimmed, "=")
	if !found {
		fields := strings.Fields(trimmed)
		if len(fields) != 2 || fields[1] != "exists" {
			return Assertion{}, errors.New("expected 'path=value', 'path=~regex', or 'path exists'")
		}
		return Assertion{Path: fields[0], Operator: OpExists, ExitCode: exitCode}, nil
	}

	path = strings.TrimSpace(path)
	value = strings.TrimSpace(value)
	if path == "" {
		return Assertion{}, errors.New("missing path before '='")
	}
	if value == "" {
		return Assertion{}, errors.New("missing value after '='")
	}

	pattern, isRegex := strings.CutPrefix(value, "~")
	if !isRegex {
		return Assertion{Path: path, Operator: OpEquals, Value: value, ExitCode: exitCode}, nil
	}
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return Assertion{}, errors.New("missing regex pattern after '=~'")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Assertion{}, fmt.Errorf("compiling %q: %w", pattern, err)
	}
	return Assertion{Path: path, Operator: OpRegex, Value: pattern, ExitCode: exitCode, re: re}, nil
}

// ParseAll parses every input with the same exit code.
func ParseAll(inputs []string, exitCode int) ([]Assertion, error) {
	assertions := make([]Assertion, 0, len(inputs))
	for _, input := range inputs {
		a, err := Parse(input, exitCode)
		if err != nil {
			return nil, fmt.Errorf("invalid assertion %q: %w", input, err)
		}
		assertions = append(assertions, a)
	}
	return assertions, nil
}

func (a Assertion) String() string {
	switch a.Operator {
	case OpExists:
		return a.Path + " exists"
	case OpRegex:
		return a.Path + "=~" + a.Value
	default:
		return a.Path + "=" + a.Value
	}
}
