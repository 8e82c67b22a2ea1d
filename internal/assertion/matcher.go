package assertion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Match evaluates a against a JSON activity message. Path segments index
// objects by key and arrays by position.
func (a Assertion) Match(data []byte) (bool, error) {
	payload, err := decode(data)
	if err != nil {
		return false, err
	}
	return a.matchValue(payload)
}

// First returns the first assertion matching data.
func First(data []byte, assertions []Assertion) (Assertion, bool) {
	if len(assertions) == 0 {
		return Assertion{}, false
	}
	payload, err := decode(data)
	if err != nil {
		return Assertion{}, false
	}
	for _, a := range assertions {
		if ok, err := a.matchValue(payload); err == nil && ok {
			return a, true
		}
	}
	return Assertion{}, false
}

func decode(data []byte) (any, error) {
	var payload any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (a Assertion) matchValue(payload any) (bool, error) {
	value, found := valueAtPath(payload, a.Path)
	switch a.Operator {
	case OpExists:
		return found, nil
	case OpEquals:
		if !found {
			return false, nil
		}
		str, ok := scalarString(value)
		return ok && str == a.Value, nil
	case OpRegex:
		if !found {
			return false, nil
		}
		str, ok := scalarString(value)
		if !ok {
			return false, nil
		}
		re := a.re
		if re == nil {
			var err error
			if re, err = regexp.Compile(a.Value); err != nil {
				return false, err
			}
		}
		return re.MatchString(str), nil
	default:
		return false, fmt.Errorf("unknown operator %q", a.Operator)
	}
}

func valueAtPath(payload any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	current := payload
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			child, ok := node[part]
			if !ok {
				return nil, false
			}
			current = child
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	case nil:
		return "null", true
	default:
		return "", false
	}
}
