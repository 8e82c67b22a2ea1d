package server

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
)

// Deliveries above feedPayloadLimit have their long arrays cut before they
// are sent to feed clients. The webhook pipeline always sees the full body.
const (
	feedPayloadLimit = 512 * 1024
	feedArrayLimit   = 10
)

// Arrays in push and pull_request payloads that grow with the change size.
var trimmableArrays = []string{"commits", "files", "added", "removed", "modified", "pages"}

type trimmedArray struct {
	OriginalCount int `json:"original_count"`
	Kept          int `json:"kept"`
}

type feedPayload struct {
	raw     json.RawMessage
	trimmed map[string]trimmedArray
}

func (p feedPayload) truncated() bool {
	return len(p.trimmed) > 0
}

// fields lists the trimmed keys in a stable order for logging.
func (p feedPayload) fields() string {
	return strings.Join(slices.Sorted(maps.Keys(p.trimmed)), ",")
}

// shrinkForFeed returns body unchanged when it is small enough. Otherwise it
// keeps the first feedArrayLimit elements of each trimmable array and records
// what was cut under "_truncated".
func shrinkForFeed(body []byte) (feedPayload, error) {
	if len(body) <= feedPayloadLimit {
		return feedPayload{raw: body}, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return feedPayload{raw: body}, err
	}

	trimmed := make(map[string]trimmedArray)
	for _, key := range trimmableArrays {
		items, ok := payload[key].([]any)
		if !ok || len(items) <= feedArrayLimit {
			continue
		}
		payload[key] = items[:feedArrayLimit]
		trimmed[key] = trimmedArray{OriginalCount: len(items), Kept: feedArrayLimit}
	}
	if len(trimmed) == 0 {
		return feedPayload{raw: body}, nil
	}

	payload["_truncated"] = trimmed
	encoded, err := json.Marshal(payload)
	if err != nil {
		return feedPayload{raw: body}, err
	}
	return feedPayload{raw: encoded, trimmed: trimmed}, nil
}
