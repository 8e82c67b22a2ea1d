package message

import "encoding/json"

// Envelope types sent over the activity feed.
const (
	TypeEvent    = "event"
	TypeDispatch = "dispatch"
)

// EventMessage is the JSONL envelope for GitHub webhook events.
type EventMessage struct {
	Type       string          `json:"type"`
	Event      string          `json:"event"`
	DeliveryID string          `json:"delivery_id"`
	Truncated  bool            `json:"truncated,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// DispatchMessage reports the outcome of one workflow_dispatch call.
// Event is always "dispatch" so feed clients can subscribe to it by name.
type DispatchMessage struct {
	Type     string `json:"type"`
	Event    string `json:"event"`
	Source   string `json:"source"`
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Workflow string `json:"workflow"`
	Ref      string `json:"ref"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}
