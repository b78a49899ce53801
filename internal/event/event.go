// Package event defines the real-time events relayed from GitLab webhooks
// to connected viewers.
package event

// Name identifies an event type on the wire. It doubles as the SSE event
// name the browser subscribes to.
type Name string

const (
	IssueCreated Name = "issueCreated"
	IssueUpdated Name = "issueUpdated"
	NoteAdded    Name = "noteAdded"
)

// Event is a single broadcast unit. Payload is one of IssuePayload or
// NotePayload depending on Name. Events are transient: constructed from an
// inbound webhook, published once, discarded.
type Event struct {
	Name    Name
	Payload any
}

// IssuePayload carries the fields a viewer needs to insert or patch an issue
// in its list. Timestamps are passed through as the raw strings GitLab sends
// in webhook payloads.
type IssuePayload struct {
	IID         int    `json:"iid"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	State       string `json:"state"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// NotePayload carries a new note together with its parent issue's iid and
// updated_at, which the viewer uses to locate the issue and refresh its
// last-edited display.
type NotePayload struct {
	IID       int    `json:"iid"`
	NoteID    int    `json:"note_id"`
	Body      string `json:"note"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
