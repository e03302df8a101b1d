package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave  Action = "autosave"
	ActionSelect    Action = "select"
	ActionViolation Action = "violation"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// RequestPayload carries every client message; which fields matter
// depends on the action.
type RequestPayload struct {
	Action Action `json:"action"`

	// autosave
	QID   string          `json:"q_id,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`

	// select
	Index int `json:"index,omitempty"`

	// violation
	Type    string `json:"type,omitempty"`
	Details string `json:"details,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventGraded  Event = "graded"
	EventExpired Event = "expired"
	EventPong    Event = "pong"
)

type SavedResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

type SelectedResponse struct {
	Event Event `json:"event"`
	Index int   `json:"index"`
}

type ViolationResponse struct {
	Event    Event `json:"event"`
	Recorded bool  `json:"recorded"`
}

// GradedResponse confirms the terminal transition and carries the grade.
type GradedResponse struct {
	Event  Event   `json:"event"`
	Status string  `json:"status"`
	Score  float64 `json:"score"`
	Passed bool    `json:"passed"`
}

// ExpiredResponse is pushed when the countdown reaches zero and the
// attempt is auto-submitted server-side.
type ExpiredResponse struct {
	Event  Event   `json:"event"`
	Status string  `json:"status"`
	Score  float64 `json:"score"`
	Passed bool    `json:"passed"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining"`
}
