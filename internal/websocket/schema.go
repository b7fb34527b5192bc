package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionViolation Action = "violation"
	ActionPing      Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ViolationRequest reports one integrity monitor transition.
type ViolationRequest struct {
	Action   Action `json:"action"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
	Warnings int    `json:"warnings"`
	State    string `json:"state"`
}

// PingRequest keeps the stream alive.
type PingRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventRecorded Event = "recorded"
	EventPong     Event = "pong"
)

// RecordedResponse acknowledges a stored violation.
type RecordedResponse struct {
	Event    Event `json:"event"`
	Warnings int   `json:"warnings"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
