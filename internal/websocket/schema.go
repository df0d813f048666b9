package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer       Action = "answer"        // single-select or text answer
	ActionToggle       Action = "toggle"        // multi-select option toggle
	ActionNavigate     Action = "navigate"      // cursor movement
	ActionFlag         Action = "flag"          // review flag toggle
	ActionLockdown     Action = "lockdown"      // browser lockdown event report
	ActionBlockedInput Action = "blocked_input" // suppressed input report
	ActionSubmit       Action = "submit"
	ActionRetry        Action = "retry"
	ActionPing         Action = "ping"
)

// Navigate operations.
const (
	NavGoTo     = "goto"
	NavNext     = "next"
	NavPrevious = "previous"
)

// Lockdown event kinds reported by the client.
const (
	LockdownFullscreen = "fullscreen"
	LockdownVisibility = "visibility"
	LockdownFocus      = "focus"
)

// RequestPayload is the single inbound message shape. Which fields are
// meaningful depends on Action.
type RequestPayload struct {
	Action    Action `json:"action"`
	QID       string `json:"q_id,omitempty"`
	Value     string `json:"value,omitempty"`
	Option    string `json:"option,omitempty"`
	Selected  bool   `json:"selected,omitempty"`
	Op        string `json:"op,omitempty"`
	Index     int    `json:"index,omitempty"`
	Event     string `json:"event,omitempty"`
	Active    bool   `json:"active,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────
//
// Session machine events (state, tick, violation, fullscreen, ...) are
// emitted by session.Remote with their own typed payloads. The types
// below cover the transport-level responses.

type Event string

const (
	EventError Event = "error"
	EventPong  Event = "pong"
)

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
