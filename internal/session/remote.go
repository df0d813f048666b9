package session

import (
	"errors"
	"sync"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/model"
)

// ErrNoClient is returned by fullscreen requests while no client is
// attached (for example between a page reload and the WebSocket
// reconnect). The monitor downgrades it to an advisory violation.
var ErrNoClient = errors.New("no client attached")

// Conn is the minimal transport a Remote needs: a way to push one
// JSON-encodable payload to the client. The WebSocket layer adapts
// gorilla connections to it; tests use in-memory fakes.
type Conn interface {
	Send(v interface{}) error
}

// OutboundEvent names the payloads a Remote pushes to its client.
type OutboundEvent string

const (
	EventState      OutboundEvent = "state"
	EventTick       OutboundEvent = "tick"
	EventSaved      OutboundEvent = "saved"
	EventViolation  OutboundEvent = "violation"
	EventRestored   OutboundEvent = "restored"
	EventInput      OutboundEvent = "input-blocked"
	EventFullscreen OutboundEvent = "fullscreen"
	EventSubmitted  OutboundEvent = "submitted"
	EventFailed     OutboundEvent = "failed"
)

// StatePayload is pushed on every state transition.
type StatePayload struct {
	Event OutboundEvent `json:"event"`
	State State         `json:"state"`
}

// TickPayload is pushed once per second while the countdown runs.
type TickPayload struct {
	Event            OutboundEvent `json:"event"`
	RemainingSeconds int           `json:"remaining_seconds"`
}

// SavedPayload acknowledges an applied answer edit with the encoded
// value now held server-side.
type SavedPayload struct {
	Event OutboundEvent `json:"event"`
	QID   string        `json:"q_id"`
	Value string        `json:"value"`
}

// ViolationPayload is pushed for every detected lockdown violation.
type ViolationPayload struct {
	Event    OutboundEvent `json:"event"`
	Kind     ViolationKind `json:"kind"`
	Blocking bool          `json:"blocking"`
}

// RestoredPayload is pushed when lockdown is restored after a blocking
// violation.
type RestoredPayload struct {
	Event OutboundEvent `json:"event"`
}

// InputBlockedPayload is pushed when the client reports a suppressed
// input.
type InputBlockedPayload struct {
	Event     OutboundEvent `json:"event"`
	Signature string        `json:"signature"`
}

// FullscreenPayload instructs the client to enter or leave fullscreen.
type FullscreenPayload struct {
	Event  OutboundEvent `json:"event"`
	Action string        `json:"action"` // "request" or "exit"
}

// SubmittedPayload carries the final result to the client.
type SubmittedPayload struct {
	Event  OutboundEvent        `json:"event"`
	Result *model.AttemptResult `json:"result"`
}

// FailedPayload reports a failed submission and whether retry can help.
type FailedPayload struct {
	Event     OutboundEvent `json:"event"`
	Error     string        `json:"error"`
	Retryable bool          `json:"retryable"`
}

// Remote implements Emitter and FullscreenController over a swappable
// client connection. A machine keeps one Remote for its whole life;
// WebSocket connections attach and detach as the candidate's browser
// connects, reloads and reconnects. Emissions while detached are
// dropped; the state endpoint rebuilds the view on reconnect.
type Remote struct {
	mu    sync.Mutex
	conn  Conn
	hooks Hooks
}

// Hooks are server-side listeners on machine emissions, set once when
// the session is built. The transport uses them to autosave answers
// and queue violations without the machine knowing about Redis, and
// the registry uses Terminal to evict the session once it can never
// change again.
type Hooks struct {
	AnswerSaved func(questionID, encoded string)
	Violation   func(kind ViolationKind, blocking bool)
	Terminal    func(state State)
}

// NewRemote creates a Remote with no client attached.
func NewRemote() *Remote {
	return &Remote{}
}

// SetHooks installs the server-side listeners.
func (r *Remote) SetHooks(h Hooks) {
	r.mu.Lock()
	r.hooks = h
	r.mu.Unlock()
}

// Attach binds the client connection, replacing any previous one.
func (r *Remote) Attach(c Conn) {
	r.mu.Lock()
	r.conn = c
	r.mu.Unlock()
}

// Detach unbinds the given connection if it is still the current one.
func (r *Remote) Detach(c Conn) {
	r.mu.Lock()
	if r.conn == c {
		r.conn = nil
	}
	r.mu.Unlock()
}

func (r *Remote) send(v interface{}) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return ErrNoClient
	}
	return conn.Send(v)
}

// ─── Emitter ────────────────────────────────────────────────────────

func (r *Remote) StateChanged(state State) {
	_ = r.send(StatePayload{Event: EventState, State: state})
	if !state.Terminal() {
		return
	}
	r.mu.Lock()
	hook := r.hooks.Terminal
	r.mu.Unlock()
	if hook != nil {
		hook(state)
	}
}

func (r *Remote) Tick(remainingSeconds int) {
	_ = r.send(TickPayload{Event: EventTick, RemainingSeconds: remainingSeconds})
}

func (r *Remote) AnswerSaved(questionID, encoded string) {
	_ = r.send(SavedPayload{Event: EventSaved, QID: questionID, Value: encoded})
	r.mu.Lock()
	hook := r.hooks.AnswerSaved
	r.mu.Unlock()
	if hook != nil {
		hook(questionID, encoded)
	}
}

func (r *Remote) ViolationRaised(kind ViolationKind, blocking bool) {
	_ = r.send(ViolationPayload{Event: EventViolation, Kind: kind, Blocking: blocking})
	r.mu.Lock()
	hook := r.hooks.Violation
	r.mu.Unlock()
	if hook != nil {
		hook(kind, blocking)
	}
}

func (r *Remote) Restored() {
	_ = r.send(RestoredPayload{Event: EventRestored})
}

func (r *Remote) InputBlocked(signature string) {
	_ = r.send(InputBlockedPayload{Event: EventInput, Signature: signature})
}

func (r *Remote) Submitted(result *model.AttemptResult) {
	_ = r.send(SubmittedPayload{Event: EventSubmitted, Result: result})
}

func (r *Remote) SubmitFailed(err error, retryable bool) {
	_ = r.send(FailedPayload{Event: EventFailed, Error: err.Error(), Retryable: retryable})
}

// ─── FullscreenController ───────────────────────────────────────────

func (r *Remote) RequestFullscreen() error {
	return r.send(FullscreenPayload{Event: EventFullscreen, Action: "request"})
}

func (r *Remote) ExitFullscreen() error {
	return r.send(FullscreenPayload{Event: EventFullscreen, Action: "exit"})
}
