package session

import (
	"sync"

	"github.com/rs/zerolog"
)

// ViolationKind classifies a detected departure from lockdown.
type ViolationKind string

const (
	ViolationFullscreenExited ViolationKind = "fullscreen-exited"
	ViolationTabHidden        ViolationKind = "tab-hidden"
	ViolationWindowBlurred    ViolationKind = "window-blurred"
)

// Blocking reports whether the violation blocks the session until the
// candidate restores lockdown. Only a fullscreen exit blocks; tab and
// focus changes are advisory.
func (k ViolationKind) Blocking() bool {
	return k == ViolationFullscreenExited
}

// FullscreenController abstracts the browser fullscreen capability.
// Implementations push the request to the connected client; errors mean
// the platform refused or no client is attached.
type FullscreenController interface {
	RequestFullscreen() error
	ExitFullscreen() error
}

// MonitorCallbacks are invoked by the Monitor as lockdown state changes.
// All callbacks are optional.
type MonitorCallbacks struct {
	// OnViolation fires for every detected violation. blocking mirrors
	// ViolationKind.Blocking and is passed along for convenience.
	OnViolation func(kind ViolationKind, blocking bool)
	// OnRestored fires when fullscreen is re-entered after a
	// fullscreen-exited violation.
	OnRestored func()
	// OnInputBlocked fires when the client reports it suppressed an
	// input on the blocklist. Advisory only.
	OnInputBlocked func(signature string)
}

// BlockedInput describes one entry of the fixed input blocklist served
// to the client when the monitor arms. Suppression happens in the
// browser and is best-effort: it raises awareness, it does not
// guarantee prevention.
type BlockedInput struct {
	Signature string `json:"signature"`
	Reason    string `json:"reason"`
}

// Blocklist returns the fixed set of inputs the client must intercept
// and suppress for the duration of the session.
func Blocklist() []BlockedInput {
	return []BlockedInput{
		{Signature: "contextmenu", Reason: "context menu"},
		{Signature: "F11", Reason: "fullscreen toggle"},
		{Signature: "F12", Reason: "developer tools"},
		{Signature: "Ctrl+Shift+I", Reason: "developer tools"},
		{Signature: "Ctrl+Shift+J", Reason: "developer console"},
		{Signature: "Ctrl+Shift+C", Reason: "element inspector"},
		{Signature: "Ctrl+U", Reason: "view source"},
		{Signature: "Ctrl+P", Reason: "print"},
		{Signature: "Ctrl+S", Reason: "save page"},
		{Signature: "Ctrl+W", Reason: "close tab"},
		{Signature: "Ctrl+T", Reason: "new tab"},
		{Signature: "Ctrl+N", Reason: "new window"},
		{Signature: "Ctrl+Tab", Reason: "tab switch"},
	}
}

// Monitor observes fullscreen, visibility and focus state reported by
// the client and raises violations. It is the sole writer of that
// state; only the owning session machine may request fullscreen
// transitions through it.
type Monitor struct {
	fs  FullscreenController
	log zerolog.Logger

	mu         sync.Mutex
	cb         MonitorCallbacks
	armed      bool
	fullscreen bool
	visible    bool
	focused    bool
}

// NewMonitor creates a disarmed monitor around a fullscreen controller.
func NewMonitor(fs FullscreenController, log zerolog.Logger) *Monitor {
	return &Monitor{
		fs:  fs,
		log: log.With().Str("component", "lockdown_monitor").Logger(),
	}
}

// Arm starts observing. The client is assumed visible and focused but
// not yet fullscreen; the caller follows up with EnterFullscreen.
// Arming an armed monitor replaces its callbacks.
func (m *Monitor) Arm(cb MonitorCallbacks) {
	m.mu.Lock()
	m.cb = cb
	m.armed = true
	m.fullscreen = false
	m.visible = true
	m.focused = true
	m.mu.Unlock()
}

// Disarm stops observing and drops callbacks. Idempotent; a disarmed
// monitor ignores all reported events so a stray listener can never
// fire into a torn-down session.
func (m *Monitor) Disarm() {
	m.mu.Lock()
	m.cb = MonitorCallbacks{}
	m.armed = false
	m.mu.Unlock()
}

// Armed reports whether the monitor is observing.
func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

// Fullscreen reports the last observed fullscreen state.
func (m *Monitor) Fullscreen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fullscreen
}

// EnterFullscreen asks the client to enter fullscreen. A platform
// refusal is reported as an advisory violation, never an error: the
// candidate will be blocked by the fullscreenchange report instead.
func (m *Monitor) EnterFullscreen() {
	if err := m.fs.RequestFullscreen(); err != nil {
		m.log.Warn().Err(err).Msg("Fullscreen request refused")
		m.mu.Lock()
		cb, armed := m.cb, m.armed
		m.mu.Unlock()
		if armed && cb.OnViolation != nil {
			cb.OnViolation(ViolationFullscreenExited, false)
		}
	}
}

// ExitFullscreen asks the client to leave fullscreen. Called by the
// session machine on the submitting transition only, and always
// best-effort so the result screen is never trapped in lockdown.
func (m *Monitor) ExitFullscreen() {
	if err := m.fs.ExitFullscreen(); err != nil {
		m.log.Debug().Err(err).Msg("Fullscreen exit refused")
	}
}

// FullscreenChanged records a reported fullscreen state change.
// Leaving fullscreen raises a blocking violation; re-entering after a
// violation fires OnRestored.
func (m *Monitor) FullscreenChanged(active bool) {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return
	}
	was := m.fullscreen
	m.fullscreen = active
	cb := m.cb
	m.mu.Unlock()

	switch {
	case was && !active:
		if cb.OnViolation != nil {
			cb.OnViolation(ViolationFullscreenExited, true)
		}
	case !was && active:
		if cb.OnRestored != nil {
			cb.OnRestored()
		}
	}
}

// VisibilityChanged records a reported document visibility change.
// Hiding the tab is an advisory violation.
func (m *Monitor) VisibilityChanged(visible bool) {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return
	}
	was := m.visible
	m.visible = visible
	cb := m.cb
	m.mu.Unlock()

	if was && !visible && cb.OnViolation != nil {
		cb.OnViolation(ViolationTabHidden, false)
	}
}

// FocusChanged records a reported window focus change. Losing focus is
// an advisory violation.
func (m *Monitor) FocusChanged(focused bool) {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return
	}
	was := m.focused
	m.focused = focused
	cb := m.cb
	m.mu.Unlock()

	if was && !focused && cb.OnViolation != nil {
		cb.OnViolation(ViolationWindowBlurred, false)
	}
}

// InputBlocked records a client-suppressed input from the blocklist.
func (m *Monitor) InputBlocked(signature string) {
	m.mu.Lock()
	cb, armed := m.cb, m.armed
	m.mu.Unlock()
	if armed && cb.OnInputBlocked != nil {
		cb.OnInputBlocked(signature)
	}
}
