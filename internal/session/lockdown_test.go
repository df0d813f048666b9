package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu       sync.Mutex
	requests int
	exits    int
	err      error
}

func (f *fakeController) RequestFullscreen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return f.err
}

func (f *fakeController) ExitFullscreen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exits++
	return f.err
}

func (f *fakeController) counts() (requests, exits int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests, f.exits
}

type violationRecord struct {
	kind     ViolationKind
	blocking bool
}

type monitorRecorder struct {
	mu         sync.Mutex
	violations []violationRecord
	restored   int
	blocked    []string
}

func (r *monitorRecorder) callbacks() MonitorCallbacks {
	return MonitorCallbacks{
		OnViolation: func(kind ViolationKind, blocking bool) {
			r.mu.Lock()
			r.violations = append(r.violations, violationRecord{kind, blocking})
			r.mu.Unlock()
		},
		OnRestored: func() {
			r.mu.Lock()
			r.restored++
			r.mu.Unlock()
		},
		OnInputBlocked: func(sig string) {
			r.mu.Lock()
			r.blocked = append(r.blocked, sig)
			r.mu.Unlock()
		},
	}
}

func TestMonitorClassifiesViolations(t *testing.T) {
	rec := &monitorRecorder{}
	m := NewMonitor(&fakeController{}, zerolog.Nop())
	m.Arm(rec.callbacks())

	m.FullscreenChanged(true) // candidate enters lockdown
	m.FullscreenChanged(false)
	m.VisibilityChanged(false)
	m.FocusChanged(false)
	m.FullscreenChanged(true)

	require.Equal(t, []violationRecord{
		{ViolationFullscreenExited, true},
		{ViolationTabHidden, false},
		{ViolationWindowBlurred, false},
	}, rec.violations)
	// The first fullscreen entry and the re-entry both report restore;
	// the session machine ignores the one that arrives while Active.
	require.Equal(t, 2, rec.restored)
	require.True(t, m.Fullscreen())
}

func TestMonitorIgnoresRepeatedStates(t *testing.T) {
	rec := &monitorRecorder{}
	m := NewMonitor(&fakeController{}, zerolog.Nop())
	m.Arm(rec.callbacks())

	m.VisibilityChanged(false)
	m.VisibilityChanged(false)
	m.FocusChanged(false)
	m.FocusChanged(false)

	require.Len(t, rec.violations, 2, "unchanged state must not re-report")
}

func TestMonitorDisarmDetachesListeners(t *testing.T) {
	rec := &monitorRecorder{}
	m := NewMonitor(&fakeController{}, zerolog.Nop())
	m.Arm(rec.callbacks())
	m.FullscreenChanged(true)

	m.Disarm()
	m.Disarm() // idempotent

	m.FullscreenChanged(false)
	m.VisibilityChanged(false)
	m.InputBlocked("F12")

	require.Len(t, rec.violations, 0)
	require.Empty(t, rec.blocked)
	require.False(t, m.Armed())
}

func TestMonitorFullscreenRefusalIsAdvisory(t *testing.T) {
	rec := &monitorRecorder{}
	fc := &fakeController{err: errors.New("permission denied")}
	m := NewMonitor(fc, zerolog.Nop())
	m.Arm(rec.callbacks())

	m.EnterFullscreen()
	m.ExitFullscreen() // refusal is swallowed entirely

	require.Equal(t, []violationRecord{{ViolationFullscreenExited, false}}, rec.violations,
		"platform refusal surfaces as an advisory violation, not an error")
	require.Equal(t, 1, fc.requests)
	require.Equal(t, 1, fc.exits)
}

func TestMonitorReportsBlockedInput(t *testing.T) {
	rec := &monitorRecorder{}
	m := NewMonitor(&fakeController{}, zerolog.Nop())
	m.Arm(rec.callbacks())

	m.InputBlocked("Ctrl+Shift+I")
	require.Equal(t, []string{"Ctrl+Shift+I"}, rec.blocked)
}

func TestBlocklistCoversChromeAndDevtools(t *testing.T) {
	sigs := make(map[string]bool)
	for _, b := range Blocklist() {
		require.NotEmpty(t, b.Signature)
		require.NotEmpty(t, b.Reason)
		require.False(t, sigs[b.Signature], "blocklist must not contain duplicates")
		sigs[b.Signature] = true
	}
	require.True(t, sigs["contextmenu"])
	require.True(t, sigs["F12"])
	require.True(t, sigs["Ctrl+W"])
}
