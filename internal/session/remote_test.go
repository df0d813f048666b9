package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu   sync.Mutex
	sent []interface{}
	err  error
}

func (c *fakeConn) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) payloads() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, len(c.sent))
	copy(out, c.sent)
	return out
}

func TestRemoteDropsEmissionsWhileDetached(t *testing.T) {
	r := NewRemote()

	// No client yet: emissions vanish, fullscreen control reports it.
	r.StateChanged(StateActive)
	r.Tick(30)
	require.ErrorIs(t, r.RequestFullscreen(), ErrNoClient)

	conn := &fakeConn{}
	r.Attach(conn)
	r.Tick(29)
	require.NoError(t, r.RequestFullscreen())

	require.Equal(t, []interface{}{
		TickPayload{Event: EventTick, RemainingSeconds: 29},
		FullscreenPayload{Event: EventFullscreen, Action: "request"},
	}, conn.payloads())
}

func TestRemoteDetachOnlyDropsCurrentConn(t *testing.T) {
	r := NewRemote()
	old := &fakeConn{}
	replacement := &fakeConn{}

	r.Attach(old)
	r.Attach(replacement)
	// The stale connection's deferred cleanup must not detach its
	// replacement.
	r.Detach(old)

	r.StateChanged(StateBlocked)
	require.Empty(t, old.payloads())
	require.Equal(t, []interface{}{
		StatePayload{Event: EventState, State: StateBlocked},
	}, replacement.payloads())

	r.Detach(replacement)
	require.ErrorIs(t, r.ExitFullscreen(), ErrNoClient)
}

func TestRemoteHooksFireEvenWhileDetached(t *testing.T) {
	r := NewRemote()

	var saved [][2]string
	var violations []violationRecord
	r.SetHooks(Hooks{
		AnswerSaved: func(qid, encoded string) {
			saved = append(saved, [2]string{qid, encoded})
		},
		Violation: func(kind ViolationKind, blocking bool) {
			violations = append(violations, violationRecord{kind, blocking})
		},
	})

	// Autosave and violation capture must not depend on a client being
	// connected.
	r.AnswerSaved("q1", "A,B")
	r.ViolationRaised(ViolationTabHidden, false)

	require.Equal(t, [][2]string{{"q1", "A,B"}}, saved)
	require.Equal(t, []violationRecord{{ViolationTabHidden, false}}, violations)
}

func TestRemoteTerminalHookFiresOnlyOnTerminalStates(t *testing.T) {
	r := NewRemote()

	var terminal []State
	r.SetHooks(Hooks{
		Terminal: func(s State) { terminal = append(terminal, s) },
	})

	r.StateChanged(StateActive)
	r.StateChanged(StateBlocked)
	r.StateChanged(StateSubmitting)
	r.StateChanged(StateFailed)
	require.Empty(t, terminal)

	r.StateChanged(StateSubmitted)
	require.Equal(t, []State{StateSubmitted}, terminal)
}
