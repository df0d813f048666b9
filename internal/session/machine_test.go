package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	calls    int
	snaps    []Snapshot
	failures int   // fail the first N calls
	err      error // error used for failing calls
	release  chan struct{}
	result   *model.AttemptResult
}

func (f *fakeSubmitter) SubmitAttempt(ctx context.Context, snap Snapshot) (*model.AttemptResult, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.snaps = append(f.snaps, snap)
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if call <= f.failures {
		return nil, f.err
	}
	result := f.result
	if result == nil {
		result = &model.AttemptResult{
			TotalQuestions: len(snap.Answers),
			ElapsedSeconds: snap.ElapsedSeconds,
			SubmittedAt:    time.Now().UTC(),
		}
	}
	return result, nil
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSubmitter) snapshot(i int) Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snaps[i]
}

type recordingEmitter struct {
	mu         sync.Mutex
	states     []State
	ticks      []int
	saved      [][2]string
	violations []violationRecord
	restored   int
	results    []*model.AttemptResult
	failures   []error
}

func (e *recordingEmitter) StateChanged(s State) {
	e.mu.Lock()
	e.states = append(e.states, s)
	e.mu.Unlock()
}

func (e *recordingEmitter) Tick(remaining int) {
	e.mu.Lock()
	e.ticks = append(e.ticks, remaining)
	e.mu.Unlock()
}

func (e *recordingEmitter) AnswerSaved(questionID, encoded string) {
	e.mu.Lock()
	e.saved = append(e.saved, [2]string{questionID, encoded})
	e.mu.Unlock()
}

func (e *recordingEmitter) ViolationRaised(kind ViolationKind, blocking bool) {
	e.mu.Lock()
	e.violations = append(e.violations, violationRecord{kind, blocking})
	e.mu.Unlock()
}

func (e *recordingEmitter) Restored() {
	e.mu.Lock()
	e.restored++
	e.mu.Unlock()
}

func (e *recordingEmitter) InputBlocked(string) {}

func (e *recordingEmitter) Submitted(r *model.AttemptResult) {
	e.mu.Lock()
	e.results = append(e.results, r)
	e.mu.Unlock()
}

func (e *recordingEmitter) SubmitFailed(err error, retryable bool) {
	e.mu.Lock()
	e.failures = append(e.failures, err)
	e.mu.Unlock()
}

func (e *recordingEmitter) tickValues() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, len(e.ticks))
	copy(out, e.ticks)
	return out
}

func newTestMachine(t *testing.T, sub *fakeSubmitter) (*Machine, *recordingEmitter, *fakeController) {
	t.Helper()
	emitter := &recordingEmitter{}
	fc := &fakeController{}
	m, err := NewMachine(Config{
		Exam:       testDefinition(),
		UserID:     7,
		Fullscreen: fc,
		Submitter:  sub,
		Emitter:    emitter,
		// Real ticks are injected synthetically in these tests; keep
		// the wall-clock timer quiet.
		TickInterval: time.Hour,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, emitter, fc
}

func waitState(t *testing.T, m *Machine, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == want },
		2*time.Second, 2*time.Millisecond, "expected state %s, got %s", want, m.State())
}

// drain waits until the event queue is empty and the in-flight handler
// has had time to finish.
func drain(t *testing.T, m *Machine) {
	t.Helper()
	require.Eventually(t, func() bool { return len(m.events) == 0 },
		2*time.Second, 2*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
}

func TestMachineRejectsZeroQuestionExam(t *testing.T) {
	def := testDefinition()
	def.Questions = nil
	_, err := NewMachine(Config{
		Exam:       def,
		Fullscreen: &fakeController{},
		Submitter:  &fakeSubmitter{},
		Emitter:    &recordingEmitter{},
		Logger:     zerolog.Nop(),
	})
	require.ErrorIs(t, err, ErrNoQuestions)
}

func TestMachineCancelBeforeStart(t *testing.T) {
	m, _, fc := newTestMachine(t, &fakeSubmitter{})
	require.Equal(t, StateConfirming, m.State())

	m.Cancel()
	waitState(t, m, StateCancelled)

	require.False(t, m.timer.Armed(), "cancel must not leave a timer running")
	requests, _ := fc.counts()
	require.Equal(t, 0, requests)
}

func TestMachineConfirmArmsTimerAndLockdown(t *testing.T) {
	m, _, fc := newTestMachine(t, &fakeSubmitter{})

	m.Confirm()
	waitState(t, m, StateActive)

	require.True(t, m.timer.Armed())
	require.True(t, m.monitor.Armed())
	requests, _ := fc.counts()
	require.Equal(t, 1, requests, "confirm requests fullscreen")
	require.Equal(t, 60, m.Remaining())

	// A second confirm is a no-op.
	m.Confirm()
	drain(t, m)
	requests, _ = fc.counts()
	require.Equal(t, 1, requests)
}

func TestMachineAutoSubmitsOnExpiryWithNoAnswers(t *testing.T) {
	// Scenario: 60-second duration, zero answers provided; the expiry
	// still produces exactly one submission and reaches Submitted.
	sub := &fakeSubmitter{}
	m, emitter, _ := newTestMachine(t, sub)

	m.Confirm()
	waitState(t, m, StateActive)

	for remaining := 59; remaining >= 0; remaining-- {
		m.post(event{kind: evTick, remaining: remaining})
	}
	m.post(event{kind: evExpire})

	waitState(t, m, StateSubmitted)
	require.Equal(t, 1, sub.callCount())
	require.Empty(t, sub.snapshot(0).Answers)
	require.Equal(t, 60, sub.snapshot(0).ElapsedSeconds)
	require.Equal(t, 1, sub.snapshot(0).Attempt)

	ticks := emitter.tickValues()
	require.Len(t, ticks, 60)
	for i := 1; i < len(ticks); i++ {
		require.Less(t, ticks[i], ticks[i-1])
	}
}

func TestMachineSingleSelectOverwrite(t *testing.T) {
	// Scenario: setSingle(q1,"H2O") then setSingle(q1,"CO2") leaves
	// exactly "CO2".
	sub := &fakeSubmitter{}
	m, emitter, _ := newTestMachine(t, sub)
	q1 := m.Definition().Questions[0].ID.String()

	m.Confirm()
	waitState(t, m, StateActive)

	m.SetSingle(q1, "H2O")
	m.SetSingle(q1, "CO2")
	m.Submit()

	waitState(t, m, StateSubmitted)
	require.Equal(t, "CO2", sub.snapshot(0).Answers[q1])

	// Each applied edit is acknowledged with its post-edit encoding.
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	require.Equal(t, [][2]string{{q1, "H2O"}, {q1, "CO2"}}, emitter.saved)
}

func TestMachineBlockedKeepsCountingDown(t *testing.T) {
	// Scenario: fullscreen exit blocks the session while the clock
	// keeps running; restore returns to Active with the time spent
	// blocked gone for good.
	m, emitter, _ := newTestMachine(t, &fakeSubmitter{})

	m.Confirm()
	waitState(t, m, StateActive)

	m.post(event{kind: evTick, remaining: 50})
	m.Monitor().FullscreenChanged(true) // candidate entered lockdown
	m.Monitor().FullscreenChanged(false)
	waitState(t, m, StateBlocked)

	for remaining := 49; remaining >= 45; remaining-- {
		m.post(event{kind: evTick, remaining: remaining})
	}
	drain(t, m)
	require.Equal(t, StateBlocked, m.State())
	require.Equal(t, 45, m.Remaining(), "timer keeps running while blocked")

	m.Monitor().FullscreenChanged(true)
	waitState(t, m, StateActive)
	require.Equal(t, 45, m.Remaining())

	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	require.Equal(t, 1, emitter.restored)
	require.Contains(t, emitter.violations, violationRecord{ViolationFullscreenExited, true})
}

func TestMachineAdvisoryViolationsDoNotBlock(t *testing.T) {
	m, emitter, _ := newTestMachine(t, &fakeSubmitter{})

	m.Confirm()
	waitState(t, m, StateActive)

	m.Monitor().VisibilityChanged(false)
	m.Monitor().FocusChanged(false)
	drain(t, m)

	require.Equal(t, StateActive, m.State())
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	require.Equal(t, []violationRecord{
		{ViolationTabHidden, false},
		{ViolationWindowBlurred, false},
	}, emitter.violations)
}

func TestMachineExactlyOneSubmission(t *testing.T) {
	// Racing triggers: the first to flip the attempt counter wins and
	// every later trigger is a no-op.
	release := make(chan struct{})
	sub := &fakeSubmitter{release: release}
	m, _, fc := newTestMachine(t, sub)

	m.Confirm()
	waitState(t, m, StateActive)

	m.Submit()
	waitState(t, m, StateSubmitting)

	m.Submit()
	m.post(event{kind: evExpire})
	m.Submit()
	drain(t, m)

	close(release)
	waitState(t, m, StateSubmitted)

	require.Equal(t, 1, sub.callCount(), "exactly one network submit for the whole session")
	require.Equal(t, 1, m.Attempts())
	_, exits := fc.counts()
	require.GreaterOrEqual(t, exits, 1, "entering Submitting always leaves fullscreen")
	require.False(t, m.timer.Armed())
	require.False(t, m.monitor.Armed())
}

func TestMachineRejectsMutationsWhileSubmitting(t *testing.T) {
	release := make(chan struct{})
	sub := &fakeSubmitter{release: release}
	m, _, _ := newTestMachine(t, sub)
	q1 := m.Definition().Questions[0].ID.String()

	m.Confirm()
	waitState(t, m, StateActive)
	m.SetSingle(q1, "H2O")
	m.Submit()
	waitState(t, m, StateSubmitting)

	m.SetSingle(q1, "CO2")
	m.GoTo(2)
	m.ToggleFlag(q1)
	drain(t, m)

	require.Equal(t, "H2O", m.answers.Get(q1), "answers are frozen from Submitting onwards")
	require.Equal(t, 0, m.cursor.Index())
	require.Empty(t, m.cursor.Flagged())

	close(release)
	waitState(t, m, StateSubmitted)
}

func TestMachineRetryAfterTransportFailure(t *testing.T) {
	// Scenario: the submit call fails with a network error, the user
	// retries, and exactly one more call goes out with the previously
	// entered answers intact.
	sub := &fakeSubmitter{
		failures: 1,
		err:      fmt.Errorf("post attempt: %w", ErrSubmitTransport),
	}
	m, emitter, _ := newTestMachine(t, sub)
	q1 := m.Definition().Questions[0].ID.String()

	m.Confirm()
	waitState(t, m, StateActive)
	m.SetSingle(q1, "H2O")
	m.Submit()
	waitState(t, m, StateFailed)
	require.Equal(t, 1, sub.callCount())

	m.Retry()
	waitState(t, m, StateSubmitted)
	require.Equal(t, 2, sub.callCount())
	require.Equal(t, 2, m.Attempts())
	require.Equal(t, sub.snapshot(0).Answers, sub.snapshot(1).Answers,
		"retry resubmits the same frozen answers")
	require.Equal(t, 2, sub.snapshot(1).Attempt)

	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	require.Len(t, emitter.failures, 1)
	require.Len(t, emitter.results, 1)
}

func TestMachineAlreadySubmittedIsTerminal(t *testing.T) {
	sub := &fakeSubmitter{
		failures: 1,
		err:      fmt.Errorf("finalize attempt: %w", ErrAlreadySubmitted),
	}
	m, _, _ := newTestMachine(t, sub)

	m.Confirm()
	waitState(t, m, StateActive)
	m.Submit()
	waitState(t, m, StateAlreadySubmitted)

	m.Retry()
	m.Submit()
	drain(t, m)

	require.Equal(t, 1, sub.callCount(), "a duplicate-attempt rejection is never retried")
	require.True(t, m.State().Terminal())
}

func TestMachineTerminalStateIsInert(t *testing.T) {
	// After reaching a terminal state, synthetic ticks and monitor
	// events must have no observable effect.
	sub := &fakeSubmitter{}
	m, emitter, _ := newTestMachine(t, sub)

	m.Confirm()
	waitState(t, m, StateActive)
	m.post(event{kind: evTick, remaining: 30})
	m.Submit()
	waitState(t, m, StateSubmitted)

	ticksBefore := len(emitter.tickValues())
	m.post(event{kind: evTick, remaining: 10})
	m.post(event{kind: evExpire})
	m.Monitor().FullscreenChanged(false)
	m.Monitor().VisibilityChanged(false)
	m.Submit()
	m.Retry()
	drain(t, m)

	require.Equal(t, StateSubmitted, m.State())
	require.Equal(t, 30, m.Remaining(), "remaining is frozen after leaving Active/Blocked")
	require.Equal(t, ticksBefore, len(emitter.tickValues()))
	require.Equal(t, 1, sub.callCount())
}

func TestMachineSnapshotView(t *testing.T) {
	m, _, _ := newTestMachine(t, &fakeSubmitter{})
	q1 := m.Definition().Questions[0].ID.String()

	m.Confirm()
	waitState(t, m, StateActive)
	m.SetSingle(q1, "H2O")
	m.ToggleFlag(q1)
	m.Next()
	m.post(event{kind: evTick, remaining: 42})
	drain(t, m)

	view := m.SnapshotView()
	require.Equal(t, StateActive, view.State)
	require.Equal(t, 42, view.RemainingSeconds)
	require.Equal(t, 1, view.CurrentIndex)
	require.Equal(t, 1, view.AnsweredCount)
	require.Equal(t, 3, view.TotalQuestions)
	require.Equal(t, []string{q1}, view.Flagged)
	require.Equal(t, "H2O", view.Answers[q1])
	require.Equal(t, 0, view.SubmitAttempts)
}
