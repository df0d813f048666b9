package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State enumerates the session lifecycle.
type State string

const (
	StateConfirming       State = "CONFIRMING"
	StateActive           State = "ACTIVE"
	StateBlocked          State = "BLOCKED"
	StateSubmitting       State = "SUBMITTING"
	StateSubmitted        State = "SUBMITTED"
	StateFailed           State = "FAILED"
	StateCancelled        State = "CANCELLED"
	StateAlreadySubmitted State = "ALREADY_SUBMITTED"
)

// Terminal reports whether the session can never leave this state.
// Failed is not terminal: the user may retry into Submitting.
func (s State) Terminal() bool {
	switch s {
	case StateSubmitted, StateCancelled, StateAlreadySubmitted:
		return true
	}
	return false
}

// ErrNoQuestions is the configuration error for an exam with an empty
// question list. Raised before Confirming, so no timer is ever armed.
var ErrNoQuestions = errors.New("exam has no questions")

// Emitter receives the machine's user-visible side effects. The
// WebSocket layer implements it for live clients; tests use fakes.
type Emitter interface {
	StateChanged(state State)
	Tick(remainingSeconds int)
	AnswerSaved(questionID, encoded string)
	ViolationRaised(kind ViolationKind, blocking bool)
	Restored()
	InputBlocked(signature string)
	Submitted(result *model.AttemptResult)
	SubmitFailed(err error, retryable bool)
}

// Config carries everything needed to construct a Machine.
type Config struct {
	Exam       *model.ExamDefinition
	UserID     int
	Fullscreen FullscreenController
	Submitter  Submitter
	Emitter    Emitter
	// TickInterval defaults to one second; tests shrink it.
	TickInterval time.Duration
	Logger       zerolog.Logger
}

// Machine is the session orchestrator. It owns the countdown timer,
// the lockdown monitor, the answer buffer and the navigation cursor,
// and it is the only component allowed to trigger a submission.
//
// All inputs are posted onto a single event queue consumed by one
// goroutine, so timer callbacks, monitor callbacks and user actions
// are totally ordered and handled without re-entrancy.
type Machine struct {
	examID  uuid.UUID
	userID  int
	def     *model.ExamDefinition
	answers *AnswerBuffer
	cursor  *Cursor
	timer   *CountdownTimer
	monitor *Monitor

	pipeline *Pipeline
	emitter  Emitter
	log      zerolog.Logger

	events    chan event
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.RWMutex
	state     State
	remaining int
	attempts  int // submission attempt counter, never decremented
	result    *model.AttemptResult
	lastErr   error
}

// NewMachine validates the exam definition and starts the event loop
// in the Confirming state (the definition has already been fetched).
// A zero-question exam is rejected up front as a configuration error.
func NewMachine(cfg Config) (*Machine, error) {
	if cfg.Exam == nil || len(cfg.Exam.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = time.Second
	}

	log := cfg.Logger.With().
		Str("component", "session_machine").
		Str("exam_id", cfg.Exam.ID.String()).
		Int("user_id", cfg.UserID).
		Logger()

	m := &Machine{
		examID:    cfg.Exam.ID,
		userID:    cfg.UserID,
		def:       cfg.Exam,
		answers:   NewAnswerBuffer(cfg.Exam),
		cursor:    NewCursor(cfg.Exam),
		timer:     NewCountdownTimer(interval),
		monitor:   NewMonitor(cfg.Fullscreen, log),
		pipeline:  NewPipeline(cfg.Submitter, log),
		emitter:   cfg.Emitter,
		log:       log,
		events:    make(chan event, 128),
		closed:    make(chan struct{}),
		state:     StateConfirming,
		remaining: cfg.Exam.DurationSeconds,
	}

	go m.run()
	return m, nil
}

// ─── Public API (posts onto the event queue) ────────────────────────

// Confirm moves Confirming → Active: arms the countdown and the
// lockdown monitor and requests fullscreen.
func (m *Machine) Confirm() { m.post(event{kind: evConfirm}) }

// Cancel abandons the session from the start prompt. Terminal, no
// submission.
func (m *Machine) Cancel() { m.post(event{kind: evCancel}) }

// SetSingle records a single-select answer.
func (m *Machine) SetSingle(questionID, optionText string) {
	m.post(event{kind: evSetSingle, questionID: questionID, option: optionText})
}

// ToggleMulti adds or removes an option from a multi-select answer.
func (m *Machine) ToggleMulti(questionID, optionText string, included bool) {
	m.post(event{kind: evToggleMulti, questionID: questionID, option: optionText, included: included})
}

// SetText records a text answer.
func (m *Machine) SetText(questionID, text string) {
	m.post(event{kind: evSetText, questionID: questionID, text: text})
}

// GoTo moves the navigation cursor (clamped).
func (m *Machine) GoTo(index int) { m.post(event{kind: evGoTo, index: index}) }

// Next advances the navigation cursor.
func (m *Machine) Next() { m.post(event{kind: evNext}) }

// Previous moves the navigation cursor back.
func (m *Machine) Previous() { m.post(event{kind: evPrevious}) }

// ToggleFlag flips the review flag on a question.
func (m *Machine) ToggleFlag(questionID string) {
	m.post(event{kind: evToggleFlag, questionID: questionID})
}

// Submit triggers a user-initiated submission.
func (m *Machine) Submit() { m.post(event{kind: evSubmit}) }

// Retry re-enters Submitting after a failed submission.
func (m *Machine) Retry() { m.post(event{kind: evRetry}) }

// Monitor exposes the lockdown monitor so the transport layer can feed
// it reported browser events. The monitor is the sole writer of
// fullscreen/visibility/focus state.
func (m *Machine) Monitor() *Monitor { return m.monitor }

// Definition returns the immutable exam definition.
func (m *Machine) Definition() *model.ExamDefinition { return m.def }

// Close tears the session down: timer cancelled, listeners detached,
// event loop stopped. Idempotent; events posted after Close are
// dropped.
func (m *Machine) Close() {
	m.closeOnce.Do(func() {
		m.teardown()
		close(m.closed)
	})
}

// ─── Queries ────────────────────────────────────────────────────────

// State returns the current session state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Remaining returns the last known remaining seconds.
func (m *Machine) Remaining() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.remaining
}

// Attempts returns the submission attempt counter.
func (m *Machine) Attempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempts
}

// Result returns the submission result once Submitted, else nil.
func (m *Machine) Result() *model.AttemptResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.result
}

// View is the reload-safe snapshot served by the state endpoint.
type View struct {
	State            State             `json:"state"`
	RemainingSeconds int               `json:"remaining_seconds"`
	CurrentIndex     int               `json:"current_index"`
	AnsweredCount    int               `json:"answered_count"`
	TotalQuestions   int               `json:"total_questions"`
	Flagged          []string          `json:"flagged_question_ids"`
	Answers          map[string]string `json:"answers"`
	Fullscreen       bool              `json:"fullscreen"`
	SubmitAttempts   int               `json:"submit_attempts"`
}

// Snapshot returns the current view of the session.
func (m *Machine) SnapshotView() View {
	m.mu.RLock()
	state, remaining, attempts := m.state, m.remaining, m.attempts
	m.mu.RUnlock()
	return View{
		State:            state,
		RemainingSeconds: remaining,
		CurrentIndex:     m.cursor.Index(),
		AnsweredCount:    m.answers.AnsweredCount(),
		TotalQuestions:   len(m.def.Questions),
		Flagged:          m.cursor.Flagged(),
		Answers:          m.answers.Snapshot(),
		Fullscreen:       m.monitor.Fullscreen(),
		SubmitAttempts:   attempts,
	}
}

// ─── Event loop ─────────────────────────────────────────────────────

func (m *Machine) post(ev event) {
	select {
	case <-m.closed:
	case m.events <- ev:
	}
}

func (m *Machine) run() {
	for {
		select {
		case <-m.closed:
			return
		case ev := <-m.events:
			m.handle(ev)
		}
	}
}

func (m *Machine) handle(ev event) {
	switch ev.kind {
	case evConfirm:
		m.handleConfirm()
	case evCancel:
		m.handleCancel()
	case evSetSingle, evToggleMulti, evSetText, evGoTo, evNext, evPrevious, evToggleFlag:
		m.handleInteraction(ev)
	case evViolation:
		m.handleViolation(ev)
	case evRestored:
		m.handleRestored()
	case evInputBlocked:
		if m.State() == StateActive || m.State() == StateBlocked {
			m.emitter.InputBlocked(ev.signature)
		}
	case evTick:
		m.handleTick(ev)
	case evExpire:
		m.beginSubmission("timer-expired")
	case evSubmit:
		m.beginSubmission("user-submit")
	case evRetry:
		m.handleRetry()
	case evSubmitDone:
		m.handleSubmitDone(ev)
	}
}

func (m *Machine) handleConfirm() {
	if m.State() != StateConfirming {
		return
	}

	duration := time.Duration(m.def.DurationSeconds) * time.Second
	m.timer.Arm(duration,
		func(remaining int) { m.post(event{kind: evTick, remaining: remaining}) },
		func() { m.post(event{kind: evExpire}) },
	)
	m.monitor.Arm(MonitorCallbacks{
		OnViolation: func(kind ViolationKind, blocking bool) {
			m.post(event{kind: evViolation, violation: kind, blocking: blocking})
		},
		OnRestored:     func() { m.post(event{kind: evRestored}) },
		OnInputBlocked: func(sig string) { m.post(event{kind: evInputBlocked, signature: sig}) },
	})
	m.monitor.EnterFullscreen()

	m.setState(StateActive)
	m.log.Info().Int("duration_seconds", m.def.DurationSeconds).Msg("Session started")
}

func (m *Machine) handleCancel() {
	if m.State() != StateConfirming {
		return
	}
	m.teardown()
	m.setState(StateCancelled)
	m.log.Info().Msg("Session cancelled before start")
}

// handleInteraction delegates answer edits and navigation to the
// buffer and cursor. Legal only while Active; everything else is a
// no-op so the freeze invariant holds from Submitting onwards.
func (m *Machine) handleInteraction(ev event) {
	if m.State() != StateActive {
		return
	}
	switch ev.kind {
	case evSetSingle:
		m.answers.SetSingle(ev.questionID, ev.option)
		m.emitSaved(ev.questionID)
	case evToggleMulti:
		m.answers.ToggleMulti(ev.questionID, ev.option, ev.included)
		m.emitSaved(ev.questionID)
	case evSetText:
		m.answers.SetText(ev.questionID, ev.text)
		m.emitSaved(ev.questionID)
	case evGoTo:
		m.cursor.GoTo(ev.index)
	case evNext:
		m.cursor.Next()
	case evPrevious:
		m.cursor.Previous()
	case evToggleFlag:
		m.cursor.ToggleFlag(ev.questionID)
	}
}

// emitSaved reports the post-edit encoded answer so the transport can
// acknowledge and autosave it. Edits on unknown question IDs were
// no-ops and are not reported.
func (m *Machine) emitSaved(questionID string) {
	if !m.answers.Knows(questionID) {
		return
	}
	m.emitter.AnswerSaved(questionID, m.answers.Get(questionID))
}

func (m *Machine) handleViolation(ev event) {
	state := m.State()
	if state != StateActive && state != StateBlocked {
		return
	}
	if ev.blocking && state == StateActive {
		m.setState(StateBlocked)
	}
	m.emitter.ViolationRaised(ev.violation, ev.blocking)
	m.log.Warn().
		Str("kind", string(ev.violation)).
		Bool("blocking", ev.blocking).
		Msg("Lockdown violation")
}

func (m *Machine) handleRestored() {
	if m.State() != StateBlocked {
		return
	}
	m.setState(StateActive)
	m.emitter.Restored()
	m.log.Info().Msg("Lockdown restored")
}

// handleTick updates remaining time. The countdown keeps running while
// Blocked: a violation can never be used to gain extra time. Remaining
// is frozen in every other state and never increases.
func (m *Machine) handleTick(ev event) {
	m.mu.Lock()
	if m.state != StateActive && m.state != StateBlocked {
		m.mu.Unlock()
		return
	}
	if ev.remaining >= m.remaining {
		m.mu.Unlock()
		return
	}
	m.remaining = ev.remaining
	m.mu.Unlock()
	m.emitter.Tick(ev.remaining)
}

// beginSubmission drives Active/Blocked → Submitting. The first
// trigger to arrive flips the attempt counter and wins; the pipeline
// is invoked at most once per counter value, so a racing second
// trigger is a no-op.
func (m *Machine) beginSubmission(trigger string) {
	m.mu.Lock()
	if m.state != StateActive && m.state != StateBlocked {
		m.mu.Unlock()
		return
	}
	m.attempts++
	attempt := m.attempts
	elapsed := m.def.DurationSeconds - m.remaining
	m.mu.Unlock()

	m.answers.Freeze()
	m.timer.Disarm()
	// Leave fullscreen unconditionally so the result screen is never
	// trapped in lockdown, then stop observing.
	m.monitor.ExitFullscreen()
	m.monitor.Disarm()

	m.setState(StateSubmitting)
	m.log.Info().Str("trigger", trigger).Int("attempt", attempt).Msg("Submitting attempt")

	m.dispatchSubmit(attempt, elapsed)
}

func (m *Machine) handleRetry() {
	m.mu.Lock()
	if m.state != StateFailed {
		m.mu.Unlock()
		return
	}
	m.attempts++
	attempt := m.attempts
	elapsed := m.def.DurationSeconds - m.remaining
	m.mu.Unlock()

	m.setState(StateSubmitting)
	m.log.Info().Int("attempt", attempt).Msg("Retrying submission")

	m.dispatchSubmit(attempt, elapsed)
}

// dispatchSubmit runs the pipeline off the event loop; completion is
// posted back as an event so the loop never blocks on the network.
func (m *Machine) dispatchSubmit(attempt, elapsed int) {
	snap := Snapshot{
		ExamID:         m.examID,
		UserID:         m.userID,
		Attempt:        attempt,
		Answers:        m.answers.Snapshot(),
		ElapsedSeconds: elapsed,
	}
	go func() {
		result, err := m.pipeline.Submit(context.Background(), snap)
		m.post(event{kind: evSubmitDone, attempt: attempt, result: result, err: err})
	}()
}

func (m *Machine) handleSubmitDone(ev event) {
	m.mu.Lock()
	current := m.attempts
	state := m.state
	m.mu.Unlock()

	// A stale completion (superseded attempt counter) is a no-op.
	if ev.attempt != current || state != StateSubmitting {
		return
	}

	if ev.err == nil {
		m.mu.Lock()
		m.result = ev.result
		m.mu.Unlock()
		m.teardown()
		m.setState(StateSubmitted)
		m.emitter.Submitted(ev.result)
		return
	}

	if errors.Is(ev.err, ErrAlreadySubmitted) {
		// The server already holds a finalized attempt; retrying can
		// never succeed, so this lands terminal rather than Failed.
		m.teardown()
		m.setState(StateAlreadySubmitted)
		m.emitter.SubmitFailed(ev.err, false)
		return
	}

	m.mu.Lock()
	m.lastErr = ev.err
	m.mu.Unlock()
	m.setState(StateFailed)
	m.emitter.SubmitFailed(ev.err, true)
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.emitter.StateChanged(s)
}

// teardown disarms the timer and monitor. Idempotent; invoked on every
// path that leaves Active/Blocked permanently so no listener or timer
// outlives the session.
func (m *Machine) teardown() {
	m.timer.Disarm()
	m.monitor.Disarm()
}
