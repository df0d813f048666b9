package session

import (
	"context"
	"errors"
	"time"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Submission error sentinels. Collaborator implementations wrap their
// failures in one of these so the machine's transition table stays
// total: errors come back as classified data, never as panics.
var (
	// ErrAlreadySubmitted means the server already holds a finalized
	// attempt for this exam and user. Not retryable.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrSubmitRejected means the server rejected the submission
	// payload. Retryable by the user.
	ErrSubmitRejected = errors.New("submission rejected")
	// ErrSubmitTransport means the exchange itself failed. Retryable.
	ErrSubmitTransport = errors.New("submission transport failure")
)

// Snapshot is the immutable copy of session answers plus elapsed time
// taken at the moment a submission begins. One snapshot is consumed by
// exactly one network exchange.
type Snapshot struct {
	ExamID         uuid.UUID
	UserID         int
	Attempt        int
	Answers        map[string]string
	ElapsedSeconds int
}

// Submitter is the collaborator that finalizes an attempt server-side.
type Submitter interface {
	SubmitAttempt(ctx context.Context, snap Snapshot) (*model.AttemptResult, error)
}

// Pipeline performs the one-shot exchange that finalizes a session.
// It never retries internally; retry is a user-visible action that the
// machine turns into a fresh snapshot with a fresh attempt counter.
type Pipeline struct {
	submitter Submitter
	timeout   time.Duration
	log       zerolog.Logger
}

// NewPipeline wraps a Submitter collaborator.
func NewPipeline(submitter Submitter, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		submitter: submitter,
		timeout:   30 * time.Second,
		log:       log.With().Str("component", "submission_pipeline").Logger(),
	}
}

// Submit performs exactly one submission exchange for the snapshot.
// On failure the returned error wraps one of the sentinels above.
func (p *Pipeline) Submit(ctx context.Context, snap Snapshot) (*model.AttemptResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.submitter.SubmitAttempt(ctx, snap)
	if err != nil {
		p.log.Warn().Err(err).
			Str("exam_id", snap.ExamID.String()).
			Int("user_id", snap.UserID).
			Int("attempt", snap.Attempt).
			Msg("Submission failed")
		return nil, classify(err)
	}

	p.log.Info().
		Str("exam_id", snap.ExamID.String()).
		Int("user_id", snap.UserID).
		Int("attempt", snap.Attempt).
		Float64("score", result.Score).
		Msg("Attempt submitted")
	return result, nil
}

// classify maps a collaborator error onto the sentinel taxonomy.
// Unclassified errors (timeouts, connection loss) count as transport.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrAlreadySubmitted),
		errors.Is(err, ErrSubmitRejected),
		errors.Is(err, ErrSubmitTransport):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errors.Join(ErrSubmitTransport, err)
	default:
		return errors.Join(ErrSubmitTransport, err)
	}
}
