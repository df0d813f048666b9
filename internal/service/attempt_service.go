package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/config"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/model"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/repository"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/session"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrAttemptNotStarted means the user has no attempt for the exam yet.
var ErrAttemptNotStarted = errors.New("attempt not started")

// resultPayload is the message queued for the result worker.
type resultPayload struct {
	UserID         int     `json:"user_id"`
	ExamID         string  `json:"exam_id"`
	Score          float64 `json:"score"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
}

// AttemptService owns the attempt lifecycle: starting an attempt,
// finalizing it with a grade, and serving results. It implements
// session.Submitter so a live session machine can finalize through it.
//
// Finalization is Redis-first: the submitted marker and the graded
// result land in Redis synchronously, the durable attempt update is
// queued for the result worker. A reload between the two can never
// re-enter the exam because the marker is checked before anything else.
type AttemptService struct {
	attemptRepo *repository.AttemptRepository
	examService *ExamService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	examService *ExamService,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo: attemptRepo,
		examService: examService,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// FetchExam returns the candidate-facing definition for an exam the
// user is allowed to sit. A finalized attempt short-circuits with
// session.ErrAlreadySubmitted before any definition is served.
func (s *AttemptService) FetchExam(ctx context.Context, examID uuid.UUID, userID int) (*model.ExamDefinition, error) {
	submitted, err := s.isSubmitted(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	if submitted {
		return nil, session.ErrAlreadySubmitted
	}

	return s.examService.GetDefinition(ctx, examID)
}

// StartAttempt creates the attempt row for an exam-user pair, or
// returns the existing one. Idempotent: rejoining after a reload or a
// concurrent double-click lands on the same attempt.
func (s *AttemptService) StartAttempt(ctx context.Context, examID uuid.UUID, userID int) (*model.Attempt, error) {
	existing, err := s.attemptRepo.GetByExamAndUser(ctx, examID, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}

	if existing != nil {
		if existing.Status != model.AttemptStatusInProgress {
			return nil, session.ErrAlreadySubmitted
		}
		// Make sure Redis has the start time after a device switch or
		// cache eviction.
		startKey := config.CacheKey.AttemptStartKey(examID.String(), userID)
		if err := s.rdb.Set(ctx, startKey, existing.StartedAt.Unix(), 0).Err(); err != nil {
			s.log.Warn().Err(err).
				Str("exam_id", examID.String()).
				Int("user_id", userID).
				Msg("Failed to cache attempt start time")
		}
		return existing, nil
	}

	attempt := &model.Attempt{
		ExamID: examID,
		UserID: userID,
		Status: model.AttemptStatusInProgress,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start won the insert.
			winner, fetchErr := s.attemptRepo.GetByExamAndUser(ctx, examID, userID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, fetch failed: %w", fetchErr)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	startKey := config.CacheKey.AttemptStartKey(examID.String(), userID)
	if err := s.rdb.Set(ctx, startKey, attempt.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).
			Str("exam_id", examID.String()).
			Int("user_id", userID).
			Msg("Failed to cache attempt start time")
	}

	return attempt, nil
}

// SubmitAttempt finalizes an attempt: grades the submitted answers,
// claims the submitted marker, stores the result in Redis and queues
// the durable update. Implements session.Submitter.
func (s *AttemptService) SubmitAttempt(ctx context.Context, snap session.Snapshot) (*model.AttemptResult, error) {
	attempt, err := s.attemptRepo.GetByExamAndUser(ctx, snap.ExamID, snap.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no attempt for exam", session.ErrSubmitRejected)
		}
		return nil, fmt.Errorf("load attempt: %w", errors.Join(session.ErrSubmitTransport, err))
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, session.ErrAlreadySubmitted
	}

	def, err := s.examService.GetDefinition(ctx, snap.ExamID)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", errors.Join(session.ErrSubmitTransport, err))
	}
	answerKey, err := s.examService.GetAnswerKey(ctx, snap.ExamID)
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", errors.Join(session.ErrSubmitTransport, err))
	}

	score, answered := grade(def, answerKey, snap.Answers)

	percentage := 0.0
	if def.TotalMarks > 0 {
		percentage = math.Round(score/float64(def.TotalMarks)*10000) / 100
	}

	result := &model.AttemptResult{
		Score:             score,
		TotalMarks:        def.TotalMarks,
		Percentage:        percentage,
		Passed:            percentage >= def.PassPercentage,
		AnsweredQuestions: answered,
		TotalQuestions:    len(def.Questions),
		ElapsedSeconds:    snap.ElapsedSeconds,
		SubmittedAt:       time.Now().UTC(),
	}

	// Claim the submitted marker. SETNX makes the first submission win:
	// a duplicate from a second device or a stale tab is rejected here.
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", errors.Join(session.ErrSubmitTransport, err))
	}
	markerKey := config.CacheKey.AttemptSubmittedKey(snap.ExamID.String(), snap.UserID)
	claimed, err := s.rdb.SetNX(ctx, markerKey, raw, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("claim submitted marker: %w", errors.Join(session.ErrSubmitTransport, err))
	}
	if !claimed {
		return nil, session.ErrAlreadySubmitted
	}

	payload, _ := json.Marshal(resultPayload{
		UserID:         snap.UserID,
		ExamID:         snap.ExamID.String(),
		Score:          score,
		ElapsedSeconds: snap.ElapsedSeconds,
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, payload).Err(); err != nil {
		// Queue unavailable: finalize durably right here instead. Only
		// when that also fails is the marker rolled back so a retry can
		// claim it again.
		finishedAt := attempt.StartedAt.Add(time.Duration(snap.ElapsedSeconds) * time.Second)
		updated, finalizeErr := s.attemptRepo.Finalize(ctx, snap.ExamID, snap.UserID, score, finishedAt)
		if finalizeErr != nil || !updated {
			s.rdb.Del(ctx, markerKey)
			return nil, fmt.Errorf("queue result: %w", errors.Join(session.ErrSubmitTransport, err))
		}
		s.log.Warn().Err(err).
			Str("exam_id", snap.ExamID.String()).
			Int("user_id", snap.UserID).
			Msg("Result queue unavailable, finalized synchronously")
	}

	s.log.Info().
		Str("exam_id", snap.ExamID.String()).
		Int("user_id", snap.UserID).
		Float64("score", score).
		Int("answered", answered).
		Msg("Attempt finalized")

	return result, nil
}

// violationQueuePayload is the message queued for the violation worker.
type violationQueuePayload struct {
	UserID    int    `json:"user_id"`
	ExamID    string `json:"exam_id"`
	Kind      string `json:"kind"`
	Blocking  bool   `json:"blocking"`
	Timestamp int64  `json:"timestamp"`
}

// answerQueuePayload is the message queued for the autosave worker.
type answerQueuePayload struct {
	UserID int    `json:"user_id"`
	ExamID string `json:"exam_id"`
	QID    string `json:"q_id"`
	Answer string `json:"answer"`
}

// MirrorAnswer writes one applied answer edit to the Redis autosave
// hash and queues it for durable persistence. Called on every edit the
// session machine accepts; losing one is recoverable, so failures are
// logged and swallowed.
func (s *AttemptService) MirrorAnswer(ctx context.Context, examID uuid.UUID, userID int, questionID, encoded string) {
	answersKey := config.CacheKey.AttemptAnswersKey(examID.String(), userID)
	if err := s.rdb.HSet(ctx, answersKey, questionID, encoded).Err(); err != nil {
		s.log.Error().Err(err).Int("user_id", userID).Msg("Autosave Redis error")
		return
	}

	payload, _ := json.Marshal(answerQueuePayload{
		UserID: userID,
		ExamID: examID.String(),
		QID:    questionID,
		Answer: encoded,
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		s.log.Error().Err(err).Int("user_id", userID).Msg("Autosave queue error")
	}
}

// RecordViolation queues a lockdown violation for durable persistence.
func (s *AttemptService) RecordViolation(ctx context.Context, examID uuid.UUID, userID int, kind string, blocking bool) {
	payload, _ := json.Marshal(violationQueuePayload{
		UserID:    userID,
		ExamID:    examID.String(),
		Kind:      kind,
		Blocking:  blocking,
		Timestamp: time.Now().Unix(),
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		s.log.Error().Err(err).Int("user_id", userID).Msg("Violation queue error")
	}
}

// ListAttempts returns the user's attempt history, newest first.
func (s *AttemptService) ListAttempts(ctx context.Context, userID int) ([]model.Attempt, error) {
	return s.attemptRepo.ListByUser(ctx, userID)
}

// GetResult returns the finalized result for an attempt. The Redis
// marker is the fast path; a cache miss rebuilds the result from the
// durable attempt row.
func (s *AttemptService) GetResult(ctx context.Context, examID uuid.UUID, userID int) (*model.AttemptResult, error) {
	markerKey := config.CacheKey.AttemptSubmittedKey(examID.String(), userID)
	cached, err := s.rdb.Get(ctx, markerKey).Result()
	if err == nil {
		var result model.AttemptResult
		if unmarshalErr := json.Unmarshal([]byte(cached), &result); unmarshalErr == nil {
			return &result, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get cached result: %w", err)
	}

	attempt, err := s.attemptRepo.GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotStarted
		}
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	if attempt.Status != model.AttemptStatusSubmitted || attempt.Score == nil || attempt.FinishedAt == nil {
		return nil, ErrAttemptNotStarted
	}

	def, err := s.examService.GetDefinition(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}
	answered, err := s.attemptRepo.CountAnswered(ctx, examID, userID)
	if err != nil {
		return nil, fmt.Errorf("count answered: %w", err)
	}

	percentage := 0.0
	if def.TotalMarks > 0 {
		percentage = math.Round(*attempt.Score/float64(def.TotalMarks)*10000) / 100
	}

	return &model.AttemptResult{
		Score:             *attempt.Score,
		TotalMarks:        def.TotalMarks,
		Percentage:        percentage,
		Passed:            percentage >= def.PassPercentage,
		AnsweredQuestions: answered,
		TotalQuestions:    len(def.Questions),
		ElapsedSeconds:    int(attempt.FinishedAt.Sub(attempt.StartedAt).Seconds()),
		SubmittedAt:       *attempt.FinishedAt,
	}, nil
}

func (s *AttemptService) isSubmitted(ctx context.Context, examID uuid.UUID, userID int) (bool, error) {
	markerKey := config.CacheKey.AttemptSubmittedKey(examID.String(), userID)
	exists, err := s.rdb.Exists(ctx, markerKey).Result()
	if err != nil {
		return false, fmt.Errorf("check submitted marker: %w", err)
	}
	if exists > 0 {
		return true, nil
	}

	attempt, err := s.attemptRepo.GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("load attempt: %w", err)
	}
	return attempt.Status != model.AttemptStatusInProgress, nil
}

// grade scores the submitted answers against the grading key. Select
// kinds are graded by exact match on the encoded answer string; text
// kinds count as answered but carry no auto-scored marks. Unknown
// question IDs in the submission are ignored.
func grade(def *model.ExamDefinition, answerKey map[string]string, answers map[string]string) (float64, int) {
	score := 0.0
	answered := 0

	for _, q := range def.Questions {
		given, ok := answers[q.ID.String()]
		if !ok || strings.TrimSpace(given) == "" {
			continue
		}
		answered++

		if !q.Kind.Select() {
			continue
		}
		if correct, hasKey := answerKey[q.ID.String()]; hasKey && given == correct {
			score += float64(q.Marks)
		}
	}

	return score, answered
}
