package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/middleware"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/response"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/service"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AttemptHandler handles the attempt lifecycle endpoints. Live session
// machines are owned by the registry; this handler creates them on join
// and serves their views on reload.
type AttemptHandler struct {
	attemptService *service.AttemptService
	registry       *session.Registry
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, registry *session.Registry, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		registry:       registry,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// GetPaper godoc
// GET /api/v1/exams/:exam_id/paper
// Returns the candidate-facing exam definition. A finalized attempt is
// rejected before any question content is served.
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	def, err := h.attemptService.FetchExam(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrAlreadySubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		case errors.Is(err, service.ErrExamNotAvailable):
			response.Fail(c, http.StatusNotFound, response.ErrExamNotAvailable)
		default:
			h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Fetch exam failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": def})
}

// Join godoc
// POST /api/v1/exams/:exam_id/attempt
// Starts (or resumes) the attempt and brings up the session machine.
// Idempotent: rejoining lands on the same attempt and the same machine.
func (h *AttemptHandler) Join(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}
	userID := claims.UserID
	ctx := c.Request.Context()

	def, err := h.attemptService.FetchExam(ctx, examID, userID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrAlreadySubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		case errors.Is(err, service.ErrExamNotAvailable):
			response.Fail(c, http.StatusNotFound, response.ErrExamNotAvailable)
		default:
			h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Fetch exam failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	attempt, err := h.attemptService.StartAttempt(ctx, examID, userID)
	if err != nil {
		if errors.Is(err, session.ErrAlreadySubmitted) {
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
			return
		}
		h.log.Error().Err(err).Str("exam_id", examID.String()).Int("user_id", userID).Msg("Start attempt failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	// A session cancelled at the start prompt can be rejoined; drop the
	// dead machine so a fresh one is built.
	if existing := h.registry.Get(examID, userID); existing != nil && existing.Machine.State() == session.StateCancelled {
		h.registry.Remove(examID, userID)
	}

	entry, err := h.registry.GetOrCreate(examID, userID, func() (*session.Entry, error) {
		remote := session.NewRemote()
		remote.SetHooks(session.Hooks{
			AnswerSaved: func(questionID, encoded string) {
				h.attemptService.MirrorAnswer(context.Background(), examID, userID, questionID, encoded)
			},
			Violation: func(kind session.ViolationKind, blocking bool) {
				h.attemptService.RecordViolation(context.Background(), examID, userID, string(kind), blocking)
			},
			// Terminal sessions cannot change anymore; evict so the
			// machine goroutine stops and the registry stays bounded.
			// Results and re-entry checks are served from Redis.
			Terminal: func(session.State) {
				h.registry.Remove(examID, userID)
			},
		})
		machine, buildErr := session.NewMachine(session.Config{
			Exam:       def,
			UserID:     userID,
			Fullscreen: remote,
			Submitter:  h.attemptService,
			Emitter:    remote,
			Logger:     h.log,
		})
		if buildErr != nil {
			return nil, buildErr
		}
		return &session.Entry{Machine: machine, Remote: remote}, nil
	})
	if err != nil {
		if errors.Is(err, session.ErrNoQuestions) {
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
			return
		}
		h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Build session failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt":        attempt,
		"session":        entry.Machine.SnapshotView(),
		"blocked_inputs": session.Blocklist(),
	})
}

// ListAttempts godoc
// GET /api/v1/attempts
// Returns the calling user's attempt history, newest first.
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attempts, err := h.attemptService.ListAttempts(c.Request.Context(), claims.UserID)
	if err != nil {
		h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("List attempts failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// Confirm godoc
// POST /api/v1/exams/:exam_id/attempt/confirm
// Acknowledges the start prompt: the countdown and lockdown begin.
func (h *AttemptHandler) Confirm(c *gin.Context) {
	entry, ok := h.liveEntry(c)
	if !ok {
		return
	}

	entry.Machine.Confirm()
	response.Success(c, http.StatusOK, gin.H{"session": entry.Machine.SnapshotView()})
}

// CancelAttempt godoc
// POST /api/v1/exams/:exam_id/attempt/cancel
// Abandons the session from the start prompt. No submission happens.
func (h *AttemptHandler) CancelAttempt(c *gin.Context) {
	entry, ok := h.liveEntry(c)
	if !ok {
		return
	}

	entry.Machine.Cancel()
	response.Success(c, http.StatusOK, gin.H{})
}

// GetState godoc
// GET /api/v1/exams/:exam_id/attempt/state
// Returns the reload-safe session view: state, remaining time, answers,
// flags and cursor. Served from the live machine.
func (h *AttemptHandler) GetState(c *gin.Context) {
	entry, ok := h.liveEntry(c)
	if !ok {
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": entry.Machine.SnapshotView()})
}

// GetResult godoc
// GET /api/v1/exams/:exam_id/attempt/result
// Returns the finalized result for the attempt.
func (h *AttemptHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	result, err := h.attemptService.GetResult(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrAttemptNotStarted) {
			response.Fail(c, http.StatusNotFound, response.ErrResultNotReady)
			return
		}
		h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Get result failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

func (h *AttemptHandler) liveEntry(c *gin.Context) (*session.Entry, bool) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return nil, false
	}

	entry := h.registry.Get(examID, claims.UserID)
	if entry == nil {
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotStarted)
		return nil, false
	}
	return entry, true
}

func parseExamID(c *gin.Context) (uuid.UUID, bool) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return examID, true
}
