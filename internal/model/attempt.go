package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states as persisted.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
	AttemptStatusCancelled  AttemptStatus = "CANCELLED"
)

// Attempt represents one timed execution of an exam by one user.
type Attempt struct {
	ID         uuid.UUID     `json:"id"`
	ExamID     uuid.UUID     `json:"exam_id"`
	UserID     int           `json:"user_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Status     AttemptStatus `json:"status"`
	Score      *float64      `json:"score,omitempty"`
}

// AttemptResult is the structured result emitted when an attempt is
// finalized. The field set and JSON shape are a wire contract consumed
// by the result-viewing screens; do not change them.
type AttemptResult struct {
	Score             float64   `json:"score"`
	TotalMarks        int       `json:"total_marks"`
	Percentage        float64   `json:"percentage"`
	Passed            bool      `json:"passed"`
	AnsweredQuestions int       `json:"answered_questions"`
	TotalQuestions    int       `json:"total_questions"`
	ElapsedSeconds    int       `json:"elapsed_seconds"`
	SubmittedAt       time.Time `json:"submitted_at"`
}
