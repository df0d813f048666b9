package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// QuestionKind enumerates the supported question types.
type QuestionKind string

const (
	KindSingleSelect QuestionKind = "SINGLE_SELECT"
	KindMultiSelect  QuestionKind = "MULTI_SELECT"
	KindShortText    QuestionKind = "SHORT_TEXT"
	KindLongText     QuestionKind = "LONG_TEXT"
)

// Select reports whether the kind carries an option list.
func (k QuestionKind) Select() bool {
	return k == KindSingleSelect || k == KindMultiSelect
}

// Option is a selectable choice on a select-kind question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a single exam question as shown to the candidate.
// Correct answers are never part of this structure; the grading key
// is stored separately and stays server-side.
type Question struct {
	ID      uuid.UUID    `json:"id"`
	Prompt  string       `json:"prompt"`
	Kind    QuestionKind `json:"kind"`
	Options []Option     `json:"options,omitempty"`
	Marks   int          `json:"marks"`
}

// ExamDefinition is the immutable candidate-facing exam payload.
// Fetched once at attempt creation and never mutated afterwards.
type ExamDefinition struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationSeconds int        `json:"duration_seconds"`
	TotalMarks      int        `json:"total_marks"`
	PassPercentage  float64    `json:"pass_percentage"`
	Instructions    string     `json:"instructions"`
	Questions       []Question `json:"questions"`
}

// Exam is the full exam row including authoring metadata.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationSeconds int        `json:"duration_seconds"`
	TotalMarks      int        `json:"total_marks"`
	PassPercentage  float64    `json:"pass_percentage"`
	Instructions    string     `json:"instructions"`
	Status          ExamStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
