package service

import (
	"testing"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func gradingDefinition() *model.ExamDefinition {
	return &model.ExamDefinition{
		ID:              uuid.New(),
		Title:           "Networks Midterm",
		DurationSeconds: 1800,
		TotalMarks:      20,
		PassPercentage:  50,
		Questions: []model.Question{
			{ID: uuid.New(), Kind: model.KindSingleSelect, Marks: 5},
			{ID: uuid.New(), Kind: model.KindMultiSelect, Marks: 10},
			{ID: uuid.New(), Kind: model.KindShortText, Marks: 5},
		},
	}
}

func TestGradeExactMatchOnly(t *testing.T) {
	def := gradingDefinition()
	q1 := def.Questions[0].ID.String()
	q2 := def.Questions[1].ID.String()

	key := map[string]string{q1: "TCP", q2: "A,C"}

	score, answered := grade(def, key, map[string]string{
		q1: "TCP",
		q2: "A,C",
	})
	require.Equal(t, 15.0, score)
	require.Equal(t, 2, answered)

	// A partially correct multi-select earns nothing.
	score, answered = grade(def, key, map[string]string{
		q1: "UDP",
		q2: "A",
	})
	require.Equal(t, 0.0, score)
	require.Equal(t, 2, answered)
}

func TestGradeTextAnswersCountButDoNotScore(t *testing.T) {
	def := gradingDefinition()
	q3 := def.Questions[2].ID.String()

	score, answered := grade(def, map[string]string{}, map[string]string{
		q3: "a handshake with three messages",
	})
	require.Equal(t, 0.0, score)
	require.Equal(t, 1, answered)
}

func TestGradeIgnoresBlankAndUnknownAnswers(t *testing.T) {
	def := gradingDefinition()
	q1 := def.Questions[0].ID.String()

	score, answered := grade(def, map[string]string{q1: "TCP"}, map[string]string{
		q1:               "   ",
		"not-a-qid":      "TCP",
		uuid.NewString(): "TCP",
	})
	require.Equal(t, 0.0, score)
	require.Equal(t, 0, answered)
}

func TestGradeEmptySubmission(t *testing.T) {
	def := gradingDefinition()

	score, answered := grade(def, map[string]string{}, map[string]string{})
	require.Equal(t, 0.0, score)
	require.Equal(t, 0, answered)
}
