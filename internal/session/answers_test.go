package session

import (
	"testing"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testDefinition() *model.ExamDefinition {
	return &model.ExamDefinition{
		ID:              uuid.New(),
		Title:           "Chemistry Basics",
		DurationSeconds: 60,
		TotalMarks:      10,
		PassPercentage:  50,
		Questions: []model.Question{
			{
				ID:     uuid.New(),
				Prompt: "Which is water?",
				Kind:   model.KindSingleSelect,
				Options: []model.Option{
					{ID: "a", Text: "H2O"},
					{ID: "b", Text: "CO2"},
				},
				Marks: 5,
			},
			{
				ID:     uuid.New(),
				Prompt: "Pick all noble gases",
				Kind:   model.KindMultiSelect,
				Options: []model.Option{
					{ID: "a", Text: "A"},
					{ID: "b", Text: "B"},
					{ID: "c", Text: "C"},
				},
				Marks: 5,
			},
			{
				ID:     uuid.New(),
				Prompt: "Explain osmosis",
				Kind:   model.KindLongText,
				Marks:  0,
			},
		},
	}
}

func TestAnswerBufferSetSingleOverwrites(t *testing.T) {
	def := testDefinition()
	q1 := def.Questions[0].ID.String()
	buf := NewAnswerBuffer(def)

	buf.SetSingle(q1, "H2O")
	buf.SetSingle(q1, "CO2")

	require.Equal(t, "CO2", buf.Get(q1))
	require.True(t, buf.IsAnswered(q1))
	require.Equal(t, 1, buf.AnsweredCount())
}

func TestAnswerBufferToggleMultiKeepsDisplayOrder(t *testing.T) {
	def := testDefinition()
	q2 := def.Questions[1].ID.String()
	buf := NewAnswerBuffer(def)

	buf.ToggleMulti(q2, "B", true)
	buf.ToggleMulti(q2, "A", true)
	buf.ToggleMulti(q2, "B", false)

	require.Equal(t, "A", buf.Get(q2))

	buf.ToggleMulti(q2, "C", true)
	buf.ToggleMulti(q2, "B", true)
	require.Equal(t, "A,B,C", buf.Get(q2), "encoding must follow option display order")

	// Toggling an already-included option on must not duplicate it.
	buf.ToggleMulti(q2, "B", true)
	require.Equal(t, "A,B,C", buf.Get(q2))
}

func TestAnswerBufferToggleMultiEmptiesCleanly(t *testing.T) {
	def := testDefinition()
	q2 := def.Questions[1].ID.String()
	buf := NewAnswerBuffer(def)

	buf.ToggleMulti(q2, "A", true)
	buf.ToggleMulti(q2, "A", false)

	require.Equal(t, "", buf.Get(q2))
	require.False(t, buf.IsAnswered(q2))
	require.Equal(t, 0, buf.AnsweredCount())
}

func TestAnswerBufferTextAnswers(t *testing.T) {
	def := testDefinition()
	q3 := def.Questions[2].ID.String()
	buf := NewAnswerBuffer(def)

	buf.SetText(q3, "water moves across membranes")
	require.True(t, buf.IsAnswered(q3))

	buf.SetText(q3, "   ")
	require.False(t, buf.IsAnswered(q3), "whitespace-only text is unanswered")

	buf.SetText(q3, "")
	require.Equal(t, "", buf.Get(q3))
}

func TestAnswerBufferIgnoresUnknownAndMismatchedKinds(t *testing.T) {
	def := testDefinition()
	q1 := def.Questions[0].ID.String()
	q3 := def.Questions[2].ID.String()
	buf := NewAnswerBuffer(def)

	buf.SetSingle("not-a-question", "H2O")
	buf.SetText(q1, "free text on a select question")
	buf.ToggleMulti(q1, "H2O", true)
	buf.SetSingle(q3, "H2O")

	require.Equal(t, 0, buf.AnsweredCount())
}

func TestAnswerBufferSetSingleRejectsUnknownOption(t *testing.T) {
	def := testDefinition()
	q1 := def.Questions[0].ID.String()
	buf := NewAnswerBuffer(def)

	buf.SetSingle(q1, "not-an-option!")
	require.False(t, buf.IsAnswered(q1))
	require.Equal(t, "", buf.Get(q1))

	// A bad value must not clobber a valid choice either.
	buf.SetSingle(q1, "H2O")
	buf.SetSingle(q1, "h2o")
	require.Equal(t, "H2O", buf.Get(q1))
	require.Equal(t, 1, buf.AnsweredCount())
}

func TestAnswerBufferSnapshotIsIndependent(t *testing.T) {
	def := testDefinition()
	q1 := def.Questions[0].ID.String()
	buf := NewAnswerBuffer(def)
	buf.SetSingle(q1, "H2O")

	snap := buf.Snapshot()
	snap[q1] = "tampered"

	require.Equal(t, "H2O", buf.Get(q1))
}

func TestAnswerBufferFreeze(t *testing.T) {
	def := testDefinition()
	q1 := def.Questions[0].ID.String()
	buf := NewAnswerBuffer(def)
	buf.SetSingle(q1, "H2O")

	buf.Freeze()
	buf.SetSingle(q1, "CO2")
	buf.SetText(def.Questions[2].ID.String(), "late")
	buf.ToggleMulti(def.Questions[1].ID.String(), "A", true)

	require.Equal(t, "H2O", buf.Get(q1))
	require.Equal(t, 1, buf.AnsweredCount())
}
