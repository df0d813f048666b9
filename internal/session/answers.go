package session

import (
	"strings"
	"sync"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/model"
)

// AnswerBuffer holds the in-memory map from question ID to an encoded
// answer string for one attempt. Encoding rules:
//
//   - single-select: exactly the chosen option's display text
//   - multi-select: comma-joined display texts of chosen options, in
//     option display order, no duplicates, no empty entries
//   - short/long text: the raw user text
//
// An answer counts as present iff its trimmed value is non-empty.
// Operations on unknown question IDs are no-ops so the buffer can
// never hold an entry that violates the encoding invariant.
type AnswerBuffer struct {
	mu        sync.RWMutex
	answers   map[string]string
	questions map[string]*model.Question
	frozen    bool
}

// NewAnswerBuffer creates an empty buffer for the given exam definition.
func NewAnswerBuffer(def *model.ExamDefinition) *AnswerBuffer {
	questions := make(map[string]*model.Question, len(def.Questions))
	for i := range def.Questions {
		q := &def.Questions[i]
		questions[q.ID.String()] = q
	}
	return &AnswerBuffer{
		answers:   make(map[string]string),
		questions: questions,
	}
}

// SetSingle overwrites the answer for a single-select question with the
// chosen option's display text. Values that match no option of the
// question are ignored, so clients cannot plant arbitrary strings.
func (b *AnswerBuffer) SetSingle(questionID, optionText string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return
	}
	q, ok := b.questions[questionID]
	if !ok || q.Kind != model.KindSingleSelect || !hasOption(q, optionText) {
		return
	}
	b.answers[questionID] = optionText
}

func hasOption(q *model.Question, text string) bool {
	for _, opt := range q.Options {
		if opt.Text == text {
			return true
		}
	}
	return false
}

// ToggleMulti adds or removes optionText from a multi-select answer and
// re-serializes it deterministically: chosen options always appear in
// the question's option display order, once each.
func (b *AnswerBuffer) ToggleMulti(questionID, optionText string, included bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return
	}
	q, ok := b.questions[questionID]
	if !ok || q.Kind != model.KindMultiSelect {
		return
	}

	chosen := make(map[string]bool)
	for _, part := range strings.Split(b.answers[questionID], ",") {
		if part != "" {
			chosen[part] = true
		}
	}
	if included {
		chosen[optionText] = true
	} else {
		delete(chosen, optionText)
	}

	// Re-serialize in option display order.
	parts := make([]string, 0, len(chosen))
	for _, opt := range q.Options {
		if chosen[opt.Text] {
			parts = append(parts, opt.Text)
		}
	}
	if len(parts) == 0 {
		delete(b.answers, questionID)
		return
	}
	b.answers[questionID] = strings.Join(parts, ",")
}

// SetText overwrites the answer for a text question with the raw user
// text. Empty text means "unanswered".
func (b *AnswerBuffer) SetText(questionID, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return
	}
	q, ok := b.questions[questionID]
	if !ok || (q.Kind != model.KindShortText && q.Kind != model.KindLongText) {
		return
	}
	if text == "" {
		delete(b.answers, questionID)
		return
	}
	b.answers[questionID] = text
}

// Knows reports whether the question ID belongs to this exam.
func (b *AnswerBuffer) Knows(questionID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.questions[questionID]
	return ok
}

// Get returns the encoded answer for a question ("" if unanswered).
func (b *AnswerBuffer) Get(questionID string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.answers[questionID]
}

// IsAnswered reports whether the question has a present answer.
func (b *AnswerBuffer) IsAnswered(questionID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return strings.TrimSpace(b.answers[questionID]) != ""
}

// AnsweredCount returns the number of questions with present answers.
func (b *AnswerBuffer) AnsweredCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	count := 0
	for _, v := range b.answers {
		if strings.TrimSpace(v) != "" {
			count++
		}
	}
	return count
}

// Snapshot returns an independent copy of the answer map.
func (b *AnswerBuffer) Snapshot() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.answers))
	for k, v := range b.answers {
		out[k] = v
	}
	return out
}

// Freeze makes the buffer immutable. Called when the owning session
// reaches a submitting or terminal state; there is no thaw.
func (b *AnswerBuffer) Freeze() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
}
