package session

import (
	"sync"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/model"
)

// Cursor tracks which question is currently displayed plus the set of
// questions flagged for review. Pure index bookkeeping over the fetched
// question list; no side effects beyond its own state.
type Cursor struct {
	mu        sync.RWMutex
	questions []model.Question
	index     int
	flags     map[string]bool
}

// NewCursor creates a cursor positioned at the first question.
func NewCursor(def *model.ExamDefinition) *Cursor {
	return &Cursor{
		questions: def.Questions,
		flags:     make(map[string]bool),
	}
}

// GoTo moves to the given index, clamped to [0, lastIndex].
func (c *Cursor) GoTo(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 {
		index = 0
	}
	if last := len(c.questions) - 1; index > last {
		index = last
	}
	c.index = index
}

// Next advances to the following question, clamped at the last.
func (c *Cursor) Next() {
	c.mu.Lock()
	index := c.index + 1
	c.mu.Unlock()
	c.GoTo(index)
}

// Previous moves back one question, clamped at the first.
func (c *Cursor) Previous() {
	c.mu.Lock()
	index := c.index - 1
	c.mu.Unlock()
	c.GoTo(index)
}

// ToggleFlag flips the review flag for a question ID.
func (c *Cursor) ToggleFlag(questionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flags[questionID] {
		delete(c.flags, questionID)
		return
	}
	c.flags[questionID] = true
}

// Current returns the question at the cursor position.
func (c *Cursor) Current() model.Question {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.questions[c.index]
}

// Index returns the current question index.
func (c *Cursor) Index() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

// Flagged returns the IDs of all flagged questions, in question order.
func (c *Cursor) Flagged() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.flags))
	for _, q := range c.questions {
		if c.flags[q.ID.String()] {
			out = append(out, q.ID.String())
		}
	}
	return out
}
