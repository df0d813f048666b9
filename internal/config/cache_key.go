package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's login session (single device).
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// AttemptStartKey returns the cache key for a user's attempt start time.
func (r *CacheKeyStruct) AttemptStartKey(examID string, userID int) string {
	return fmt.Sprintf("user:%d:exam:%s:attempt_start", userID, examID)
}

// AttemptAnswersKey returns the cache key for a user's autosaved answers.
func (r *CacheKeyStruct) AttemptAnswersKey(examID string, userID int) string {
	return fmt.Sprintf("user:%d:exam:%s:answers", userID, examID)
}

// AttemptSubmittedKey returns the marker key set the moment an attempt is finalized.
// Written before the durable update lands so a reload cannot re-enter the exam.
func (r *CacheKeyStruct) AttemptSubmittedKey(examID string, userID int) string {
	return fmt.Sprintf("user:%d:exam:%s:submitted", userID, examID)
}

// ExamDefinitionKey returns the cache key for an exam's candidate-facing definition.
func (r *CacheKeyStruct) ExamDefinitionKey(examID string) string {
	return fmt.Sprintf("exam:%s:definition", examID)
}

// ExamAnswerKeyKey returns the cache key for an exam's grading key.
func (r *CacheKeyStruct) ExamAnswerKeyKey(examID string) string {
	return fmt.Sprintf("exam:%s:key", examID)
}

var CacheKey = NewCacheKeyStruct()
