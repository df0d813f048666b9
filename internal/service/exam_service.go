package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/config"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/model"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrExamNotAvailable means the exam does not exist or is not PUBLISHED.
var ErrExamNotAvailable = errors.New("exam is not available")

// ExamService serves exam definitions and grading keys with a Redis
// cache in front of PostgreSQL. Definitions are immutable once an exam
// is published, so cached copies never go stale mid-attempt.
type ExamService struct {
	examRepo *repository.ExamRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(examRepo *repository.ExamRepository, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		examRepo: examRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// GetDefinition returns the candidate-facing exam payload. Cache hit
// path never touches PostgreSQL; a miss loads from the database,
// verifies the exam is PUBLISHED, and self-heals the cache.
func (s *ExamService) GetDefinition(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	cacheKey := config.CacheKey.ExamDefinitionKey(examID.String())

	cached, err := s.rdb.Get(ctx, cacheKey).Result()
	if err == nil {
		var def model.ExamDefinition
		if unmarshalErr := json.Unmarshal([]byte(cached), &def); unmarshalErr == nil {
			return &def, nil
		}
		// Corrupt cache entry. Drop it and fall through to the DB.
		s.rdb.Del(ctx, cacheKey)
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get cached definition: %w", err)
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, ErrExamNotAvailable
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}

	def, err := s.examRepo.GetDefinition(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}

	if raw, marshalErr := json.Marshal(def); marshalErr == nil {
		if cacheErr := s.rdb.Set(ctx, cacheKey, raw, 0).Err(); cacheErr != nil {
			s.log.Warn().Err(cacheErr).Str("exam_id", examID.String()).Msg("Failed to cache definition")
		}
	}

	return def, nil
}

// GetAnswerKey returns the grading key for an exam as a question-ID to
// encoded-answer map. Cached as a Redis hash, DB fallback on miss.
func (s *ExamService) GetAnswerKey(ctx context.Context, examID uuid.UUID) (map[string]string, error) {
	cacheKey := config.CacheKey.ExamAnswerKeyKey(examID.String())

	cached, err := s.rdb.HGetAll(ctx, cacheKey).Result()
	if err != nil {
		return nil, fmt.Errorf("get cached answer key: %w", err)
	}
	if len(cached) > 0 {
		return cached, nil
	}

	key, err := s.examRepo.GetAnswerKey(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}
	if len(key) == 0 {
		// Exams with only text questions legitimately have no key.
		return key, nil
	}

	fields := make(map[string]interface{}, len(key))
	for qid, answer := range key {
		fields[qid] = answer
	}
	if cacheErr := s.rdb.HSet(ctx, cacheKey, fields).Err(); cacheErr != nil {
		s.log.Warn().Err(cacheErr).Str("exam_id", examID.String()).Msg("Failed to cache answer key")
	}

	return key, nil
}

// Prewarm loads every PUBLISHED exam's definition and answer key into
// the cache. Called once at startup so the first candidate of the day
// does not pay the cold path.
func (s *ExamService) Prewarm(ctx context.Context) error {
	ids, err := s.examRepo.ListPublishedIDs(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	for _, id := range ids {
		if _, err := s.GetDefinition(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Prewarm definition failed")
			continue
		}
		if _, err := s.GetAnswerKey(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Prewarm answer key failed")
		}
	}

	s.log.Info().Int("count", len(ids)).Msg("Exam cache prewarmed")
	return nil
}
