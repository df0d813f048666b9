package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRepository handles exam and question data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam row by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, duration_seconds, total_marks, pass_percentage,
		        instructions, status, created_at, updated_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.DurationSeconds, &e.TotalMarks, &e.PassPercentage,
		&e.Instructions, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetDefinition assembles the candidate-facing exam payload: the exam
// row plus its questions in display order. Correct answers are not
// part of the result.
func (r *ExamRepository) GetDefinition(ctx context.Context, id uuid.UUID) (*model.ExamDefinition, error) {
	exam, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, prompt, kind, options, marks
		 FROM questions
		 WHERE exam_id = $1
		 ORDER BY position ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var (
			q       model.Question
			rawOpts []byte
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Kind, &rawOpts, &q.Marks); err != nil {
			return nil, err
		}
		if len(rawOpts) > 0 {
			if err := json.Unmarshal(rawOpts, &q.Options); err != nil {
				return nil, fmt.Errorf("decode options for question %s: %w", q.ID, err)
			}
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &model.ExamDefinition{
		ID:              exam.ID,
		Title:           exam.Title,
		DurationSeconds: exam.DurationSeconds,
		TotalMarks:      exam.TotalMarks,
		PassPercentage:  exam.PassPercentage,
		Instructions:    exam.Instructions,
		Questions:       questions,
	}, nil
}

// GetAnswerKey returns the grading key for an exam: question ID to the
// encoded correct answer for select-kind questions. Text kinds have no
// key and are excluded.
func (r *ExamRepository) GetAnswerKey(ctx context.Context, id uuid.UUID) (map[string]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, correct_answer
		 FROM questions
		 WHERE exam_id = $1 AND correct_answer IS NOT NULL`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query answer key: %w", err)
	}
	defer rows.Close()

	key := make(map[string]string)
	for rows.Next() {
		var (
			qid    uuid.UUID
			answer string
		)
		if err := rows.Scan(&qid, &answer); err != nil {
			return nil, err
		}
		key[qid.String()] = answer
	}
	return key, rows.Err()
}

// ListPublishedIDs returns the IDs of all PUBLISHED exams.
// Used for cache prewarming on application startup.
func (r *ExamRepository) ListPublishedIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM exams WHERE status = $1`, model.ExamStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
