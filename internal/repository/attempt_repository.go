package repository

import (
	"context"
	"time"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptRepository handles attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// GetByExamAndUser retrieves the attempt for a specific exam-user
// combination. At most one exists per pair.
func (r *AttemptRepository) GetByExamAndUser(ctx context.Context, examID uuid.UUID, userID int) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, user_id, started_at, finished_at, status, score
		 FROM attempts
		 WHERE exam_id = $1 AND user_id = $2`, examID, userID,
	).Scan(&a.ID, &a.ExamID, &a.UserID, &a.StartedAt, &a.FinishedAt, &a.Status, &a.Score)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new attempt (user starts the exam). Returns
// pgx.ErrNoRows when a concurrent create won the conflict.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (exam_id, user_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exam_id, user_id) DO NOTHING
		 RETURNING id, started_at`,
		a.ExamID, a.UserID, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.StartedAt)
}

// Finalize marks an attempt as submitted with its score. The update is
// conditional on IN_PROGRESS status so a second finalize is detected:
// it returns false when no row changed.
func (r *AttemptRepository) Finalize(ctx context.Context, examID uuid.UUID, userID int, score float64, finishedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, score = $2, finished_at = $3
		 WHERE exam_id = $4 AND user_id = $5 AND status = $6`,
		model.AttemptStatusSubmitted, score, finishedAt,
		examID, userID, model.AttemptStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByUser retrieves all attempts for a user, newest first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, user_id, started_at, finished_at, status, score
		 FROM attempts
		 WHERE user_id = $1
		 ORDER BY started_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.ExamID, &a.UserID, &a.StartedAt, &a.FinishedAt, &a.Status, &a.Score); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// CountAnswered returns how many persisted answers an attempt has.
func (r *AttemptRepository) CountAnswered(ctx context.Context, examID uuid.UUID, userID int) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempt_answers
		 WHERE exam_id = $1 AND user_id = $2 AND answer <> ''`,
		examID, userID,
	).Scan(&count)
	return count, err
}
