package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/config"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker consumes persist_results_queue and bulk-updates attempt
// rows with their final score. The submitted marker in Redis already
// guards re-entry, so this update only needs to land eventually.
type ResultWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewResultWorker creates a new ResultWorker.
func NewResultWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

type resultPayload struct {
	UserID         int     `json:"user_id"`
	ExamID         string  `json:"exam_id"`
	Score          float64 `json:"score"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
}

// Start begins the worker loop. Call in a goroutine.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	batch := make([]*resultPayload, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p resultPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*resultPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkFinalize(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("Bulk finalize failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("Single finalize failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			}
		}
		return
	}

	// After successful finalization, the live-session keys are no
	// longer needed.
	w.bulkClearSessionKeys(ctx, batch)
}

// bulkFinalize updates all attempts in one statement using UNNEST.
// Elapsed time determines finished_at so a delayed flush does not
// inflate the recorded duration.
func (w *ResultWorker) bulkFinalize(ctx context.Context, batch []*resultPayload) error {
	n := len(batch)

	examIDs := make([]uuid.UUID, 0, n)
	users := make([]int, 0, n)
	scores := make([]float64, 0, n)
	elapsed := make([]int, 0, n)

	for _, p := range batch {
		eID, err := uuid.Parse(p.ExamID)
		if err != nil {
			return err
		}
		examIDs = append(examIDs, eID)
		users = append(users, p.UserID)
		scores = append(scores, p.Score)
		elapsed = append(elapsed, p.ElapsedSeconds)
	}

	query := `
		UPDATE attempts AS a
		SET status = 'SUBMITTED',
		    score = t.score,
		    finished_at = a.started_at + make_interval(secs => t.elapsed_seconds)
		FROM (
			SELECT
				u.exam_id,
				u.user_id,
				u.score,
				u.elapsed_seconds
			FROM UNNEST(
				$1::uuid[],
				$2::int[],
				$3::float8[],
				$4::int[]
			) AS u (exam_id, user_id, score, elapsed_seconds)
		) AS t
		WHERE a.exam_id = t.exam_id
		  AND a.user_id = t.user_id
		  AND a.status = 'IN_PROGRESS'
	`

	_, err := w.pool.Exec(ctx, query, examIDs, users, scores, elapsed)
	return err
}

func (w *ResultWorker) persistSingle(ctx context.Context, p *resultPayload) error {
	eID, err := uuid.Parse(p.ExamID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = 'SUBMITTED',
		     score = $1,
		     finished_at = started_at + make_interval(secs => $2)
		 WHERE exam_id = $3 AND user_id = $4 AND status = 'IN_PROGRESS'`,
		p.Score, p.ElapsedSeconds, eID, p.UserID,
	)
	return err
}

// bulkClearSessionKeys deletes the autosave buffer and start-time keys
// for finalized attempts. The submitted marker stays: it serves result
// reads and re-entry checks.
func (w *ResultWorker) bulkClearSessionKeys(ctx context.Context, batch []*resultPayload) {
	pipe := w.rdb.Pipeline()

	for _, p := range batch {
		pipe.Del(ctx, config.CacheKey.AttemptAnswersKey(p.ExamID, p.UserID))
		pipe.Del(ctx, config.CacheKey.AttemptStartKey(p.ExamID, p.UserID))
	}

	_, _ = pipe.Exec(ctx)
}
