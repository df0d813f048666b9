package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/config"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ViolationWorker consumes persist_violations_queue and batch-inserts
// lockdown violations. Violations arrive in bursts (a proctored room
// losing fullscreen together), so inserts are batched with CopyFrom.
type ViolationWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewViolationWorker creates a new ViolationWorker.
func NewViolationWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "violation_worker").Logger(),
	}
}

type violationPayload struct {
	UserID    int    `json:"user_id"`
	ExamID    string `json:"exam_id"`
	Kind      string `json:"kind"`
	Blocking  bool   `json:"blocking"`
	Timestamp int64  `json:"timestamp"`
}

// Start begins the worker loop. Call in a goroutine.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]*violationPayload, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlush = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistViolationsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Timeout, loop back to check flush timer
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var payload violationPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &payload)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue.
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []*violationPayload) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *ViolationWorker) bulkInsert(ctx context.Context, batch []*violationPayload) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, p := range batch {
		examID, err := uuid.Parse(p.ExamID)
		if err != nil {
			// Trigger the fallback, which handles the bad UUID individually.
			return err
		}
		rows = append(rows, []interface{}{
			examID, p.UserID, p.Kind, p.Blocking, time.Unix(p.Timestamp, 0),
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"attempt_violations"},
		[]string{"exam_id", "user_id", "kind", "blocking", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *ViolationWorker) fallbackInsert(ctx context.Context, batch []*violationPayload) {
	requeueList := make([]*violationPayload, 0)

	for _, p := range batch {
		examID, err := uuid.Parse(p.ExamID)
		if err != nil {
			w.log.Error().Str("exam_id", p.ExamID).Msg("Dropping violation with invalid UUID")
			continue
		}

		_, err = w.pool.Exec(ctx,
			`INSERT INTO attempt_violations (exam_id, user_id, kind, blocking, recorded_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			examID, p.UserID, p.Kind, p.Blocking, time.Unix(p.Timestamp, 0),
		)
		if err != nil {
			w.log.Error().Err(err).Int("user_id", p.UserID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, p)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *ViolationWorker) requeue(ctx context.Context, items []*violationPayload) {
	pipe := w.rdb.Pipeline()
	for _, p := range items {
		data, _ := json.Marshal(p)
		pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Avoid thrashing if the DB is down hard.
	time.Sleep(2 * time.Second)
}

func (w *ViolationWorker) shutdown(buffer []*violationPayload) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
