package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examgate/examgate-backend/internal/config"
	"github.com/examgate/examgate-backend/internal/model"
)

const (
	violationBatchSize    = 50
	violationBatchTimeout = 2 * time.Second
	// BLPop timeouts below one second get rounded by Redis.
	violationPollTimeout = 1 * time.Second
)

type violationSink interface {
	BulkInsertViolations(ctx context.Context, logs []model.ViolationLog) error
	InsertViolation(ctx context.Context, v *model.ViolationLog) error
}

// ViolationWorker drains client-reported violations from the Redis queue
// and persists them in batches, keeping the students' hot path off
// Postgres. Batch failures fall back to row-by-row inserts; rows that
// still fail are requeued instead of dropped.
type ViolationWorker struct {
	sink violationSink
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewViolationWorker creates a new ViolationWorker.
func NewViolationWorker(sink violationSink, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		sink: sink,
		rdb:  rdb,
		log:  log.With().Str("component", "violation_worker").Logger(),
	}
}

// Start runs the worker loop until the context is cancelled. Call in a
// goroutine.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("violation worker started")

	buffer := make([]model.ViolationLog, 0, violationBatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= violationBatchSize || time.Since(lastFlush) >= violationBatchTimeout) {
			w.flush(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, violationPollTimeout, config.WorkerKey.PersistViolationsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("redis error, backing off")
			time.Sleep(3 * time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var v model.ViolationLog
		if err := json.Unmarshal([]byte(result[1]), &v); err != nil {
			// Malformed JSON can never succeed on retry.
			w.log.Error().Err(err).Str("data", result[1]).Msg("discarding malformed violation")
			continue
		}
		buffer = append(buffer, v)
	}
}

// flush tries the bulk path first and degrades to row-by-row.
func (w *ViolationWorker) flush(ctx context.Context, batch []model.ViolationLog) {
	err := w.sink.BulkInsertViolations(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("violations persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("bulk insert failed, falling back to row-by-row")

	var requeue []model.ViolationLog
	for i := range batch {
		v := batch[i]
		if err := w.sink.InsertViolation(ctx, &v); err != nil {
			w.log.Error().Err(err).Str("attempt_id", v.AttemptID.String()).Msg("insert failed, requeueing")
			requeue = append(requeue, batch[i])
		}
	}
	if len(requeue) > 0 {
		w.requeue(ctx, requeue)
	}
}

func (w *ViolationWorker) requeue(ctx context.Context, items []model.ViolationLog) {
	pipe := w.rdb.Pipeline()
	for _, v := range items {
		data, _ := json.Marshal(v)
		pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("requeue failed, violations lost")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("violations requeued")
	// Avoid thrashing while the database is down.
	time.Sleep(2 * time.Second)
}

func (w *ViolationWorker) shutdown(buffer []model.ViolationLog) {
	if len(buffer) == 0 {
		w.log.Info().Msg("violation worker stopped")
		return
	}
	w.log.Info().Int("count", len(buffer)).Msg("violation worker stopping, flushing buffer")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.flush(ctx, buffer)
}
