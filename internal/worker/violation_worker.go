package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/metrics"
	"github.com/stemsi/examsecure/internal/model"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

type violationQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error)
	Requeue(ctx context.Context, payloads [][]byte) error
}

type violationStore interface {
	CopyViolations(ctx context.Context, batch []model.ViolationEvent) error
	InsertViolation(ctx context.Context, v model.ViolationEvent) error
}

// ViolationWorker drains the violation queue into exam_violations in batches.
// A failed bulk COPY falls back to row inserts; rows that still fail are
// pushed back onto the queue.
type ViolationWorker struct {
	queue   violationQueue
	store   violationStore
	metrics *metrics.Metrics
	log     zerolog.Logger

	errBackoff     time.Duration
	requeueBackoff time.Duration
}

func NewViolationWorker(queue violationQueue, store violationStore, m *metrics.Metrics, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		queue:          queue,
		store:          store,
		metrics:        m,
		log:            log.With().Str("component", "violation_worker").Logger(),
		errBackoff:     3 * time.Second,
		requeueBackoff: 2 * time.Second,
	}
}

// Start runs until ctx is cancelled, then flushes what it has buffered.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ViolationWorker started")

	buffer := make([]model.ViolationEvent, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check Flush Conditions (Time or Size)
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		// 2. Check Context (Graceful Shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch from Redis
		data, err := w.queue.Dequeue(ctx, PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, backing off")
			sleepCtx(ctx, w.errBackoff)
			continue
		}
		if data == nil {
			continue
		}

		// 4. Decode. Malformed payloads cannot succeed on retry.
		var ev model.ViolationEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			w.log.Error().Err(err).Str("data", string(data)).Msg("Discarding malformed violation payload")
			w.dropped(1)
			continue
		}

		buffer = append(buffer, ev)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue.
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []model.ViolationEvent) {
	if err := w.store.CopyViolations(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
		return
	}
	w.stored(len(batch))
}

func (w *ViolationWorker) fallbackInsert(ctx context.Context, batch []model.ViolationEvent) {
	var requeue [][]byte
	stored := 0

	for _, ev := range batch {
		if err := w.store.InsertViolation(ctx, ev); err != nil {
			w.log.Error().Err(err).
				Str("exam_id", ev.ExamID.String()).
				Int("student_id", ev.StudentID).
				Msg("Insert failed, requeueing")
			data, mErr := json.Marshal(ev)
			if mErr != nil {
				w.dropped(1)
				continue
			}
			requeue = append(requeue, data)
			continue
		}
		stored++
	}
	w.stored(stored)

	if len(requeue) > 0 {
		w.requeue(ctx, requeue)
	}
}

func (w *ViolationWorker) requeue(ctx context.Context, items [][]byte) {
	// Requeue must survive shutdown cancellation of ctx.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := w.queue.Requeue(pushCtx, items); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue violations. Data loss occurred.")
		w.dropped(len(items))
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed violations")
	// Avoid thrashing while the database is down.
	sleepCtx(ctx, w.requeueBackoff)
}

func (w *ViolationWorker) shutdown(buffer []model.ViolationEvent) {
	w.log.Info().Int("buffered", len(buffer)).Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}

func (w *ViolationWorker) stored(n int) {
	if w.metrics != nil && n > 0 {
		w.metrics.ViolationsStored.Add(float64(n))
	}
}

func (w *ViolationWorker) dropped(n int) {
	if w.metrics != nil && n > 0 {
		w.metrics.ViolationsDropped.Add(float64(n))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
