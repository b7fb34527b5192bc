package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examsecure/internal/config"
	"github.com/stemsi/examsecure/internal/model"
)

// MonitorRepository provides data access for live integrity monitoring.
// It combines PostgreSQL (persisted violations) and Redis (live warning counters).
type MonitorRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool, rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{pool: pool, rdb: rdb}
}

// Live warning counters outlive any single exam window.
const liveWarningsTTL = 24 * time.Hour

var violationColumns = []string{"exam_id", "student_id", "kind", "reason", "warnings", "state", "recorded_at"}

// CopyViolations bulk-inserts a batch through COPY.
func (r *MonitorRepository) CopyViolations(ctx context.Context, batch []model.ViolationEvent) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, v := range batch {
		rows = append(rows, []interface{}{
			v.ExamID, v.StudentID, string(v.Kind), v.Reason, v.Warnings, v.State, v.RecordedAt,
		})
	}
	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{"exam_violations"}, violationColumns, pgx.CopyFromRows(rows))
	return err
}

// InsertViolation inserts a single event.
func (r *MonitorRepository) InsertViolation(ctx context.Context, v model.ViolationEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_violations (exam_id, student_id, kind, reason, warnings, state, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ExamID, v.StudentID, string(v.Kind), v.Reason, v.Warnings, v.State, v.RecordedAt,
	)
	return err
}

// GetViolationCounts returns the number of counted violations per student.
// Compliance events are recorded but not counted.
func (r *MonitorRepository) GetViolationCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, COUNT(*)
		 FROM exam_violations
		 WHERE exam_id = $1 AND kind <> $2
		 GROUP BY student_id`,
		examID, string(model.ViolationCompliant),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var sid int
		var count int64
		if err := rows.Scan(&sid, &count); err != nil {
			return nil, err
		}
		counts[sid] = count
	}
	return counts, rows.Err()
}

// ListViolations returns the audit trail of one student in an exam, oldest first.
func (r *MonitorRepository) ListViolations(ctx context.Context, examID uuid.UUID, studentID int) ([]model.ViolationEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_id, student_id, kind, reason, warnings, state, recorded_at
		 FROM exam_violations
		 WHERE exam_id = $1 AND student_id = $2
		 ORDER BY recorded_at, id`,
		examID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ViolationEvent
	for rows.Next() {
		var v model.ViolationEvent
		if err := rows.Scan(&v.ExamID, &v.StudentID, &v.Kind, &v.Reason, &v.Warnings, &v.State, &v.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SetLiveWarnings stores the latest warning count reported by a student.
func (r *MonitorRepository) SetLiveWarnings(ctx context.Context, examID uuid.UUID, studentID, warnings int) error {
	key := config.CacheKey.StudentWarningsKey(examID.String())
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, key, strconv.Itoa(studentID), warnings)
	pipe.Expire(ctx, key, liveWarningsTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetLiveWarnings returns the latest reported warning count per student.
func (r *MonitorRepository) GetLiveWarnings(ctx context.Context, examID uuid.UUID) (map[int]int, error) {
	raw, err := r.rdb.HGetAll(ctx, config.CacheKey.StudentWarningsKey(examID.String())).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[int]int, len(raw))
	for k, v := range raw {
		sid, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		out[sid] = n
	}
	return out, nil
}

// Publish sends a raw JSON payload to the exam's monitor channel.
func (r *MonitorRepository) Publish(ctx context.Context, examID uuid.UUID, payload []byte) error {
	return r.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID.String()), payload).Err()
}

// Enqueue pushes a raw JSON payload onto the violation persistence queue.
func (r *MonitorRepository) Enqueue(ctx context.Context, payload []byte) error {
	return r.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err()
}

// Dequeue pops one payload from the violation queue, waiting up to timeout.
// It returns nil, nil when the queue stayed empty.
func (r *MonitorRepository) Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error) {
	result, err := r.rdb.BLPop(ctx, timeout, config.WorkerKey.PersistViolationsQueue).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

// Requeue pushes payloads back onto the violation queue in one pipeline.
func (r *MonitorRepository) Requeue(ctx context.Context, payloads [][]byte) error {
	pipe := r.rdb.Pipeline()
	for _, p := range payloads {
		pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, p)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Subscribe attaches to the exam's monitor channel and forwards raw payloads
// until ctx ends or the returned close func is called.
func (r *MonitorRepository) Subscribe(ctx context.Context, examID uuid.UUID) (<-chan []byte, func() error) {
	pubsub := r.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, pubsub.Close
}
