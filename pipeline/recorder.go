package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"focus-pipeline/models"
)

// MetricsWriter persists daily health records remotely.
type MetricsWriter interface {
	SaveHealthMetrics(ctx context.Context, rec models.HealthRecord) error
}

// OfflineQueue holds records whose write failed, oldest first.
type OfflineQueue interface {
	Push(ctx context.Context, rec models.HealthRecord) error
	Peek(ctx context.Context) (*models.HealthRecord, error)
	Pop(ctx context.Context) error
	Len(ctx context.Context) (int64, error)
}

// Recorder writes health records and keeps the ones that could not be
// written for a later Sync.
type Recorder struct {
	writer MetricsWriter
	queue  OfflineQueue
	logger *slog.Logger
}

// NewRecorder accepts a nil writer; every record is then queued.
func NewRecorder(writer MetricsWriter, queue OfflineQueue, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{writer: writer, queue: queue, logger: logger}
}

// Record writes rec, queueing it on failure. The returned error wraps
// models.ErrPersistenceFailure and is only set when the record was lost.
func (r *Recorder) Record(ctx context.Context, rec models.HealthRecord) error {
	if r.writer != nil {
		err := r.writer.SaveHealthMetrics(ctx, rec)
		if err == nil {
			return nil
		}
		r.logger.Warn("health record write failed, queueing",
			"user_id", rec.UserID, "date", rec.Date, "err", err)
	}

	if r.queue == nil {
		err := fmt.Errorf("%w: no offline queue for %s/%s", models.ErrPersistenceFailure, rec.UserID, rec.Date)
		r.logger.Error("health record dropped", "err", err)
		return err
	}
	if err := r.queue.Push(ctx, rec); err != nil {
		err = fmt.Errorf("%w: queue record: %v", models.ErrPersistenceFailure, err)
		r.logger.Error("health record dropped", "user_id", rec.UserID, "err", err)
		return err
	}
	offlineQueuePushesTotal.Inc()
	return nil
}

// Sync drains the offline queue in FIFO order and stops at the first record
// that cannot be written, leaving it at the head. It returns the number of
// records written.
func (r *Recorder) Sync(ctx context.Context) (int, error) {
	if r.queue == nil {
		return 0, nil
	}
	if r.writer == nil {
		return 0, fmt.Errorf("%w: no remote writer configured", models.ErrPersistenceFailure)
	}

	sent := 0
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		rec, err := r.queue.Peek(ctx)
		if err != nil {
			return sent, fmt.Errorf("%w: read queue: %v", models.ErrPersistenceFailure, err)
		}
		if rec == nil {
			return sent, nil
		}
		if err := r.writer.SaveHealthMetrics(ctx, *rec); err != nil {
			return sent, fmt.Errorf("%w: sync %s/%s: %v", models.ErrPersistenceFailure, rec.UserID, rec.Date, err)
		}
		if err := r.queue.Pop(ctx); err != nil {
			return sent, fmt.Errorf("%w: pop queue: %v", models.ErrPersistenceFailure, err)
		}
		sent++
		offlineSyncedTotal.Inc()
	}
}

// Pending reports the number of queued records.
func (r *Recorder) Pending(ctx context.Context) (int64, error) {
	if r.queue == nil {
		return 0, nil
	}
	return r.queue.Len(ctx)
}
