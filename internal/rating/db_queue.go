package rating

import (
	"context"
	"errors"
	"log"

	"github.com/property-booking/backend/internal/storage"
)

// DefaultBatchSize is the number of jobs processed per drain.
const DefaultBatchSize = 100

// DBQueue keeps pending recalculations in the rating_jobs table. A job row is
// removed only after its recalculation succeeded, which gives at-least-once
// execution across restarts.
type DBQueue struct {
	jobs      *storage.RatingJobRepository
	recalc    *Recalculator
	batchSize int
}

// NewDBQueue creates a database-backed queue.
func NewDBQueue(jobs *storage.RatingJobRepository, recalc *Recalculator, batchSize int) *DBQueue {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &DBQueue{jobs: jobs, recalc: recalc, batchSize: batchSize}
}

// Enqueue records a pending recalculation. Enqueuing a property that is
// already pending collapses into one job.
func (q *DBQueue) Enqueue(ctx context.Context, propertyID int64) error {
	return q.jobs.Enqueue(ctx, propertyID)
}

// Drain processes one batch of pending jobs and returns how many succeeded.
func (q *DBQueue) Drain(ctx context.Context) (int, error) {
	pending, err := q.jobs.ListPending(ctx, q.batchSize)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, job := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		if err := q.recalc.Recalculate(ctx, job.PropertyID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Property is gone; nothing left to recalculate.
				log.Printf("Dropping rating job for missing property %d", job.PropertyID)
				if err := q.jobs.Complete(ctx, job); err != nil {
					log.Printf("Failed to drop rating job %d: %v", job.PropertyID, err)
				}
				continue
			}
			log.Printf("Rating job for property %d failed (attempt %d): %v", job.PropertyID, job.Attempts+1, err)
			if ferr := q.jobs.Fail(ctx, job, err); ferr != nil {
				log.Printf("Failed to record rating job failure: %v", ferr)
			}
			continue
		}

		if err := q.jobs.Complete(ctx, job); err != nil {
			log.Printf("Failed to complete rating job %d: %v", job.PropertyID, err)
			continue
		}
		done++
	}

	return done, nil
}
