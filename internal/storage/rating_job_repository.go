package storage

import (
	"context"
	"fmt"
	"time"
)

// RatingJob is a pending average-rating recalculation for one property.
// Seq changes every time the property is enqueued again, so a job finished
// with a stale Seq stays queued.
type RatingJob struct {
	PropertyID int64
	Seq        int64
	Attempts   int
	LastError  *string
	EnqueuedAt time.Time
}

// RatingJobRepository stores rating recalculation jobs in the database.
type RatingJobRepository struct {
	BaseRepository
}

// NewRatingJobRepository creates a new rating job repository.
func NewRatingJobRepository(db *DB) *RatingJobRepository {
	return &RatingJobRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Enqueue records that a property's rating must be recalculated.
func (r *RatingJobRepository) Enqueue(ctx context.Context, propertyID int64) error {
	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO rating_jobs (property_id, seq, attempts, enqueued_at) VALUES (?, 1, 0, ?)
		ON CONFLICT (property_id) DO UPDATE SET
			seq = rating_jobs.seq + 1, enqueued_at = excluded.enqueued_at
	`, propertyID, r.Now())
	if err != nil {
		return fmt.Errorf("enqueuing rating job: %w", err)
	}
	return nil
}

// ListPending returns up to limit jobs, oldest first.
func (r *RatingJobRepository) ListPending(ctx context.Context, limit int) ([]RatingJob, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT property_id, seq, attempts, last_error, enqueued_at
		FROM rating_jobs
		ORDER BY enqueued_at, property_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying rating jobs: %w", err)
	}
	defer rows.Close()

	var jobs []RatingJob
	for rows.Next() {
		var j RatingJob
		if err := rows.Scan(&j.PropertyID, &j.Seq, &j.Attempts, &j.LastError, &j.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("scanning rating job: %w", err)
		}
		jobs = append(jobs, j)
	}

	return jobs, rows.Err()
}

// Complete removes a job unless it was enqueued again after it was read.
func (r *RatingJobRepository) Complete(ctx context.Context, job RatingJob) error {
	_, err := r.DB().ExecContext(ctx, `
		DELETE FROM rating_jobs WHERE property_id = ? AND seq = ?
	`, job.PropertyID, job.Seq)
	if err != nil {
		return fmt.Errorf("completing rating job: %w", err)
	}
	return nil
}

// Fail records a failed attempt. The job stays queued.
func (r *RatingJobRepository) Fail(ctx context.Context, job RatingJob, cause error) error {
	msg := cause.Error()
	_, err := r.DB().ExecContext(ctx, `
		UPDATE rating_jobs SET attempts = attempts + 1, last_error = ? WHERE property_id = ?
	`, msg, job.PropertyID)
	if err != nil {
		return fmt.Errorf("recording rating job failure: %w", err)
	}
	return nil
}
