package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"portal_sync/internal/domain"
)

type JobStore struct {
	db *sqlx.DB
}

func NewJobStore(db *sqlx.DB) *JobStore {
	return &JobStore{db: db}
}

const jobColumns = `
	id, portal_id, listing_id, action, status, attempts, max_attempts,
	next_run_at, last_error, created_at, updated_at`

// Enqueue inserts a queued job. A pair that already has a queued job is
// superseded in place: the partial unique index on (portal_id,
// listing_id) WHERE status = 'queued' turns the insert into an update of
// the existing job's action and schedule instead of a duplicate row.
func (s *JobStore) Enqueue(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	query := `
		INSERT INTO portal_jobs (portal_id, listing_id, action, status, attempts, max_attempts, next_run_at)
		VALUES ($1, $2, $3, 'queued', 0, $4, $5)
		ON CONFLICT (portal_id, listing_id) WHERE status = 'queued' DO UPDATE SET
			action = EXCLUDED.action,
			attempts = 0,
			max_attempts = EXCLUDED.max_attempts,
			next_run_at = EXCLUDED.next_run_at,
			last_error = NULL,
			updated_at = now()
		RETURNING` + jobColumns

	var stored domain.Job
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &stored, query,
		job.PortalID,
		job.ListingID,
		job.Action,
		job.MaxAttempts,
		job.NextRunAt,
	)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// ClaimDue atomically flips up to limit due jobs from queued to
// processing and returns them, oldest first. SKIP LOCKED makes
// overlapping drain calls partition the due set: a job is claimed by
// exactly one caller.
func (s *JobStore) ClaimDue(ctx context.Context, limit int, now time.Time) ([]domain.Job, error) {
	query := `
		UPDATE portal_jobs SET
			status = 'processing',
			updated_at = now()
		WHERE id IN (
			SELECT id FROM portal_jobs
			WHERE status = 'queued' AND next_run_at <= $1
			ORDER BY next_run_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING` + jobColumns

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, now, limit); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *JobStore) MarkCompleted(ctx context.Context, id int64) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE portal_jobs
		 SET status = 'completed', last_error = NULL, updated_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Reschedule puts a retryably-failed job back in the queue with its
// incremented attempt count and pushed-back run time.
func (s *JobStore) Reschedule(ctx context.Context, id int64, attempts int, nextRunAt time.Time, lastError string) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE portal_jobs
		 SET status = 'queued', attempts = $2, next_run_at = $3, last_error = $4, updated_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		id, attempts, nextRunAt, lastError,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkFailed parks a job terminally. Failed jobs are never resurrected
// automatically; recovery is an explicit re-enqueue.
func (s *JobStore) MarkFailed(ctx context.Context, id int64, attempts int, lastError string) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE portal_jobs
		 SET status = 'failed', attempts = $2, last_error = $3, updated_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		id, attempts, lastError,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}
