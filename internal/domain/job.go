package domain

import "time"

type JobAction string

const (
	ActionPublish JobAction = "publish"
	ActionUpdate  JobAction = "update"
	ActionPause   JobAction = "pause"
	ActionRemove  JobAction = "remove"
)

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

const DefaultMaxAttempts = 5

// Job is one unit of push-integration work. Jobs are claimed with an
// atomic conditional transition queued -> processing, so overlapping
// drain calls partition the due set instead of double-processing.
type Job struct {
	ID          int64     `db:"id"`
	PortalID    int64     `db:"portal_id"`
	ListingID   int64     `db:"listing_id"`
	Action      JobAction `db:"action"`
	Status      JobStatus `db:"status"`
	Attempts    int       `db:"attempts"`
	MaxAttempts int       `db:"max_attempts"`
	NextRunAt   time.Time `db:"next_run_at"`
	LastError   *string   `db:"last_error"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// ValidAction reports whether s names a known job action.
func ValidAction(s string) bool {
	switch JobAction(s) {
	case ActionPublish, ActionUpdate, ActionPause, ActionRemove:
		return true
	}
	return false
}

// RetryPolicy controls rescheduling of retryable job failures.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy: 30s base, doubled per attempt, capped at one hour.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    DefaultMaxAttempts,
	InitialBackoff: 30 * time.Second,
	MaxBackoff:     time.Hour,
}

// Backoff returns the delay before retry number attempt (1-based).
// The delay grows strictly with attempt until it hits MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	return backoff
}
