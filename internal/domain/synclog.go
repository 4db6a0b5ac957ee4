package domain

import (
	"encoding/json"
	"time"
)

type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncError   SyncStatus = "error"
)

// SyncLogEntry is an append-only audit record of one feed synthesis or
// connectivity-test run. Entries are never mutated.
type SyncLogEntry struct {
	ID         int64           `db:"id"`
	PortalID   int64           `db:"portal_id"`
	Status     SyncStatus      `db:"status"`
	TotalItems int             `db:"total_items"`
	DurationMs int64           `db:"duration_ms"`
	Detail     json.RawMessage `db:"detail"`
	FeedURL    *string         `db:"feed_url"`
	CreatedAt  time.Time       `db:"created_at"`
}

// DispatchStats summarizes one drain pass over the job queue.
type DispatchStats struct {
	Claimed     int
	Succeeded   int
	Failed      int
	Rescheduled int
	NoOps       int
	Duration    time.Duration
}

// ConnectivityResult is the outcome of a portal credential check.
type ConnectivityResult struct {
	OK          bool            `json:"ok"`
	Error       string          `json:"error,omitempty"`
	AccountInfo json.RawMessage `json:"account_info,omitempty"`
	FeedURL     string          `json:"feed_url,omitempty"`
}
