package domain

import (
	"encoding/json"
	"reflect"
	"time"
)

// PublicationStatus tracks the integration state of one listing on one portal.
type PublicationStatus string

const (
	PublicationNotPublished PublicationStatus = "not_published"
	PublicationPending      PublicationStatus = "pending"
	PublicationPublished    PublicationStatus = "published"
	PublicationError        PublicationStatus = "error"
	PublicationDisabled     PublicationStatus = "disabled"
)

// Publication is the durable per-(portal, listing) ledger row. It is
// created lazily on first enqueue and mutated only by the dispatcher.
// Rows are never deleted; removal parks them at PublicationDisabled so
// the audit trail survives.
type Publication struct {
	ID              int64             `db:"id"`
	PortalID        int64             `db:"portal_id"`
	ListingID       int64             `db:"listing_id"`
	Status          PublicationStatus `db:"status"`
	ExternalID      *string           `db:"external_id"`
	LastError       *string           `db:"last_error"`
	LastAttemptAt   *time.Time        `db:"last_attempt_at"`
	PayloadSnapshot json.RawMessage   `db:"payload_snapshot"`
	CreatedAt       time.Time         `db:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at"`
}

// SnapshotEquals reports whether the stored payload snapshot matches the
// given payload. Used to detect redelivered jobs that would be remote
// no-ops. The comparison is structural: the snapshot column is jsonb and
// Postgres canonicalizes key order and whitespace on the way through.
func (p *Publication) SnapshotEquals(payload []byte) bool {
	if len(p.PayloadSnapshot) == 0 || len(payload) == 0 {
		return false
	}
	var stored, given any
	if err := json.Unmarshal(p.PayloadSnapshot, &stored); err != nil {
		return false
	}
	if err := json.Unmarshal(payload, &given); err != nil {
		return false
	}
	return reflect.DeepEqual(stored, given)
}
