package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"portal_sync/internal/domain"
)

type PublicationStore struct {
	db *sqlx.DB
}

func NewPublicationStore(db *sqlx.DB) *PublicationStore {
	return &PublicationStore{db: db}
}

const publicationColumns = `
	id, portal_id, listing_id, status, external_id, last_error,
	last_attempt_at, payload_snapshot, created_at, updated_at`

func (s *PublicationStore) Get(ctx context.Context, portalID, listingID int64) (*domain.Publication, error) {
	var pub domain.Publication
	query := `SELECT` + publicationColumns + `
		FROM portal_publications
		WHERE portal_id = $1 AND listing_id = $2`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &pub, query, portalID, listingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pub, nil
}

// MarkPending lazily creates the ledger row on first enqueue and resets
// it to pending with the error cleared on every subsequent one.
func (s *PublicationStore) MarkPending(ctx context.Context, portalID, listingID int64) error {
	query := `
		INSERT INTO portal_publications (portal_id, listing_id, status)
		VALUES ($1, $2, 'pending')
		ON CONFLICT (portal_id, listing_id) DO UPDATE SET
			status = 'pending',
			last_error = NULL,
			updated_at = now()`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, portalID, listingID)
	return err
}

// Update writes the post-attempt state of a publication. Only the
// dispatcher calls this, and only after the adapter call has returned.
func (s *PublicationStore) Update(ctx context.Context, pub *domain.Publication) error {
	query := `
		UPDATE portal_publications SET
			status = $3,
			external_id = $4,
			last_error = $5,
			last_attempt_at = $6,
			payload_snapshot = $7,
			updated_at = now()
		WHERE portal_id = $1 AND listing_id = $2`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		pub.PortalID,
		pub.ListingID,
		pub.Status,
		pub.ExternalID,
		pub.LastError,
		pub.LastAttemptAt,
		pub.PayloadSnapshot,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListByPortal backs the admin view: per-listing status, last error and
// last attempt time for one portal.
func (s *PublicationStore) ListByPortal(ctx context.Context, portalID int64) ([]domain.Publication, error) {
	var pubs []domain.Publication
	query := `SELECT` + publicationColumns + `
		FROM portal_publications
		WHERE portal_id = $1
		ORDER BY listing_id`

	if err := s.db.SelectContext(ctx, &pubs, query, portalID); err != nil {
		return nil, err
	}
	return pubs, nil
}
