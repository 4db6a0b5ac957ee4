package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"portal_sync/internal/domain"
)

// SyncLogStore is append-only; there is deliberately no update or delete.
type SyncLogStore struct {
	db *sqlx.DB
}

func NewSyncLogStore(db *sqlx.DB) *SyncLogStore {
	return &SyncLogStore{db: db}
}

func (s *SyncLogStore) Append(ctx context.Context, entry *domain.SyncLogEntry) error {
	query := `
		INSERT INTO portal_sync_logs (portal_id, status, total_items, duration_ms, detail, feed_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	detail := entry.Detail
	if len(detail) == 0 {
		detail = []byte(`{}`)
	}

	return GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		entry.PortalID,
		entry.Status,
		entry.TotalItems,
		entry.DurationMs,
		detail,
		entry.FeedURL,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// ListByPortal returns the most recent runs, newest first.
func (s *SyncLogStore) ListByPortal(ctx context.Context, portalID int64, limit int) ([]domain.SyncLogEntry, error) {
	var entries []domain.SyncLogEntry
	query := `
		SELECT id, portal_id, status, total_items, duration_ms, detail, feed_url, created_at
		FROM portal_sync_logs
		WHERE portal_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	if err := s.db.SelectContext(ctx, &entries, query, portalID, limit); err != nil {
		return nil, err
	}
	return entries, nil
}
