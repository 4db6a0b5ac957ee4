package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"portal_sync/internal/domain"
)

type PortalStore struct {
	db *sqlx.DB
}

func NewPortalStore(db *sqlx.DB) *PortalStore {
	return &PortalStore{db: db}
}

// portalRow carries the raw config document next to the scanned columns;
// the jsonb is decoded into domain.PortalConfig after the scan.
type portalRow struct {
	domain.Portal
	ConfigDoc []byte `db:"config"`
}

const portalColumns = `
	id, slug, name, active, method, feed_format, feed_token,
	adapter_type, config, created_at, updated_at`

func (r *portalRow) toDomain() (*domain.Portal, error) {
	portal := r.Portal
	if len(r.ConfigDoc) > 0 {
		if err := json.Unmarshal(r.ConfigDoc, &portal.Config); err != nil {
			return nil, fmt.Errorf("decode portal %d config: %w", portal.ID, err)
		}
	}
	return &portal, nil
}

func (s *PortalStore) GetByID(ctx context.Context, id int64) (*domain.Portal, error) {
	return s.get(ctx, "id = $1", id)
}

func (s *PortalStore) GetBySlug(ctx context.Context, slug string) (*domain.Portal, error) {
	return s.get(ctx, "slug = $1", slug)
}

func (s *PortalStore) get(ctx context.Context, where string, arg any) (*domain.Portal, error) {
	var row portalRow
	query := `SELECT` + portalColumns + ` FROM portals WHERE ` + where

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (s *PortalStore) List(ctx context.Context) ([]domain.Portal, error) {
	var rows []portalRow
	query := `SELECT` + portalColumns + ` FROM portals ORDER BY id`

	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query); err != nil {
		return nil, err
	}

	portals := make([]domain.Portal, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		portals = append(portals, *p)
	}
	return portals, nil
}

// Update persists the mutable portal attributes and the config document.
func (s *PortalStore) Update(ctx context.Context, portal *domain.Portal) error {
	configDoc, err := json.Marshal(portal.Config)
	if err != nil {
		return fmt.Errorf("encode portal config: %w", err)
	}

	query := `
		UPDATE portals SET
			name = $2,
			active = $3,
			method = $4,
			feed_format = $5,
			adapter_type = $6,
			config = $7,
			updated_at = now()
		WHERE id = $1`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		portal.ID,
		portal.Name,
		portal.Active,
		portal.Method,
		portal.FeedFormat,
		portal.AdapterType,
		configDoc,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateFeedToken swaps the feed capability token. The previous token is
// dead as soon as this statement commits.
func (s *PortalStore) UpdateFeedToken(ctx context.Context, id int64, token string) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE portals SET feed_token = $2, updated_at = now() WHERE id = $1`,
		id, token,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SaveAccessToken stores a refreshed OAuth access token inside the
// config document without disturbing the rest of it.
func (s *PortalStore) SaveAccessToken(ctx context.Context, id int64, accessToken string) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE portals
		 SET config = jsonb_set(config, '{credentials,oauth,access_token}', to_jsonb($2::text)),
		     updated_at = now()
		 WHERE id = $1`,
		id, accessToken,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
