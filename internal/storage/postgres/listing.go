package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"portal_sync/internal/domain"
)

// ListingStore reads the external catalog's listings. The catalog is
// owned by another system; this store never writes to it.
type ListingStore struct {
	db *sqlx.DB
}

func NewListingStore(db *sqlx.DB) *ListingStore {
	return &ListingStore{db: db}
}

const listingColumns = `
	id, title, description, price, condo_fee, condo_exempt, iptu,
	transaction_type, property_type, category_id,
	street, street_number, district, city, state, postal_code,
	latitude, longitude, bedrooms, bathrooms, garages, area,
	active, featured, updated_at`

func (s *ListingStore) GetAll(ctx context.Context) ([]domain.Listing, error) {
	var listings []domain.Listing
	query := `SELECT` + listingColumns + ` FROM listings ORDER BY id`

	if err := s.db.SelectContext(ctx, &listings, query); err != nil {
		return nil, err
	}
	if err := s.attachPhotos(ctx, listings); err != nil {
		return nil, err
	}
	return listings, nil
}

func (s *ListingStore) GetByID(ctx context.Context, id int64) (*domain.Listing, error) {
	var listing domain.Listing
	query := `SELECT` + listingColumns + ` FROM listings WHERE id = $1`

	err := s.db.GetContext(ctx, &listing, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	one := []domain.Listing{listing}
	if err := s.attachPhotos(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// attachPhotos loads photo URLs for the given listings in declared order.
func (s *ListingStore) attachPhotos(ctx context.Context, listings []domain.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	ids := make([]int64, len(listings))
	index := make(map[int64]*domain.Listing, len(listings))
	for i := range listings {
		ids[i] = listings[i].ID
		index[listings[i].ID] = &listings[i]
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT listing_id, url
		 FROM listing_photos
		 WHERE listing_id = ANY($1)
		 ORDER BY listing_id, position`,
		pq.Array(ids),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var listingID int64
		var url string
		if err := rows.Scan(&listingID, &url); err != nil {
			return err
		}
		if l, ok := index[listingID]; ok {
			l.Photos = append(l.Photos, url)
		}
	}

	return rows.Err()
}
