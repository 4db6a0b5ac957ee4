package domain

import "time"

// TransactionType distinguishes sale from rental listings.
type TransactionType string

const (
	TransactionSale TransactionType = "sale"
	TransactionRent TransactionType = "rent"
)

// Listing is a read-only projection of the catalog's property record.
// The catalog itself is an external collaborator; this module never
// mutates listings.
type Listing struct {
	ID           int64           `db:"id"`
	Title        string          `db:"title"`
	Description  string          `db:"description"`
	Price        float64         `db:"price"`
	CondoFee     float64         `db:"condo_fee"`
	CondoExempt  bool            `db:"condo_exempt"`
	IPTU         float64         `db:"iptu"`
	Transaction  TransactionType `db:"transaction_type"`
	PropertyType string          `db:"property_type"`
	CategoryID   int64           `db:"category_id"`
	Street       string          `db:"street"`
	StreetNumber string          `db:"street_number"`
	District     string          `db:"district"`
	City         string          `db:"city"`
	State        string          `db:"state"`
	PostalCode   string          `db:"postal_code"`
	Latitude     *float64        `db:"latitude"`
	Longitude    *float64        `db:"longitude"`
	Bedrooms     int             `db:"bedrooms"`
	Bathrooms    int             `db:"bathrooms"`
	Garages      int             `db:"garages"`
	Area         float64         `db:"area"`
	Photos       []string        `db:"-"`
	Active       bool            `db:"active"`
	Featured     bool            `db:"featured"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// HasAddress reports whether the listing carries enough address data for
// portals that require one. City and state are the minimum.
func (l *Listing) HasAddress() bool {
	return l.City != "" && l.State != ""
}
