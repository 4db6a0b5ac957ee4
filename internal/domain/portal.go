package domain

import "time"

// Method describes how a portal receives listings.
type Method string

const (
	MethodFeed   Method = "feed"
	MethodAPI    Method = "api"
	MethodManual Method = "manual"
)

// FeedFormat is only meaningful for MethodFeed portals.
type FeedFormat string

const (
	FormatXML  FeedFormat = "xml"
	FormatJSON FeedFormat = "json"
	FormatCSV  FeedFormat = "csv"
)

// AdapterType selects the push-integration contract. It is stored on the
// portal row explicitly; dispatch never infers it from the slug.
type AdapterType string

const (
	AdapterNone        AdapterType = "none"
	AdapterOAuth       AdapterType = "oauth"
	AdapterStaticToken AdapterType = "token"
)

type Portal struct {
	ID          int64        `db:"id"`
	Slug        string       `db:"slug"`
	Name        string       `db:"name"`
	Active      bool         `db:"active"`
	Method      Method       `db:"method"`
	FeedFormat  FeedFormat   `db:"feed_format"`
	FeedToken   string       `db:"feed_token"`
	AdapterType AdapterType  `db:"adapter_type"`
	Config      PortalConfig `db:"-"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
}

// PortalConfig is the structured config document stored alongside a portal.
type PortalConfig struct {
	Filters        FilterRules       `json:"filters"`
	FieldOverrides map[string]string `json:"field_overrides,omitempty"`
	PhotoLimit     int               `json:"photo_limit,omitempty"`
	PriceOnRequest bool              `json:"price_on_request,omitempty"`
	StripHTML      bool              `json:"strip_html,omitempty"`
	Credentials    Credentials       `json:"credentials,omitempty"`
}

type FilterRules struct {
	ActiveOnly       bool    `json:"active_only,omitempty"`
	SaleOnly         bool    `json:"sale_only,omitempty"`
	RentOnly         bool    `json:"rent_only,omitempty"`
	FeaturedOnly     bool    `json:"featured_only,omitempty"`
	ExcludeNoPhotos  bool    `json:"exclude_no_photos,omitempty"`
	ExcludeNoAddress bool    `json:"exclude_no_address,omitempty"`
	Categories       []int64 `json:"categories,omitempty"`
}

// Credentials is a tagged union; the populated branch must match the
// portal's AdapterType.
type Credentials struct {
	OAuth  *OAuthCredentials  `json:"oauth,omitempty"`
	Static *StaticCredentials `json:"static,omitempty"`
}

type OAuthCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

type StaticCredentials struct {
	ClientID         string `json:"client_id"`
	Token            string `json:"token"`
	ShowAddress      bool   `json:"show_address"`
	ShowStreetNumber bool   `json:"show_street_number"`
}

// PortalPatch carries the mutable portal attributes for registry updates.
// Nil fields are left untouched.
type PortalPatch struct {
	Name        *string       `json:"name,omitempty"`
	Active      *bool         `json:"active,omitempty"`
	Method      *Method       `json:"method,omitempty"`
	FeedFormat  *FeedFormat   `json:"feed_format,omitempty"`
	AdapterType *AdapterType  `json:"adapter_type,omitempty"`
	Config      *PortalConfig `json:"config,omitempty"`
}

// EffectivePhotoLimit applies the default cap when the config leaves it unset.
func (c PortalConfig) EffectivePhotoLimit() int {
	if c.PhotoLimit <= 0 {
		return DefaultPhotoLimit
	}
	return c.PhotoLimit
}

const DefaultPhotoLimit = 20
