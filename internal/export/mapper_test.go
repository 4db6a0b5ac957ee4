package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal_sync/internal/domain"
)

func exportListing() domain.Listing {
	lat, lng := -25.4284, -49.2733
	return domain.Listing{
		ID:           10,
		Title:        "Apartamento 2 quartos",
		Description:  "<p>Vista livre &amp; sol da manhã</p>",
		Price:        350000,
		CondoFee:     450,
		IPTU:         120.5,
		Transaction:  domain.TransactionSale,
		PropertyType: "apartment",
		Street:       "Rua XV de Novembro",
		StreetNumber: "1500",
		District:     "Centro",
		City:         "Curitiba",
		State:        "PR",
		PostalCode:   "80020-310",
		Latitude:     &lat,
		Longitude:    &lng,
		Bedrooms:     2,
		Bathrooms:    1,
		Garages:      1,
		Area:         68.5,
		Photos:       []string{"https://img.example.com/1.jpg", "https://img.example.com/2.jpg"},
		Active:       true,
	}
}

func exportPortal(cfg domain.PortalConfig) *domain.Portal {
	return &domain.Portal{ID: 1, Slug: "portal", Config: cfg}
}

func TestMapListing_Basic(t *testing.T) {
	listing := exportListing()
	rec, err := MapListing(&listing, exportPortal(domain.PortalConfig{}))

	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.ListingID)
	assert.Equal(t, "Apartamento 2 quartos", rec.Title)
	assert.Equal(t, "sale", rec.Transaction)
	assert.Equal(t, "350000.00", rec.Price)
	assert.Equal(t, "450.00", rec.CondoFee)
	assert.Equal(t, "120.50", rec.IPTU)
	assert.Len(t, rec.Photos, 2)
	// HTML passes through untouched unless the portal opts in.
	assert.Contains(t, rec.Description, "<p>")
}

func TestMapListing_StripHTML(t *testing.T) {
	listing := exportListing()
	rec, err := MapListing(&listing, exportPortal(domain.PortalConfig{StripHTML: true}))

	require.NoError(t, err)
	assert.Equal(t, "Vista livre & sol da manhã", rec.Description)
}

func TestMapListing_TitleRequired(t *testing.T) {
	listing := exportListing()
	listing.Title = "   "

	rec, err := MapListing(&listing, exportPortal(domain.PortalConfig{}))

	assert.Nil(t, rec)
	require.Error(t, err)
	assert.True(t, domain.IsTerminal(err), "a missing title can never heal by retrying")
}

func TestMapListing_AddressRequiredWhenPortalDemandsIt(t *testing.T) {
	listing := exportListing()
	listing.City = ""

	cfg := domain.PortalConfig{Filters: domain.FilterRules{ExcludeNoAddress: true}}
	rec, err := MapListing(&listing, exportPortal(cfg))

	assert.Nil(t, rec)
	require.Error(t, err)
	assert.True(t, domain.IsTerminal(err))
}

func TestMapListing_PriceOnRequest(t *testing.T) {
	tests := []struct {
		name      string
		price     float64
		onRequest bool
		want      string
	}{
		{"zero price with policy yields sentinel", 0, true, PriceOnRequest},
		{"zero price without policy is a plain zero", 0, false, "0.00"},
		{"real price ignores policy", 199000, true, "199000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing := exportListing()
			listing.Price = tt.price
			rec, err := MapListing(&listing, exportPortal(domain.PortalConfig{PriceOnRequest: tt.onRequest}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Price)
		})
	}
}

func TestMapListing_CondoFeeExemptionIsNotZero(t *testing.T) {
	listing := exportListing()
	listing.CondoFee = 0
	listing.CondoExempt = true

	rec, err := MapListing(&listing, exportPortal(domain.PortalConfig{}))
	require.NoError(t, err)
	assert.Equal(t, "", rec.CondoFee, "exempt buildings have no fee at all")

	listing.CondoExempt = false
	rec, err = MapListing(&listing, exportPortal(domain.PortalConfig{}))
	require.NoError(t, err)
	assert.Equal(t, "0.00", rec.CondoFee, "a real zero fee must stay a zero")
}

func TestMapListing_PhotoCap(t *testing.T) {
	listing := exportListing()
	listing.Photos = make([]string, 30)
	for i := range listing.Photos {
		listing.Photos[i] = "https://img.example.com/p.jpg"
	}

	rec, err := MapListing(&listing, exportPortal(domain.PortalConfig{}))
	require.NoError(t, err)
	assert.Len(t, rec.Photos, domain.DefaultPhotoLimit)

	rec, err = MapListing(&listing, exportPortal(domain.PortalConfig{PhotoLimit: 5}))
	require.NoError(t, err)
	assert.Len(t, rec.Photos, 5)
}

func TestMapListing_FieldOverrides(t *testing.T) {
	listing := exportListing()
	cfg := domain.PortalConfig{FieldOverrides: map[string]string{"apartment": "apartamento"}}

	rec, err := MapListing(&listing, exportPortal(cfg))
	require.NoError(t, err)
	assert.Equal(t, "apartamento", rec.PropertyType)
}

func TestMapListing_Geohash(t *testing.T) {
	listing := exportListing()

	rec, err := MapListing(&listing, exportPortal(domain.PortalConfig{}))
	require.NoError(t, err)
	assert.Len(t, rec.Geohash, 9)

	listing.Latitude = nil
	rec, err = MapListing(&listing, exportPortal(domain.PortalConfig{}))
	require.NoError(t, err)
	assert.Empty(t, rec.Geohash)
}

func TestMapListing_Deterministic(t *testing.T) {
	listing := exportListing()
	portal := exportPortal(domain.PortalConfig{StripHTML: true, PhotoLimit: 1})

	first, err := MapListing(&listing, portal)
	require.NoError(t, err)
	second, err := MapListing(&listing, portal)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
