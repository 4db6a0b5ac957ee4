package export

import (
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcloughlin/geohash"

	"portal_sync/internal/domain"
)

var stripPolicy = bluemonday.StrictPolicy()

const geohashPrecision = 9

// MapListing transforms a catalog listing into the portal's export
// record. Returns a terminal error when a required mapped field is
// missing; such a listing can never serialize for this portal until the
// catalog changes.
func MapListing(listing *domain.Listing, portal *domain.Portal) (*Record, error) {
	if strings.TrimSpace(listing.Title) == "" {
		return nil, domain.Terminalf("listing %d: title is required", listing.ID)
	}
	if portal.Config.Filters.ExcludeNoAddress && !listing.HasAddress() {
		return nil, domain.Terminalf("listing %d: city and state are required", listing.ID)
	}

	cfg := portal.Config

	description := listing.Description
	if cfg.StripHTML {
		description = html.UnescapeString(stripPolicy.Sanitize(description))
		description = strings.TrimSpace(description)
	}

	photos := listing.Photos
	if limit := cfg.EffectivePhotoLimit(); len(photos) > limit {
		photos = photos[:limit]
	}

	propertyType := listing.PropertyType
	if mapped, ok := cfg.FieldOverrides[propertyType]; ok {
		propertyType = mapped
	}

	rec := &Record{
		ListingID:    listing.ID,
		Title:        listing.Title,
		Description:  description,
		Transaction:  string(listing.Transaction),
		PropertyType: propertyType,
		Price:        renderPrice(listing.Price, cfg.PriceOnRequest),
		CondoFee:     renderCondoFee(listing.CondoFee, listing.CondoExempt),
		IPTU:         formatMoney(listing.IPTU),
		Street:       listing.Street,
		StreetNumber: listing.StreetNumber,
		District:     listing.District,
		City:         listing.City,
		State:        listing.State,
		PostalCode:   listing.PostalCode,
		Bedrooms:     listing.Bedrooms,
		Bathrooms:    listing.Bathrooms,
		Garages:      listing.Garages,
		Area:         listing.Area,
		Featured:     listing.Featured,
		Photos:       photos,
	}

	if listing.Latitude != nil && listing.Longitude != nil {
		rec.Geohash = geohash.EncodeWithPrecision(*listing.Latitude, *listing.Longitude, geohashPrecision)
	}

	return rec, nil
}

// renderPrice keeps "no price set" apart from "intentionally not
// disclosed". Only a zero price combined with the portal's
// price-on-request policy yields the sentinel.
func renderPrice(price float64, onRequest bool) string {
	if price == 0 && onRequest {
		return PriceOnRequest
	}
	return formatMoney(price)
}

// renderCondoFee: an exempt building has no fee at all, which is blank;
// a zero fee without exemption is a real zero and must render as one.
func renderCondoFee(fee float64, exempt bool) string {
	if exempt {
		return ""
	}
	return formatMoney(fee)
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
