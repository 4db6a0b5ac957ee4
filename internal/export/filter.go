package export

import "portal_sync/internal/domain"

// Eligible decides whether a listing is included in a portal's export.
// Pure and deterministic: checks are applied in a fixed order and
// AND-combined, so failing any enabled rule excludes the listing.
func Eligible(listing *domain.Listing, portal *domain.Portal) bool {
	rules := portal.Config.Filters

	if rules.ActiveOnly && !listing.Active {
		return false
	}

	// Sale and rent filters are mutually exclusive; sale wins when both
	// are set so a misconfigured portal still gets a coherent feed.
	saleOnly, rentOnly := rules.SaleOnly, rules.RentOnly
	if saleOnly {
		rentOnly = false
	}
	if saleOnly && listing.Transaction != domain.TransactionSale {
		return false
	}
	if rentOnly && listing.Transaction != domain.TransactionRent {
		return false
	}

	if rules.FeaturedOnly && !listing.Featured {
		return false
	}

	if len(rules.Categories) > 0 && !containsID(rules.Categories, listing.CategoryID) {
		return false
	}

	if rules.ExcludeNoPhotos && len(listing.Photos) == 0 {
		return false
	}

	if rules.ExcludeNoAddress && !listing.HasAddress() {
		return false
	}

	return true
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
