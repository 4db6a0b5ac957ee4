package export

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"portal_sync/internal/domain"
)

func portalWithFilters(rules domain.FilterRules) *domain.Portal {
	return &domain.Portal{
		ID:     1,
		Slug:   "portal",
		Active: true,
		Method: domain.MethodFeed,
		Config: domain.PortalConfig{Filters: rules},
	}
}

func saleListing() domain.Listing {
	return domain.Listing{
		ID:          10,
		Title:       "Casa",
		Transaction: domain.TransactionSale,
		CategoryID:  2,
		City:        "Curitiba",
		State:       "PR",
		Photos:      []string{"https://img.example.com/1.jpg"},
		Active:      true,
		Featured:    false,
	}
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name    string
		rules   domain.FilterRules
		mutate  func(*domain.Listing)
		want    bool
	}{
		{
			name: "no rules admits everything",
			want: true,
		},
		{
			name:   "active only excludes inactive",
			rules:  domain.FilterRules{ActiveOnly: true},
			mutate: func(l *domain.Listing) { l.Active = false },
			want:   false,
		},
		{
			name:  "sale only admits sale",
			rules: domain.FilterRules{SaleOnly: true},
			want:  true,
		},
		{
			name:   "sale only excludes rent",
			rules:  domain.FilterRules{SaleOnly: true},
			mutate: func(l *domain.Listing) { l.Transaction = domain.TransactionRent },
			want:   false,
		},
		{
			name:  "rent only excludes sale",
			rules: domain.FilterRules{RentOnly: true},
			want:  false,
		},
		{
			name:  "sale wins when both transaction rules are set",
			rules: domain.FilterRules{SaleOnly: true, RentOnly: true},
			want:  true,
		},
		{
			name:   "featured only excludes plain listings",
			rules:  domain.FilterRules{FeaturedOnly: true},
			want:   false,
		},
		{
			name:   "featured only admits featured",
			rules:  domain.FilterRules{FeaturedOnly: true},
			mutate: func(l *domain.Listing) { l.Featured = true },
			want:   true,
		},
		{
			name:  "category allow list admits member",
			rules: domain.FilterRules{Categories: []int64{2, 3}},
			want:  true,
		},
		{
			name:  "category allow list excludes non-member",
			rules: domain.FilterRules{Categories: []int64{5}},
			want:  false,
		},
		{
			name:  "empty category list admits everything",
			rules: domain.FilterRules{Categories: []int64{}},
			want:  true,
		},
		{
			name:   "exclude no photos",
			rules:  domain.FilterRules{ExcludeNoPhotos: true},
			mutate: func(l *domain.Listing) { l.Photos = nil },
			want:   false,
		},
		{
			name:   "exclude no address needs city and state",
			rules:  domain.FilterRules{ExcludeNoAddress: true},
			mutate: func(l *domain.Listing) { l.State = "" },
			want:   false,
		},
		{
			name:  "all rules pass together",
			rules: domain.FilterRules{ActiveOnly: true, SaleOnly: true, ExcludeNoPhotos: true, ExcludeNoAddress: true, Categories: []int64{2}},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing := saleListing()
			if tt.mutate != nil {
				tt.mutate(&listing)
			}
			got := Eligible(&listing, portalWithFilters(tt.rules))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEligible_Deterministic(t *testing.T) {
	listing := saleListing()
	portal := portalWithFilters(domain.FilterRules{ActiveOnly: true, SaleOnly: true})

	first := Eligible(&listing, portal)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Eligible(&listing, portal))
	}
}
