package adapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"portal_sync/internal/domain"
	"portal_sync/internal/export"
)

// StaticToken pushes listings to portals authenticated with a fixed
// client id / token pair. The credential bundle also carries the
// portal's address-disclosure flags, applied to the wire payload here
// so the export record itself stays portal-neutral.
type StaticToken struct {
	api    apiClient
	creds  domain.StaticCredentials
	logger *slog.Logger
}

func NewStaticToken(baseURL string, client *http.Client, creds domain.StaticCredentials, logger *slog.Logger) *StaticToken {
	return &StaticToken{
		api:    apiClient{client: client, baseURL: baseURL},
		creds:  creds,
		logger: logger.With("adapter", "token"),
	}
}

type staticListing struct {
	Reference    string   `json:"reference"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Transaction  string   `json:"transaction"`
	PropertyType string   `json:"property_type"`
	Price        string   `json:"price"`
	CondoFee     string   `json:"condo_fee,omitempty"`
	IPTU         string   `json:"iptu,omitempty"`
	Street       string   `json:"street,omitempty"`
	StreetNumber string   `json:"street_number,omitempty"`
	District     string   `json:"district,omitempty"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	PostalCode   string   `json:"postal_code,omitempty"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	Garages      int      `json:"garages"`
	Area         float64  `json:"area"`
	Featured     bool     `json:"featured"`
	Photos       []string `json:"photos"`
}

func (a *StaticToken) payload(rec *export.Record) staticListing {
	p := staticListing{
		Reference:    itoa(rec.ListingID),
		Title:        rec.Title,
		Description:  rec.Description,
		Transaction:  rec.Transaction,
		PropertyType: rec.PropertyType,
		Price:        rec.Price,
		CondoFee:     rec.CondoFee,
		IPTU:         rec.IPTU,
		Street:       rec.Street,
		StreetNumber: rec.StreetNumber,
		District:     rec.District,
		City:         rec.City,
		State:        rec.State,
		PostalCode:   rec.PostalCode,
		Bedrooms:     rec.Bedrooms,
		Bathrooms:    rec.Bathrooms,
		Garages:      rec.Garages,
		Area:         rec.Area,
		Featured:     rec.Featured,
		Photos:       rec.Photos,
	}

	if !a.creds.ShowAddress {
		p.Street = ""
		p.StreetNumber = ""
		p.PostalCode = ""
	} else if !a.creds.ShowStreetNumber {
		p.StreetNumber = ""
	}

	return p
}

func (a *StaticToken) headers() map[string]string {
	return map[string]string{
		"X-Client-Id":   a.creds.ClientID,
		"Authorization": "Token " + a.creds.Token,
	}
}

func (a *StaticToken) Publish(ctx context.Context, rec *export.Record) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := a.api.do(ctx, http.MethodPost, "/v1/properties", a.headers(), a.payload(rec), &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (a *StaticToken) Update(ctx context.Context, externalID string, rec *export.Record) error {
	return a.api.do(ctx, http.MethodPut, "/v1/properties/"+externalID, a.headers(), a.payload(rec), nil)
}

func (a *StaticToken) Remove(ctx context.Context, externalID string) error {
	return a.api.do(ctx, http.MethodDelete, "/v1/properties/"+externalID, a.headers(), nil, nil)
}

func (a *StaticToken) TestConnection(ctx context.Context) (json.RawMessage, error) {
	var account json.RawMessage
	if err := a.api.do(ctx, http.MethodGet, "/v1/account", a.headers(), nil, &account); err != nil {
		return nil, err
	}
	return account, nil
}
