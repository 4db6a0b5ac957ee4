package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"portal_sync/internal/domain"
	"portal_sync/internal/export"
)

// OAuth pushes listings to portals whose API is guarded by short-lived
// access tokens. When a call comes back auth-expired the adapter
// refreshes the token with the stored refresh token and retries the call
// once within the same dispatch attempt; anything beyond that falls back
// to the dispatcher's retry path.
type OAuth struct {
	api      apiClient
	portalID int64
	creds    domain.OAuthCredentials
	tokens   TokenSaver
	logger   *slog.Logger
}

func NewOAuth(baseURL string, client *http.Client, portalID int64, creds domain.OAuthCredentials, tokens TokenSaver, logger *slog.Logger) *OAuth {
	return &OAuth{
		api:      apiClient{client: client, baseURL: baseURL},
		portalID: portalID,
		creds:    creds,
		tokens:   tokens,
		logger:   logger.With("adapter", "oauth", "portal_id", portalID),
	}
}

type oauthListing struct {
	ExternalRef string   `json:"external_ref"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Operation   string   `json:"operation"`
	Category    string   `json:"category"`
	Price       string   `json:"price"`
	CondoFee    string   `json:"condo_fee,omitempty"`
	IPTU        string   `json:"iptu,omitempty"`
	Zipcode     string   `json:"zipcode"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	District    string   `json:"district,omitempty"`
	Geohash     string   `json:"geohash,omitempty"`
	Rooms       int      `json:"rooms"`
	Bathrooms   int      `json:"bathrooms"`
	GarageSpots int      `json:"garage_spots"`
	Size        float64  `json:"size"`
	Images      []string `json:"images"`
	Phone       string   `json:"phone,omitempty"`
}

func (a *OAuth) payload(rec *export.Record) oauthListing {
	return oauthListing{
		ExternalRef: itoa(rec.ListingID),
		Subject:     rec.Title,
		Body:        rec.Description,
		Operation:   rec.Transaction,
		Category:    rec.PropertyType,
		Price:       rec.Price,
		CondoFee:    rec.CondoFee,
		IPTU:        rec.IPTU,
		Zipcode:     rec.PostalCode,
		City:        rec.City,
		State:       rec.State,
		District:    rec.District,
		Geohash:     rec.Geohash,
		Rooms:       rec.Bedrooms,
		Bathrooms:   rec.Bathrooms,
		GarageSpots: rec.Garages,
		Size:        rec.Area,
		Images:      rec.Photos,
		Phone:       a.creds.ContactPhone,
	}
}

func (a *OAuth) Publish(ctx context.Context, rec *export.Record) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := a.call(ctx, http.MethodPost, "/autoupload/listings", a.payload(rec), &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (a *OAuth) Update(ctx context.Context, externalID string, rec *export.Record) error {
	return a.call(ctx, http.MethodPut, "/autoupload/listings/"+externalID, a.payload(rec), nil)
}

func (a *OAuth) Remove(ctx context.Context, externalID string) error {
	return a.call(ctx, http.MethodDelete, "/autoupload/listings/"+externalID, nil, nil)
}

func (a *OAuth) TestConnection(ctx context.Context) (json.RawMessage, error) {
	var account json.RawMessage
	if err := a.call(ctx, http.MethodGet, "/oauth/v1/account", nil, &account); err != nil {
		return nil, err
	}
	return account, nil
}

// call runs one authenticated request, transparently refreshing the
// access token on an expiry signal.
func (a *OAuth) call(ctx context.Context, method, path string, body, out any) error {
	err := a.api.do(ctx, method, path, a.authHeader(), body, out)
	if !isAuthExpired(err) {
		return err
	}

	a.logger.Info("access token expired, refreshing")
	if refreshErr := a.refreshAccessToken(ctx); refreshErr != nil {
		return refreshErr
	}

	return a.api.do(ctx, method, path, a.authHeader(), body, out)
}

func (a *OAuth) authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + a.creds.AccessToken}
}

func (a *OAuth) refreshAccessToken(ctx context.Context) error {
	req := map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     a.creds.ClientID,
		"client_secret": a.creds.ClientSecret,
		"refresh_token": a.creds.RefreshToken,
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := a.api.do(ctx, http.MethodPost, "/oauth/token", nil, req, &resp); err != nil {
		// A rejected refresh token is already terminal via status
		// classification; transient refresh failures stay retryable.
		return fmt.Errorf("refresh access token: %w", err)
	}

	a.creds.AccessToken = resp.AccessToken
	if a.tokens != nil {
		if err := a.tokens.SaveAccessToken(ctx, a.portalID, resp.AccessToken); err != nil {
			a.logger.Warn("failed to persist refreshed access token", "error", err)
		}
	}

	return nil
}

func isAuthExpired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
