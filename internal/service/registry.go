package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"

	"portal_sync/internal/domain"
)

const feedTokenBytes = 32

// Registry manages portal configuration records: reads, validated
// updates and feed-token rotation.
type Registry struct {
	portals     PortalStore
	feedBaseURL string
	logger      *slog.Logger
}

func NewRegistry(portals PortalStore, feedBaseURL string, logger *slog.Logger) *Registry {
	return &Registry{
		portals:     portals,
		feedBaseURL: feedBaseURL,
		logger:      logger.With("component", "registry"),
	}
}

func (r *Registry) Get(ctx context.Context, portalID int64) (*domain.Portal, error) {
	return r.portals.GetByID(ctx, portalID)
}

// Update applies the patch to the stored portal. The config document is
// validated before anything is persisted, so a rejected patch leaves the
// portal untouched.
func (r *Registry) Update(ctx context.Context, portalID int64, patch *domain.PortalPatch) (*domain.Portal, error) {
	portal, err := r.portals.GetByID(ctx, portalID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		portal.Name = *patch.Name
	}
	if patch.Active != nil {
		portal.Active = *patch.Active
	}
	if patch.Method != nil {
		portal.Method = *patch.Method
	}
	if patch.FeedFormat != nil {
		portal.FeedFormat = *patch.FeedFormat
	}
	if patch.AdapterType != nil {
		portal.AdapterType = *patch.AdapterType
	}
	if patch.Config != nil {
		portal.Config = *patch.Config
	}

	if err := validatePortalConfig(portal.AdapterType, &portal.Config); err != nil {
		return nil, err
	}

	if err := r.portals.Update(ctx, portal); err != nil {
		return nil, err
	}

	r.logger.Info("portal updated", "portal_id", portal.ID, "slug", portal.Slug)
	return portal, nil
}

// RotateToken replaces the feed capability token with a fresh random
// one. The old feed URL stops working the moment the new token commits;
// redistributing the URL is the caller's problem.
func (r *Registry) RotateToken(ctx context.Context, portalID int64) (string, error) {
	buf := make([]byte, feedTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate feed token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := r.portals.UpdateFeedToken(ctx, portalID, token); err != nil {
		return "", err
	}

	r.logger.Info("feed token rotated", "portal_id", portalID)
	return token, nil
}

// FeedURL builds the token-protected feed URL for a portal.
func FeedURL(baseURL string, portal *domain.Portal) string {
	q := url.Values{}
	q.Set("portal", portal.Slug)
	q.Set("token", portal.FeedToken)
	return baseURL + "/feed?" + q.Encode()
}
