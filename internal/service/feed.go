package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"portal_sync/internal/domain"
	"portal_sync/internal/export"
	"portal_sync/internal/feed"
)

// FeedService synthesizes pull-style feeds on demand. It is read-only
// apart from the sync-log append, so concurrent renders of the same
// portal are safe.
type FeedService struct {
	portals     PortalStore
	listings    ListingStore
	syncLogs    SyncLogStore
	feedBaseURL string
	now         func() time.Time
	logger      *slog.Logger
}

func NewFeedService(
	portals PortalStore,
	listings ListingStore,
	syncLogs SyncLogStore,
	feedBaseURL string,
	logger *slog.Logger,
) *FeedService {
	return &FeedService{
		portals:     portals,
		listings:    listings,
		syncLogs:    syncLogs,
		feedBaseURL: feedBaseURL,
		now:         time.Now,
		logger:      logger.With("component", "feed"),
	}
}

// Render resolves the portal by slug, checks the capability token and
// produces the feed body. Every failure mode before serialization maps
// to the same opaque ErrFeedUnauthorized: the response must not reveal
// whether the slug exists, the portal is disabled or the token is stale,
// or the error text becomes a token-guessing oracle.
func (f *FeedService) Render(ctx context.Context, slug, token string) (*feed.Output, error) {
	start := f.now()

	portal, err := f.portals.GetBySlug(ctx, slug)
	if err != nil {
		// No portal row to attribute a sync-log entry to.
		f.logger.Warn("feed request for unknown portal", "slug", slug)
		return nil, domain.ErrFeedUnauthorized
	}

	if !f.authorized(portal, token) {
		f.appendLog(ctx, portal, domain.SyncError, 0, start, map[string]any{"reason": "unauthorized"})
		return nil, domain.ErrFeedUnauthorized
	}

	listings, err := f.listings.GetAll(ctx)
	if err != nil {
		f.appendLog(ctx, portal, domain.SyncError, 0, start, map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("load listings: %w", err)
	}

	records := make([]*export.Record, 0, len(listings))
	skipped := 0
	for i := range listings {
		listing := &listings[i]
		if !export.Eligible(listing, portal) {
			continue
		}
		rec, err := export.MapListing(listing, portal)
		if err != nil {
			// One unmappable listing must not take the feed down.
			f.logger.Warn("listing excluded from feed", "listing_id", listing.ID, "error", err)
			skipped++
			continue
		}
		records = append(records, rec)
	}

	output, err := feed.Serialize(portal.FeedFormat, records)
	if err != nil {
		f.appendLog(ctx, portal, domain.SyncError, 0, start, map[string]any{"error": err.Error()})
		return nil, err
	}

	detail := map[string]any{"format": string(portal.FeedFormat)}
	if skipped > 0 {
		detail["skipped"] = skipped
	}
	f.appendLog(ctx, portal, domain.SyncSuccess, len(records), start, detail)

	f.logger.Info("feed rendered",
		"portal", portal.Slug,
		"format", portal.FeedFormat,
		"items", len(records),
		"skipped", skipped,
	)

	return output, nil
}

func (f *FeedService) authorized(portal *domain.Portal, token string) bool {
	if !portal.Active || portal.Method != domain.MethodFeed {
		return false
	}
	if portal.FeedToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(portal.FeedToken), []byte(token)) == 1
}

func (f *FeedService) appendLog(ctx context.Context, portal *domain.Portal, status domain.SyncStatus, items int, start time.Time, detail map[string]any) {
	detailDoc, err := json.Marshal(detail)
	if err != nil {
		detailDoc = []byte(`{}`)
	}

	feedURL := FeedURL(f.feedBaseURL, portal)
	entry := &domain.SyncLogEntry{
		PortalID:   portal.ID,
		Status:     status,
		TotalItems: items,
		DurationMs: time.Since(start).Milliseconds(),
		Detail:     detailDoc,
		FeedURL:    &feedURL,
	}

	if err := f.syncLogs.Append(ctx, entry); err != nil {
		// The feed itself already rendered; losing one audit row is
		// logged but not surfaced to the portal.
		f.logger.Error("failed to append sync log entry", "portal_id", portal.ID, "error", err)
	}
}
