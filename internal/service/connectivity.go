package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"portal_sync/internal/domain"
)

// ConnectivityService validates portal credentials before real publish
// jobs are enqueued. The api-portal check is a lightweight account fetch
// through the adapter; no remote listing is created or touched.
type ConnectivityService struct {
	portals     PortalStore
	adapters    AdapterFactory
	syncLogs    SyncLogStore
	feedBaseURL string
	callTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

func NewConnectivityService(
	portals PortalStore,
	adapters AdapterFactory,
	syncLogs SyncLogStore,
	feedBaseURL string,
	callTimeout time.Duration,
	logger *slog.Logger,
) *ConnectivityService {
	return &ConnectivityService{
		portals:     portals,
		adapters:    adapters,
		syncLogs:    syncLogs,
		feedBaseURL: feedBaseURL,
		callTimeout: callTimeout,
		now:         time.Now,
		logger:      logger.With("component", "connectivity"),
	}
}

func (c *ConnectivityService) Test(ctx context.Context, portalID int64) (*domain.ConnectivityResult, error) {
	start := c.now()

	portal, err := c.portals.GetByID(ctx, portalID)
	if err != nil {
		return nil, err
	}

	var result *domain.ConnectivityResult
	switch portal.Method {
	case domain.MethodAPI:
		result = c.testAPI(ctx, portal)
	case domain.MethodFeed:
		result = &domain.ConnectivityResult{OK: true, FeedURL: FeedURL(c.feedBaseURL, portal)}
	default:
		result = &domain.ConnectivityResult{OK: false, Error: "manual portals are not testable"}
	}

	c.appendLog(ctx, portal, result, start)
	return result, nil
}

func (c *ConnectivityService) testAPI(ctx context.Context, portal *domain.Portal) *domain.ConnectivityResult {
	ad, err := c.adapters.ForPortal(portal)
	if err != nil {
		return &domain.ConnectivityResult{OK: false, Error: err.Error()}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	account, err := ad.TestConnection(callCtx)
	if err != nil {
		c.logger.Warn("connectivity test failed", "portal", portal.Slug, "error", err)
		return &domain.ConnectivityResult{OK: false, Error: err.Error()}
	}

	return &domain.ConnectivityResult{OK: true, AccountInfo: account}
}

func (c *ConnectivityService) appendLog(ctx context.Context, portal *domain.Portal, result *domain.ConnectivityResult, start time.Time) {
	status := domain.SyncSuccess
	detail := map[string]any{"check": "connectivity"}
	if !result.OK {
		status = domain.SyncError
		detail["error"] = result.Error
	}
	detailDoc, err := json.Marshal(detail)
	if err != nil {
		detailDoc = []byte(`{}`)
	}

	entry := &domain.SyncLogEntry{
		PortalID:   portal.ID,
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
		Detail:     detailDoc,
	}
	if err := c.syncLogs.Append(ctx, entry); err != nil {
		c.logger.Error("failed to append sync log entry", "portal_id", portal.ID, "error", err)
	}
}
