package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"portal_sync/internal/domain"
)

// Enqueuer accepts push-integration work from catalog-change
// collaborators and administrative actions.
type Enqueuer struct {
	portals PortalStore
	pubs    PublicationStore
	jobs    JobStore
	tx      TransactionManager
	retry   domain.RetryPolicy
	now     func() time.Time
	logger  *slog.Logger
}

func NewEnqueuer(
	portals PortalStore,
	pubs PublicationStore,
	jobs JobStore,
	tx TransactionManager,
	retry domain.RetryPolicy,
	logger *slog.Logger,
) *Enqueuer {
	return &Enqueuer{
		portals: portals,
		pubs:    pubs,
		jobs:    jobs,
		tx:      tx,
		retry:   retry,
		now:     time.Now,
		logger:  logger.With("component", "enqueuer"),
	}
}

// Enqueue records the intent to (re)publish one listing on one portal.
// The publication row flips to pending with its error cleared and a
// queued job is inserted, both in one transaction. A pair that already
// has a queued job is superseded in place by the job store.
func (e *Enqueuer) Enqueue(ctx context.Context, portalID, listingID int64, action domain.JobAction) (*domain.Job, error) {
	portal, err := e.portals.GetByID(ctx, portalID)
	if err != nil {
		return nil, fmt.Errorf("resolve portal %d: %w", portalID, err)
	}
	if portal.Method != domain.MethodAPI {
		return nil, fmt.Errorf("portal %s uses method %q, only api portals take jobs", portal.Slug, portal.Method)
	}

	var stored *domain.Job
	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.pubs.MarkPending(txCtx, portalID, listingID); err != nil {
			return fmt.Errorf("mark publication pending: %w", err)
		}

		stored, err = e.jobs.Enqueue(txCtx, &domain.Job{
			PortalID:    portalID,
			ListingID:   listingID,
			Action:      action,
			MaxAttempts: e.retry.MaxAttempts,
			NextRunAt:   e.now(),
		})
		if err != nil {
			return fmt.Errorf("enqueue job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("job enqueued",
		"job_id", stored.ID,
		"portal_id", portalID,
		"listing_id", listingID,
		"action", action,
	)

	return stored, nil
}
