package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"portal_sync/internal/domain"
	"portal_sync/internal/export"
)

// Dispatcher drains the job queue. It owns every write to the
// publication ledger: adapters only talk to remote APIs, and ledger
// state is committed here after the call returns, so a crashed or failed
// call never leaves a half-updated row. Drain is re-entrant; the
// store's atomic claim partitions the due set between overlapping calls.
type Dispatcher struct {
	portals     PortalStore
	listings    ListingStore
	pubs        PublicationStore
	jobs        JobStore
	adapters    AdapterFactory
	notifier    Notifier
	retry       domain.RetryPolicy
	callTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

func NewDispatcher(
	portals PortalStore,
	listings ListingStore,
	pubs PublicationStore,
	jobs JobStore,
	adapters AdapterFactory,
	notifier Notifier,
	retry domain.RetryPolicy,
	callTimeout time.Duration,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		portals:     portals,
		listings:    listings,
		pubs:        pubs,
		jobs:        jobs,
		adapters:    adapters,
		notifier:    notifier,
		retry:       retry,
		callTimeout: callTimeout,
		now:         time.Now,
		logger:      logger.With("component", "dispatcher"),
	}
}

// Drain claims up to batchSize due jobs and processes each to a final
// queue transition. Job-level failures are absorbed into the stats; the
// returned error covers only the claim itself.
func (d *Dispatcher) Drain(ctx context.Context, batchSize int) (*domain.DispatchStats, error) {
	start := d.now()

	jobs, err := d.jobs.ClaimDue(ctx, batchSize, start)
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}

	stats := &domain.DispatchStats{Claimed: len(jobs)}
	for i := range jobs {
		d.process(ctx, &jobs[i], stats)
	}
	stats.Duration = time.Since(start)

	if stats.Claimed > 0 {
		d.logger.Info("queue drained",
			"claimed", stats.Claimed,
			"succeeded", stats.Succeeded,
			"rescheduled", stats.Rescheduled,
			"failed", stats.Failed,
			"noops", stats.NoOps,
			"duration", stats.Duration,
		)
	}

	return stats, nil
}

func (d *Dispatcher) process(ctx context.Context, job *domain.Job, stats *domain.DispatchStats) {
	logger := d.logger.With("job_id", job.ID, "portal_id", job.PortalID, "listing_id", job.ListingID, "action", job.Action)

	portal, pub, rec, payload, err := d.prepare(ctx, job)
	if err != nil {
		d.settleFailure(ctx, job, portal, pub, err, stats, logger)
		return
	}

	// Redelivered work whose payload already sits on the remote side is
	// completed without a remote call.
	if isNoOp(job.Action, pub, payload) {
		if err := d.jobs.MarkCompleted(ctx, job.ID); err != nil {
			logger.Error("failed to complete no-op job", "error", err)
			stats.Failed++
			return
		}
		logger.Info("job is a remote no-op, completed without call")
		stats.NoOps++
		stats.Succeeded++
		return
	}

	externalID, err := d.callAdapter(ctx, portal, job.Action, pub, rec)
	if err != nil {
		d.settleFailure(ctx, job, portal, pub, err, stats, logger)
		return
	}

	d.settleSuccess(ctx, job, portal, pub, externalID, payload, stats, logger)
}

// prepare resolves everything the adapter call needs. Any failure here
// is wrapped terminal when it cannot heal by retrying.
func (d *Dispatcher) prepare(ctx context.Context, job *domain.Job) (*domain.Portal, *domain.Publication, *export.Record, []byte, error) {
	portal, err := d.portals.GetByID(ctx, job.PortalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, nil, nil, domain.Terminalf("portal %d not found", job.PortalID)
		}
		return nil, nil, nil, nil, fmt.Errorf("resolve portal %d: %w", job.PortalID, err)
	}
	if !portal.Active {
		return portal, nil, nil, nil, domain.Terminalf("portal %s is inactive", portal.Slug)
	}
	if portal.Method != domain.MethodAPI {
		return portal, nil, nil, nil, domain.Terminalf("portal %s uses method %q", portal.Slug, portal.Method)
	}

	pub, err := d.pubs.Get(ctx, job.PortalID, job.ListingID)
	if errors.Is(err, domain.ErrNotFound) {
		// Jobs normally arrive through Enqueue which creates the row;
		// tolerate producers that insert jobs directly.
		if err := d.pubs.MarkPending(ctx, job.PortalID, job.ListingID); err != nil {
			return portal, nil, nil, nil, fmt.Errorf("create publication row: %w", err)
		}
		pub, err = d.pubs.Get(ctx, job.PortalID, job.ListingID)
	}
	if err != nil {
		return portal, nil, nil, nil, fmt.Errorf("resolve publication: %w", err)
	}

	if job.Action != domain.ActionPublish && job.Action != domain.ActionUpdate {
		return portal, pub, nil, nil, nil
	}

	listing, err := d.listings.GetByID(ctx, job.ListingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return portal, pub, nil, nil, domain.Terminalf("listing %d no longer exists", job.ListingID)
		}
		return portal, pub, nil, nil, fmt.Errorf("load listing %d: %w", job.ListingID, err)
	}

	rec, err := export.MapListing(listing, portal)
	if err != nil {
		return portal, pub, nil, nil, err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return portal, pub, nil, nil, domain.Terminalf("encode payload: %w", err)
	}

	return portal, pub, rec, payload, nil
}

func isNoOp(action domain.JobAction, pub *domain.Publication, payload []byte) bool {
	if action != domain.ActionPublish && action != domain.ActionUpdate {
		return false
	}
	return pub.Status == domain.PublicationPublished &&
		pub.ExternalID != nil &&
		pub.SnapshotEquals(payload)
}

// callAdapter runs the remote call under the per-call timeout. It
// returns the external id for create calls, or the one already stored.
func (d *Dispatcher) callAdapter(ctx context.Context, portal *domain.Portal, action domain.JobAction, pub *domain.Publication, rec *export.Record) (string, error) {
	ad, err := d.adapters.ForPortal(portal)
	if err != nil {
		return "", domain.Terminal(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	switch action {
	case domain.ActionPublish:
		// Republishing an already-placed listing must not create a
		// second remote copy.
		if pub.ExternalID != nil {
			return *pub.ExternalID, ad.Update(callCtx, *pub.ExternalID, rec)
		}
		return ad.Publish(callCtx, rec)

	case domain.ActionUpdate:
		if pub.ExternalID == nil {
			return ad.Publish(callCtx, rec)
		}
		return *pub.ExternalID, ad.Update(callCtx, *pub.ExternalID, rec)

	case domain.ActionPause, domain.ActionRemove:
		if pub.ExternalID == nil {
			// Nothing was ever placed remotely; removal is trivially done.
			return "", nil
		}
		return *pub.ExternalID, ad.Remove(callCtx, *pub.ExternalID)

	default:
		return "", domain.Terminalf("unknown job action %q", action)
	}
}

func (d *Dispatcher) settleSuccess(ctx context.Context, job *domain.Job, portal *domain.Portal, pub *domain.Publication, externalID string, payload []byte, stats *domain.DispatchStats, logger *slog.Logger) {
	now := d.now()

	switch job.Action {
	case domain.ActionRemove:
		pub.Status = domain.PublicationDisabled
	case domain.ActionPause:
		pub.Status = domain.PublicationNotPublished
	default:
		pub.Status = domain.PublicationPublished
		pub.PayloadSnapshot = payload
		if externalID != "" {
			pub.ExternalID = &externalID
		}
	}
	pub.LastError = nil
	pub.LastAttemptAt = &now

	if err := d.pubs.Update(ctx, pub); err != nil {
		logger.Error("failed to update publication after success", "error", err)
		stats.Failed++
		return
	}
	if err := d.jobs.MarkCompleted(ctx, job.ID); err != nil {
		logger.Error("failed to complete job", "error", err)
		stats.Failed++
		return
	}

	d.notify(ctx, portal, pub, logger)
	logger.Info("job completed", "publication_status", pub.Status)
	stats.Succeeded++
}

func (d *Dispatcher) settleFailure(ctx context.Context, job *domain.Job, portal *domain.Portal, pub *domain.Publication, callErr error, stats *domain.DispatchStats, logger *slog.Logger) {
	now := d.now()
	attempts := job.Attempts + 1
	errMsg := callErr.Error()

	if pub != nil {
		pub.Status = domain.PublicationError
		pub.LastError = &errMsg
		pub.LastAttemptAt = &now
		if err := d.pubs.Update(ctx, pub); err != nil {
			logger.Error("failed to update publication after failure", "error", err)
		}
	}

	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = d.retry.MaxAttempts
	}

	terminal := domain.IsTerminal(callErr)
	exhausted := attempts >= maxAttempts

	switch {
	case terminal:
		logger.Warn("job failed terminally", "error", callErr, "attempts", attempts)
		if err := d.jobs.MarkFailed(ctx, job.ID, attempts, errMsg); err != nil {
			logger.Error("failed to mark job failed", "error", err)
		}
		stats.Failed++

	case exhausted:
		logger.Warn("job exhausted retries", "error", callErr, "attempts", attempts, "max_attempts", maxAttempts)
		if err := d.jobs.MarkFailed(ctx, job.ID, attempts, errMsg); err != nil {
			logger.Error("failed to mark job failed", "error", err)
		}
		stats.Failed++

	default:
		nextRunAt := now.Add(d.retry.Backoff(attempts))
		logger.Warn("job failed, rescheduling",
			"error", callErr,
			"attempts", attempts,
			"next_run_at", nextRunAt,
		)
		if err := d.jobs.Reschedule(ctx, job.ID, attempts, nextRunAt, errMsg); err != nil {
			logger.Error("failed to reschedule job", "error", err)
		}
		stats.Rescheduled++
	}

	if pub != nil {
		d.notify(ctx, portal, pub, logger)
	}
}

func (d *Dispatcher) notify(ctx context.Context, portal *domain.Portal, pub *domain.Publication, logger *slog.Logger) {
	if d.notifier == nil || portal == nil {
		return
	}
	if err := d.notifier.PublicationChanged(ctx, portal, pub); err != nil {
		// Events are best-effort; dispatch state is already committed.
		logger.Warn("failed to publish publication event", "error", err)
	}
}
