package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"portal_sync/internal/adapter"
	"portal_sync/internal/domain"
)

type PortalStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Portal, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Portal, error)
	Update(ctx context.Context, portal *domain.Portal) error
	UpdateFeedToken(ctx context.Context, id int64, token string) error
}

type ListingStore interface {
	GetAll(ctx context.Context) ([]domain.Listing, error)
	GetByID(ctx context.Context, id int64) (*domain.Listing, error)
}

type PublicationStore interface {
	Get(ctx context.Context, portalID, listingID int64) (*domain.Publication, error)
	MarkPending(ctx context.Context, portalID, listingID int64) error
	Update(ctx context.Context, pub *domain.Publication) error
	ListByPortal(ctx context.Context, portalID int64) ([]domain.Publication, error)
}

type JobStore interface {
	Enqueue(ctx context.Context, job *domain.Job) (*domain.Job, error)
	ClaimDue(ctx context.Context, limit int, now time.Time) ([]domain.Job, error)
	MarkCompleted(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, id int64, attempts int, nextRunAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id int64, attempts int, lastError string) error
}

type SyncLogStore interface {
	Append(ctx context.Context, entry *domain.SyncLogEntry) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AdapterFactory resolves the push adapter matching a portal's declared
// adapter type. Satisfied by adapter.Factory.
type AdapterFactory interface {
	ForPortal(portal *domain.Portal) (adapter.Adapter, error)
}

// Notifier broadcasts publication state changes to interested
// collaborators (admin UI, alerting). Optional: a nil Notifier disables
// the events without touching dispatch behavior.
type Notifier interface {
	PublicationChanged(ctx context.Context, portal *domain.Portal, pub *domain.Publication) error
	Close() error
}
