package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"portal_sync/internal/domain"
	"portal_sync/internal/export"
	"portal_sync/internal/service/mocks"
)

// stubAdapter records calls made by the dispatcher. The adapter factory
// mock hands it out per portal.
type stubAdapter struct {
	publishID  string
	publishErr error
	updateErr  error
	removeErr  error

	published []*export.Record
	updated   []string
	removed   []string
}

func (a *stubAdapter) Publish(_ context.Context, rec *export.Record) (string, error) {
	a.published = append(a.published, rec)
	return a.publishID, a.publishErr
}

func (a *stubAdapter) Update(_ context.Context, externalID string, _ *export.Record) error {
	a.updated = append(a.updated, externalID)
	return a.updateErr
}

func (a *stubAdapter) Remove(_ context.Context, externalID string) error {
	a.removed = append(a.removed, externalID)
	return a.removeErr
}

func (a *stubAdapter) TestConnection(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

type DispatcherTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	portals  *mocks.MockPortalStore
	listings *mocks.MockListingStore
	pubs     *mocks.MockPublicationStore
	jobs     *mocks.MockJobStore
	adapters *mocks.MockAdapterFactory
	notifier *mocks.MockNotifier
	adapter  *stubAdapter

	dispatcher *Dispatcher
	now        time.Time
}

func (s *DispatcherTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.portals = mocks.NewMockPortalStore(s.ctrl)
	s.listings = mocks.NewMockListingStore(s.ctrl)
	s.pubs = mocks.NewMockPublicationStore(s.ctrl)
	s.jobs = mocks.NewMockJobStore(s.ctrl)
	s.adapters = mocks.NewMockAdapterFactory(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.adapter = &stubAdapter{publishID: "ext-100"}

	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.dispatcher = NewDispatcher(
		s.portals,
		s.listings,
		s.pubs,
		s.jobs,
		s.adapters,
		s.notifier,
		domain.DefaultRetryPolicy,
		30*time.Second,
		logger,
	)
	s.dispatcher.now = func() time.Time { return s.now }
}

func (s *DispatcherTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestDispatcherTestSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}

func (s *DispatcherTestSuite) portal() *domain.Portal {
	return &domain.Portal{
		ID:          7,
		Slug:        "pushportal",
		Name:        "Push Portal",
		Active:      true,
		Method:      domain.MethodAPI,
		AdapterType: domain.AdapterStaticToken,
	}
}

func (s *DispatcherTestSuite) listing() *domain.Listing {
	return &domain.Listing{
		ID:          42,
		Title:       "Apartamento no centro",
		Description: "Dois quartos, uma vaga.",
		Price:       350000,
		Transaction: domain.TransactionSale,
		City:        "Curitiba",
		State:       "PR",
		Photos:      []string{"https://img.example.com/1.jpg"},
		Active:      true,
	}
}

func (s *DispatcherTestSuite) job(action domain.JobAction) domain.Job {
	return domain.Job{
		ID:          1,
		PortalID:    7,
		ListingID:   42,
		Action:      action,
		Status:      domain.JobProcessing,
		MaxAttempts: 5,
		NextRunAt:   s.now,
	}
}

func (s *DispatcherTestSuite) pending() *domain.Publication {
	return &domain.Publication{
		PortalID:  7,
		ListingID: 42,
		Status:    domain.PublicationPending,
	}
}

func (s *DispatcherTestSuite) TestDrain_PublishSuccess() {
	ctx := context.Background()
	portal := s.portal()
	pub := s.pending()

	s.jobs.EXPECT().ClaimDue(ctx, 10, s.now).Return([]domain.Job{s.job(domain.ActionPublish)}, nil)
	s.portals.EXPECT().GetByID(ctx, int64(7)).Return(portal, nil)
	s.pubs.EXPECT().Get(ctx, int64(7), int64(42)).Return(pub, nil)
	s.listings.EXPECT().GetByID(ctx, int64(42)).Return(s.listing(), nil)
	s.adapters.EXPECT().ForPortal(portal).Return(s.adapter, nil)

	s.pubs.EXPECT().Update(ctx, pub).Return(nil)
	s.jobs.EXPECT().MarkCompleted(ctx, int64(1)).Return(nil)
	s.notifier.EXPECT().PublicationChanged(ctx, portal, pub).Return(nil)

	stats, err := s.dispatcher.Drain(ctx, 10)

	s.NoError(err)
	s.Equal(1, stats.Claimed)
	s.Equal(1, stats.Succeeded)
	s.Equal(0, stats.Failed)
	s.Len(s.adapter.published, 1)
	s.Equal(domain.PublicationPublished, pub.Status)
	s.NotNil(pub.ExternalID)
	s.Equal("ext-100", *pub.ExternalID)
	s.NotEmpty(pub.PayloadSnapshot)
	s.Nil(pub.LastError)
}

func (s *DispatcherTestSuite) TestDrain_RepublishUsesUpdate() {
	ctx := context.Background()
	portal := s.portal()
	externalID := "ext-55"
	pub := s.pending()
	pub.ExternalID = &externalID

	s.jobs.EXPECT().ClaimDue(ctx, 10, s.now).Return([]domain.Job{s.job(domain.ActionPublish)}, nil)
	s.portals.EXPECT().GetByID(ctx, int64(7)).Return(portal, nil)
	s.pubs.EXPECT().Get(ctx, int64(7), int64(42)).Return(pub, nil)
	s.listings.EXPECT().GetByID(ctx, int64(42)).Return(s.listing(), nil)
	s.adapters.EXPECT().ForPortal(portal).Return(s.adapter, nil)
	s.pubs.EXPECT().Update(ctx, pub).Return(nil)
	s.jobs.EXPECT().MarkCompleted(ctx, int64(1)).Return(nil)
	s.notifier.EXPECT().PublicationChanged(ctx, portal, pub).Return(nil)

	stats, err := s.dispatcher.Drain(ctx, 10)

	s.NoError(err)
	s.Equal(1, stats.Succeeded)
	s.Empty(s.adapter.published, "a placed listing must not be created twice")
	s.Equal([]string{"ext-55"}, s.adapter.updated)
	s.Equal("ext-55", *pub.ExternalID)
}

func (s *DispatcherTestSuite) TestDrain_RetryableFailureReschedules() {
	ctx := context.Background()
	portal := s.portal()
	pub := s.pending()
	s.adapter.publishErr = errors.New("post /v1/properties: context deadline exceeded")

	s.jobs.EXPECT().ClaimDue(ctx, 10, s.now).Return([]domain.Job{s.job(domain.ActionPublish)}, nil)
	s.portals.EXPECT().GetByID(ctx, int64(7)).Return(portal, nil)
	s.pubs.EXPECT().Get(ctx, int64(7), int64(42)).Return(pub, nil)
	s.listings.EXPECT().GetByID(ctx, int64(42)).Return(s.listing(), nil)
	s.adapters.EXPECT().ForPortal(portal).Return(s.adapter, nil)

	s.pubs.EXPECT().Update(ctx, pub).Return(nil)
	s.jobs.EXPECT().
		Reschedule(ctx, int64(1), 1, s.now.Add(30*time.Second), s.adapter.publishErr.Error()).
		Return(nil)
	s.notifier.EXPECT().PublicationChanged(ctx, portal, pub).Return(nil)

	stats, err := s.dispatcher.Drain(ctx, 10)

	s.NoError(err)
	s.Equal(1, stats.Rescheduled)
	s.Equal(0, stats.Failed)
	s.Equal(domain.PublicationError, pub.Status)
	s.NotNil(pub.LastError)
}

func (s *DispatcherTestSuite) TestDrain_BackoffGrowsWithAttempts() {
	ctx := context.Background()
	portal := s.portal()
	pub := s.pending()
	s.adapter.publishErr = errors.New("portal api is down")

	job := s.job(domain.ActionPublish)
	job.Attempts = 2

	s.jobs.EXPECT().ClaimDue(ctx, 10, s.now).Return([]domain.Job{job}, nil)
	s.portals.EXPECT().GetByID(ctx, int64(7)).Return(portal, nil)
	s.pubs.EXPECT().Get(ctx, int64(7), int64(42)).Return(pub, nil)
	s.listings.EXPECT().GetByID(ctx, int64(42)).Return(s.listing(), nil)
	s.adapters.EXPECT().ForPortal(portal).Return(s.adapter, nil)
	s.pubs.EXPECT().Update(ctx, pub).Return(nil)

	// Third attempt: 30s doubled twice.
	s.jobs.EXPECT().
		Reschedule(ctx, int64(1), 3, s.now.Add(2*time.Minute), gomock.Any()).
		Return(nil)
	s.notifier.EXPECT().PublicationChanged(ctx, portal, pub).Return(nil)

	_, err := s.dispatcher.Drain(ctx, 10)
	s.NoError(err)
}

func (s *DispatcherTestSuite) TestDrain_TerminalFailureFailsImmediately() {
	ctx := context.Background()
	portal := s.portal()
	pub := s.pending()
	s.adapter.publishErr = domain.Terminalf("status 422: invalid category")

	s.jobs.EXPECT().ClaimDue(ctx, 10, s.now).Return([]domain.Job{s.job(domain.ActionPublish)}, nil)
	s.portals.EXPECT().GetByID(ctx, int64(7)).Return(portal, nil)
	s.pubs.EXPECT().Get(ctx, int64(7), int64(42)).Return(pub, nil)
	s.listings.EXPECT().GetByID(ctx, int64(42)).Return(s.listing(), nil)
	s.adapters.EXPECT().ForPortal(portal).Return(s.adapter, nil)

	s.pubs.EXPECT().Update(ctx, pub).Return(nil)
	s.jobs.EXPECT().MarkFailed(ctx, int64(1), 1, s.adapter.publishErr.Error()).Return(nil)
	s.notifier.EXPECT().PublicationChanged(ctx, portal, pub).Return(nil)

	stats, err := s.dispatcher.Drain(ctx, 10)

	s.NoError(err)
	s.Equal(1, stats.Failed)
	s.Equal(0, stats.Rescheduled)
	s.Equal(domain.PublicationError, pub.Status)
}

func (s *DispatcherTestSuite) TestDrain_ExhaustedRetriesFail() {
	ctx := context.Background()
	portal := s.portal()
	pub := s.pending()
	s.adapter.publishErr = errors.New("status 503")

	job := s.job(domain.ActionPublish)
	job.Attempts = 4

	s.jobs.EXPECT().ClaimDue(ctx, 10, s.now).Return([]domain.Job{job}, nil)
	s.portals.EXPECT().GetByID(ctx, int64(7)).Return(portal, nil)
	s.pubs.EXPECT().Get(ctx, int64(7), int64(42)).Return(pub, nil)
	s.listings.EXPECT().GetByID(ctx, int64(42)).Return(s.listing(), nil)
	s.adapters.EXPECT().ForPortal(portal).Return(s.adapter, nil)

	s.pubs.EXPECT().Update(ctx, pub).Return(nil)
	s.jobs.EXPECT().MarkFailed(ctx, int64(1), 5, "status 503").Return(nil)
	s.notifier.EXPECT().PublicationChanged(ctx, portal, pub).Return(nil)

	stats, err := s.dispatcher.Drain(ctx, 10)

	s.NoError(err)
	s.Equal(1, stats.Failed)
}

func (s *DispatcherTestSuite) TestDrain_RemoveDisablesPublication() {
	ctx := context.Background()
	portal := s.portal()
	externalID := "ext-9"
	pub := s.pending()
	pub.Status = domain.PublicationPublished
	pub.ExternalID = &externalID

	s.jobs.EXPECT().ClaimDue(ctx, 10, s.now).Return([]domain.Job{s.job(domain.ActionRemove)}, nil)
	s.portals.EXPECT().GetByID(ctx, int64(7)).Return(portal, nil)
	s.pubs.EXPECT().Get(ctx, int64(7), int64(42)).Return(pub, nil)
	s.adapters.EXPECT().ForPortal(portal).Return(s.adapter, nil)
	s.pubs.EXPECT().Update(ctx, pub).Return(nil)
	s.jobs.EXPECT().MarkCompleted(ctx, int64(1)).Return(nil)
	s.notifier.EXPECT().PublicationChanged(ctx, portal, pub).Return(nil)

	stats, err := s.dispatcher.Drain(ctx, 10)

	s.NoError(err)
	s.Equal(1, stats.Succeeded)
	s.Equal([]string{"ext-9"}, s.adapter.removed)
	s.Equal(domain.PublicationDisabled, pub.Status)
}

func (s *DispatcherTestSuite) TestDrain_PauseWithoutRemotePlacement() {
	ctx := context.Background()
	portal := s.portal()
	pub := s.pending()

	s.jobs.EXPECT().ClaimDue(ctx, 10, s.now).Return([]domain.Job{s.job(domain.ActionPause)}, nil)
	s.portals.EXPECT().GetByID(ctx, int64(7)).Return(portal, nil)
	s.pubs.EXPECT().Get(ctx, int64(7), int64(42)).Return(pub, nil)
	s.adapters.EXPECT().ForPortal(portal).Return(s.adapter, nil)
	s.pubs.EXPECT().Update(ctx, pub).Return(nil)
	s.jobs.EXPECT().MarkCompleted(ctx, int64(1)).Return(nil)
	s.notifier.EXPECT().PublicationChanged(ctx, portal, pub).Return(nil)

	stats, err := s.dispatcher.Drain(ctx, 10)

	s.NoError(err)
	s.Equal(1, stats.Succeeded)
	s.Empty(s.adapter.removed, "nothing placed remotely, nothing to remove")
	s.Equal(domain.PublicationNotPublished, pub.Status)
}

func (s *DispatcherTestSuite) TestDrain_UnchangedPayloadIsNoOp() {
	ctx := context.Background()
	portal := s.portal()
	listing := s.listing()

	rec, err := export.MapListing(listing, portal)
	s.Require().NoError(err)
	payload, err := json.Marshal(rec)
	s.Require().NoError(err)

	externalID := "ext-1"
	pub := s.pending()
	pub.Status = domain.PublicationPublished
	pub.ExternalID = &externalID
	pub.PayloadSnapshot = payload

	s.jobs.EXPECT().ClaimDue(ctx, 10, s.now).Return([]domain.Job{s.job(domain.ActionUpdate)}, nil)
	s.portals.EXPECT().GetByID(ctx, int64(7)).Return(portal, nil)
	s.pubs.EXPECT().Get(ctx, int64(7), int64(42)).Return(pub, nil)
	s.listings.EXPECT().GetByID(ctx, int64(42)).Return(listing, nil)
	s.jobs.EXPECT().MarkCompleted(ctx, int64(1)).Return(nil)

	stats, err := s.dispatcher.Drain(ctx, 10)

	s.NoError(err)
	s.Equal(1, stats.NoOps)
	s.Equal(1, stats.Succeeded)
	s.Empty(s.adapter.published)
	s.Empty(s.adapter.updated)
}

func (s *DispatcherTestSuite) TestDrain_InactivePortalFailsTerminally() {
	ctx := context.Background()
	portal := s.portal()
	portal.Active = false

	s.jobs.EXPECT().ClaimDue(ctx, 10, s.now).Return([]domain.Job{s.job(domain.ActionPublish)}, nil)
	s.portals.EXPECT().GetByID(ctx, int64(7)).Return(portal, nil)
	s.jobs.EXPECT().MarkFailed(ctx, int64(1), 1, gomock.Any()).Return(nil)

	stats, err := s.dispatcher.Drain(ctx, 10)

	s.NoError(err)
	s.Equal(1, stats.Failed)
}

func (s *DispatcherTestSuite) TestDrain_MissingListingFailsTerminally() {
	ctx := context.Background()
	portal := s.portal()
	pub := s.pending()

	s.jobs.EXPECT().ClaimDue(ctx, 10, s.now).Return([]domain.Job{s.job(domain.ActionPublish)}, nil)
	s.portals.EXPECT().GetByID(ctx, int64(7)).Return(portal, nil)
	s.pubs.EXPECT().Get(ctx, int64(7), int64(42)).Return(pub, nil)
	s.listings.EXPECT().GetByID(ctx, int64(42)).Return(nil, domain.ErrNotFound)

	s.pubs.EXPECT().Update(ctx, pub).Return(nil)
	s.jobs.EXPECT().MarkFailed(ctx, int64(1), 1, gomock.Any()).Return(nil)
	s.notifier.EXPECT().PublicationChanged(ctx, portal, pub).Return(nil)

	stats, err := s.dispatcher.Drain(ctx, 10)

	s.NoError(err)
	s.Equal(1, stats.Failed)
	s.Equal(domain.PublicationError, pub.Status)
}

func (s *DispatcherTestSuite) TestDrain_ClaimErrorSurfaces() {
	ctx := context.Background()

	s.jobs.EXPECT().ClaimDue(ctx, 10, s.now).Return(nil, errors.New("connection refused"))

	stats, err := s.dispatcher.Drain(ctx, 10)

	s.Error(err)
	s.Nil(stats)
}
