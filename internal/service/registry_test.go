package service

import (
	"context"
	"encoding/hex"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"portal_sync/internal/domain"
	"portal_sync/internal/service/mocks"
)

type RegistryTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	portals  *mocks.MockPortalStore
	registry *Registry
}

func (s *RegistryTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.portals = mocks.NewMockPortalStore(s.ctrl)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.registry = NewRegistry(s.portals, "https://listings.example.com", logger)
}

func (s *RegistryTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (s *RegistryTestSuite) portal() *domain.Portal {
	return &domain.Portal{
		ID:          3,
		Slug:        "feedportal",
		Name:        "Feed Portal",
		Active:      true,
		Method:      domain.MethodFeed,
		FeedFormat:  domain.FormatXML,
		FeedToken:   "old-token",
		AdapterType: domain.AdapterNone,
	}
}

func (s *RegistryTestSuite) TestUpdate_AppliesPatch() {
	ctx := context.Background()
	name := "Renamed Portal"
	format := domain.FormatJSON
	cfg := domain.PortalConfig{
		Filters:    domain.FilterRules{SaleOnly: true, ExcludeNoPhotos: true},
		PhotoLimit: 10,
	}

	s.portals.EXPECT().GetByID(ctx, int64(3)).Return(s.portal(), nil)
	s.portals.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, portal *domain.Portal) error {
			s.Equal("Renamed Portal", portal.Name)
			s.Equal(domain.FormatJSON, portal.FeedFormat)
			s.Equal(10, portal.Config.PhotoLimit)
			return nil
		},
	)

	updated, err := s.registry.Update(ctx, 3, &domain.PortalPatch{
		Name:       &name,
		FeedFormat: &format,
		Config:     &cfg,
	})

	s.Require().NoError(err)
	s.Equal("Renamed Portal", updated.Name)
	s.True(updated.Config.Filters.SaleOnly)
}

func (s *RegistryTestSuite) TestUpdate_CredentialsMustMatchAdapterType() {
	ctx := context.Background()
	adapterType := domain.AdapterOAuth

	s.portals.EXPECT().GetByID(ctx, int64(3)).Return(s.portal(), nil)

	updated, err := s.registry.Update(ctx, 3, &domain.PortalPatch{
		AdapterType: &adapterType,
	})

	s.Nil(updated)
	s.ErrorContains(err, "requires oauth credentials")
}

func (s *RegistryTestSuite) TestUpdate_ValidCredentialsAccepted() {
	ctx := context.Background()
	adapterType := domain.AdapterStaticToken
	cfg := domain.PortalConfig{
		Credentials: domain.Credentials{
			Static: &domain.StaticCredentials{
				ClientID:    "client-1",
				Token:       "tok",
				ShowAddress: true,
			},
		},
	}

	s.portals.EXPECT().GetByID(ctx, int64(3)).Return(s.portal(), nil)
	s.portals.EXPECT().Update(ctx, gomock.Any()).Return(nil)

	updated, err := s.registry.Update(ctx, 3, &domain.PortalPatch{
		AdapterType: &adapterType,
		Config:      &cfg,
	})

	s.Require().NoError(err)
	s.Equal(domain.AdapterStaticToken, updated.AdapterType)
}

func (s *RegistryTestSuite) TestRotateToken() {
	ctx := context.Background()

	var stored string
	s.portals.EXPECT().UpdateFeedToken(ctx, int64(3), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ int64, token string) error {
			stored = token
			return nil
		},
	)

	token, err := s.registry.RotateToken(ctx, 3)

	s.Require().NoError(err)
	s.Equal(stored, token)
	s.NotEqual("old-token", token)
	s.Len(token, 2*feedTokenBytes)
	_, err = hex.DecodeString(token)
	s.NoError(err)
}

func (s *RegistryTestSuite) TestRotateToken_UnknownPortal() {
	ctx := context.Background()

	s.portals.EXPECT().UpdateFeedToken(ctx, int64(99), gomock.Any()).Return(domain.ErrNotFound)

	token, err := s.registry.RotateToken(ctx, 99)

	s.Empty(token)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *RegistryTestSuite) TestFeedURL() {
	portal := s.portal()
	url := FeedURL("https://listings.example.com", portal)
	s.Equal("https://listings.example.com/feed?portal=feedportal&token=old-token", url)
}
