package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"portal_sync/internal/domain"
	"portal_sync/internal/export"
)

// Adapter is the uniform capability set over one portal's push API.
// Implementations translate the export record into the remote wire
// format and map remote failures onto the retryable/terminal taxonomy.
// Adapters never touch the publication ledger; the dispatcher commits
// all state after the call returns.
type Adapter interface {
	// Publish creates the listing remotely and returns the remote id.
	Publish(ctx context.Context, rec *export.Record) (string, error)
	// Update replaces the remote listing identified by externalID.
	Update(ctx context.Context, externalID string, rec *export.Record) error
	// Remove deletes the remote listing identified by externalID.
	Remove(ctx context.Context, externalID string) error
	// TestConnection performs a lightweight authenticated call that
	// mutates nothing, returning the remote account document.
	TestConnection(ctx context.Context) (json.RawMessage, error)
}

// TokenSaver persists a refreshed OAuth access token so later dispatch
// runs do not repeat the refresh. A nil saver keeps the token in memory
// for the lifetime of the adapter only.
type TokenSaver interface {
	SaveAccessToken(ctx context.Context, portalID int64, accessToken string) error
}

const (
	defaultOAuthBaseURL  = "https://apps.olx.com.br"
	defaultStaticBaseURL = "https://api.chavesnamao.com.br"
)

type Config struct {
	Timeout       time.Duration
	OAuthBaseURL  string
	StaticBaseURL string
}

// Factory builds the adapter matching a portal's declared adapter type.
// The type is an explicit discriminator on the portal row; slugs are
// never string-matched here.
type Factory struct {
	client        *http.Client
	oauthBaseURL  string
	staticBaseURL string
	tokens        TokenSaver
	logger        *slog.Logger
}

func NewFactory(cfg Config, tokens TokenSaver, logger *slog.Logger) *Factory {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.OAuthBaseURL == "" {
		cfg.OAuthBaseURL = defaultOAuthBaseURL
	}
	if cfg.StaticBaseURL == "" {
		cfg.StaticBaseURL = defaultStaticBaseURL
	}
	return &Factory{
		client:        &http.Client{Timeout: cfg.Timeout},
		oauthBaseURL:  cfg.OAuthBaseURL,
		staticBaseURL: cfg.StaticBaseURL,
		tokens:        tokens,
		logger:        logger,
	}
}

func (f *Factory) ForPortal(portal *domain.Portal) (Adapter, error) {
	switch portal.AdapterType {
	case domain.AdapterOAuth:
		creds := portal.Config.Credentials.OAuth
		if creds == nil {
			return nil, fmt.Errorf("portal %s: oauth credentials missing", portal.Slug)
		}
		return NewOAuth(f.oauthBaseURL, f.client, portal.ID, *creds, f.tokens, f.logger), nil
	case domain.AdapterStaticToken:
		creds := portal.Config.Credentials.Static
		if creds == nil {
			return nil, fmt.Errorf("portal %s: static credentials missing", portal.Slug)
		}
		return NewStaticToken(f.staticBaseURL, f.client, *creds, f.logger), nil
	case domain.AdapterNone:
		return Manual{}, nil
	default:
		return nil, fmt.Errorf("portal %s: unknown adapter type %q", portal.Slug, portal.AdapterType)
	}
}
