package adapter

import (
	"context"
	"encoding/json"

	"portal_sync/internal/domain"
	"portal_sync/internal/export"
)

// Manual is the no-op adapter for portals integrated by hand. Push jobs
// against such a portal are misrouted work and fail terminally.
type Manual struct{}

func (Manual) Publish(context.Context, *export.Record) (string, error) {
	return "", domain.Terminal(domain.ErrManualPortal)
}

func (Manual) Update(context.Context, string, *export.Record) error {
	return domain.Terminal(domain.ErrManualPortal)
}

func (Manual) Remove(context.Context, string) error {
	return domain.Terminal(domain.ErrManualPortal)
}

func (Manual) TestConnection(context.Context) (json.RawMessage, error) {
	return nil, domain.Terminal(domain.ErrManualPortal)
}
