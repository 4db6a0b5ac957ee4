package service

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"portal_sync/internal/domain"
)

// portalConfigSchema guards the portal config document on registry
// updates, so a typo in a filter rule or credential key is rejected
// instead of silently ignored by the decoder.
const portalConfigSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"filters": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"active_only": {"type": "boolean"},
				"sale_only": {"type": "boolean"},
				"rent_only": {"type": "boolean"},
				"featured_only": {"type": "boolean"},
				"exclude_no_photos": {"type": "boolean"},
				"exclude_no_address": {"type": "boolean"},
				"categories": {"type": "array", "items": {"type": "integer"}}
			}
		},
		"field_overrides": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		},
		"photo_limit": {"type": "integer", "minimum": 1},
		"price_on_request": {"type": "boolean"},
		"strip_html": {"type": "boolean"},
		"credentials": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"oauth": {
					"type": "object",
					"additionalProperties": false,
					"required": ["client_id", "client_secret", "refresh_token"],
					"properties": {
						"client_id": {"type": "string", "minLength": 1},
						"client_secret": {"type": "string", "minLength": 1},
						"access_token": {"type": "string"},
						"refresh_token": {"type": "string", "minLength": 1},
						"contact_phone": {"type": "string"}
					}
				},
				"static": {
					"type": "object",
					"additionalProperties": false,
					"required": ["client_id", "token"],
					"properties": {
						"client_id": {"type": "string", "minLength": 1},
						"token": {"type": "string", "minLength": 1},
						"show_address": {"type": "boolean"},
						"show_street_number": {"type": "boolean"}
					}
				}
			}
		}
	}
}`

var compiledConfigSchema = jsonschema.MustCompileString("portal-config.json", portalConfigSchema)

// validatePortalConfig checks the document against the schema and the
// credential shape against the portal's adapter type.
func validatePortalConfig(adapterType domain.AdapterType, cfg *domain.PortalConfig) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode portal config: %w", err)
	}

	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("portal config is not valid JSON: %w", err)
	}
	if err := compiledConfigSchema.Validate(v); err != nil {
		return fmt.Errorf("portal config schema validation failed: %w", err)
	}

	switch adapterType {
	case domain.AdapterOAuth:
		if cfg.Credentials.OAuth == nil {
			return fmt.Errorf("adapter type %q requires oauth credentials", adapterType)
		}
	case domain.AdapterStaticToken:
		if cfg.Credentials.Static == nil {
			return fmt.Errorf("adapter type %q requires static credentials", adapterType)
		}
	}

	return nil
}
