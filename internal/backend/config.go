package backend

import (
	"errors"
	"fmt"

	"ledger/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	identityType := IdentityType(appConfig.IdentityProvider)
	if !identityType.IsValid() {
		return Config{}, fmt.Errorf("invalid identity provider in config: %s", appConfig.IdentityProvider)
	}

	return Config{
		Identity: identityType,
		DBPath:   appConfig.LedgerDBPath,

		SupabaseURL: appConfig.SupabaseURL,
		SupabaseKey: appConfig.SupabaseKey,

		AMQPURL:        appConfig.AMQPURL,
		AMQPExchange:   appConfig.AMQPExchange,
		AMQPRoutingKey: appConfig.AMQPRoutingKey,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Identity.IsValid() {
		return fmt.Errorf("invalid identity provider: %s", c.Identity)
	}
	if c.DBPath == "" {
		return errors.New("ledger database path is required")
	}
	if c.Identity == SupabaseIdentity && (c.SupabaseURL == "" || c.SupabaseKey == "") {
		return errors.New("Supabase URL and key are required for the supabase identity provider")
	}
	return nil
}

// GetIdentityTypes returns all valid identity provider types
func GetIdentityTypes() []IdentityType {
	return []IdentityType{LocalIdentity, SupabaseIdentity}
}
