package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

type Config struct {
	// Database
	LedgerDBPath string

	// Logging
	LogLevel string

	// Identity
	IdentityProvider string
	SupabaseURL      string
	SupabaseKey      string

	// AMQP (optional)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Google Sheets export (optional)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Bills
	BillDueWindow time.Duration

	// parseErrors holds env values Load could not parse.
	parseErrors []string
}

var (
	validIdentityProviders = []string{"local", "supabase"}
	validLogLevels         = []string{"debug", "info", "warn", "error"}
)

func Load() *Config {
	c := &Config{
		LedgerDBPath: getEnv("LEDGER_DB_PATH", "./data/ledger.db"),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),

		IdentityProvider: strings.ToLower(getEnv("IDENTITY_PROVIDER", "local")),
		SupabaseURL:      getEnv("SUPABASE_URL", ""),
		SupabaseKey:      getEnv("SUPABASE_KEY", ""),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "ledger"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "ledger_events"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}
	c.BillDueWindow = c.envDuration("BILL_DUE_WINDOW", 7*24*time.Hour)
	return c
}

// Validate reports every problem of the configuration in one error.
func (c *Config) Validate() error {
	errors := slices.Clone(c.parseErrors)

	if c.LedgerDBPath == "" {
		errors = append(errors, "ledger database path cannot be empty")
	} else if dir := filepath.Dir(c.LedgerDBPath); dir != "." && dir != "" {
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			errors = append(errors, fmt.Sprintf("ledger database directory '%s' is not a directory", dir))
		}
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	if !slices.Contains(validIdentityProviders, c.IdentityProvider) {
		errors = append(errors, fmt.Sprintf("invalid identity provider '%s': must be one of %v", c.IdentityProvider, validIdentityProviders))
	}
	if c.IdentityProvider == "supabase" {
		if c.SupabaseURL == "" {
			errors = append(errors, "SUPABASE_URL is required when using the supabase identity provider")
		} else if u, err := url.Parse(c.SupabaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid Supabase URL '%s': must be http or https", c.SupabaseURL))
		}
		if c.SupabaseKey == "" {
			errors = append(errors, "SUPABASE_KEY is required when using the supabase identity provider")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.BillDueWindow < 0 {
		errors = append(errors, fmt.Sprintf("invalid bill due window %v: must not be negative", c.BillDueWindow))
	} else if c.BillDueWindow > 366*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid bill due window %v: must be at most one year", c.BillDueWindow))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ExportEnabled reports whether a Google Sheets target is configured.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envDuration keeps the default for a malformed value and records the
// problem for Validate.
func (c *Config) envDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("invalid %s '%s': not a duration like 72h", key, value))
		return defaultValue
	}
	return d
}
