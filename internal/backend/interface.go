package backend

import (
	"context"

	"ledger/internal/amqp"
	"ledger/internal/identity"
	"ledger/internal/services"
	"ledger/internal/sheets"
	"ledger/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// App is the wired set of components a command works with.
type App struct {
	Store      *storage.SQLiteRepository
	Identity   identity.Provider
	Ledger     *services.LedgerService
	Aggregates *services.AggregationService
	Reporting  *services.ReportingService
	// Events is nil when no broker is configured or reachable.
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Factory builds the application from configuration.
type Factory interface {
	CreateApp(ctx context.Context, config Config) (*App, error)
	CreateExporter(ctx context.Context, config Config) (sheets.ExpenseExporter, error)
}

// Config holds what the factory needs to wire the application.
type Config struct {
	Identity IdentityType
	DBPath   string

	// Supabase specific
	SupabaseURL string
	SupabaseKey string

	// Event bus, optional
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Google Sheets export, optional
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// IdentityType selects the identity provider.
type IdentityType string

const (
	LocalIdentity    IdentityType = "local"
	SupabaseIdentity IdentityType = "supabase"
)

func (t IdentityType) String() string {
	return string(t)
}

func (t IdentityType) IsValid() bool {
	switch t {
	case LocalIdentity, SupabaseIdentity:
		return true
	default:
		return false
	}
}
