package backend

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/amqp"
	"ledger/internal/identity"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/sheets"
	gsheet "ledger/internal/sheets/google"
	"ledger/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateApp opens the store, picks the identity provider and connects the
// optional event publisher.
func (f *DefaultFactory) CreateApp(ctx context.Context, config Config) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := storage.NewSQLiteRepository(config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	provider, err := f.createIdentity(config, repo)
	if err != nil {
		repo.Close()
		return nil, err
	}

	events := f.createEvents(ctx, config)
	var publisher services.EventPublisher
	if events != nil {
		publisher = events
	}

	ledger := services.NewLedgerService(repo, publisher)
	aggregates := services.NewAggregationService(repo)

	f.logger.DebugContext(ctx, "Initialized ledger backend",
		log.FieldOperation, log.OpStartup,
		"db_path", config.DBPath,
		"identity", config.Identity,
		"amqp_enabled", events != nil)

	return &App{
		Store:      repo,
		Identity:   provider,
		Ledger:     ledger,
		Aggregates: aggregates,
		Reporting:  services.NewReportingService(aggregates),
		Events:     events,
		Cleanup: func() error {
			return errors.Join(ledger.Close(), repo.Close())
		},
	}, nil
}

func (f *DefaultFactory) createIdentity(config Config, repo *storage.SQLiteRepository) (identity.Provider, error) {
	switch config.Identity {
	case LocalIdentity:
		return identity.NewLocal(repo), nil
	case SupabaseIdentity:
		provider, err := identity.NewSupabase(config.SupabaseURL, config.SupabaseKey, repo)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Supabase identity: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported identity provider: %s", config.Identity)
	}
}

// createEvents returns nil when AMQP is not configured or the broker cannot be
// reached; ledger writes then go unannounced.
func (f *DefaultFactory) createEvents(ctx context.Context, config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPRoutingKey)
	if err := client.Connect(ctx); err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events",
			log.FieldOperation, log.OpConnect,
			log.FieldError, err)
		return nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		log.FieldOperation, log.OpConnect,
		"exchange", config.AMQPExchange,
		"routing_key", config.AMQPRoutingKey)
	return client
}

// CreateExporter builds the Google Sheets exporter.
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (sheets.ExpenseExporter, error) {
	cli, err := gsheet.NewClient(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return cli, nil
}
