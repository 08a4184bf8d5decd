package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"smartexpense/internal/amqp"
	"smartexpense/internal/apiclient"
	"smartexpense/internal/cache"
	"smartexpense/internal/memory"
	"smartexpense/internal/services"
	"smartexpense/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger   *slog.Logger
	observer cache.LookupObserver
}

// NewFactory creates a new backend factory. observer receives analytics cache
// lookups and may be nil.
func NewFactory(logger *slog.Logger, observer cache.LookupObserver) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger:   logger,
		observer: observer,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case APIBackend:
		return f.createAPIBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createAPIBackend(config Config) (*BackendResult, error) {
	var opts []apiclient.Option
	if config.BackendTimeout > 0 {
		opts = append(opts, apiclient.WithTimeout(config.BackendTimeout))
	}
	client := apiclient.New(config.BackendURL, opts...)

	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	analytics := cache.NewAnalytics(client, ttl, f.observer)
	manager := cache.NewManager(f.logger)
	analytics.Register(manager)
	manager.StartCleanup(ttl)

	f.logger.Info("Initialized API backend", "backend_url", client.BaseURL(), "cache_ttl", ttl)

	return &BackendResult{
		Backend: composite{
			ExpenseStore:    cache.NewInvalidatingStore(client, analytics),
			AnalyticsReader: analytics,
		},
		Cleanup: func() error {
			manager.Stop()
			return nil
		},
		Remote: true,
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional: without it the worker's sweep still replays pending rows
	var publisher services.ChangePublisher
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync messages", "error", err)
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	expenseService := services.NewExpenseService(sqliteRepo, publisher)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Backend: composite{
			ExpenseStore:    expenseService,
			AnalyticsReader: services.NewLocalAnalytics(expenseService, config.Budget),
		},
		Cleanup: expenseService.Close,
		Ready:   sqliteRepo.Ping,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile, "expenses", store.Len())

	return &BackendResult{
		Backend: composite{
			ExpenseStore:    store,
			AnalyticsReader: services.NewLocalAnalytics(store, config.Budget),
		},
	}, nil
}

// Close runs the cleanup hook, if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	if err := r.Cleanup(); err != nil {
		return errors.Join(errors.New("backend cleanup failed"), err)
	}
	return nil
}
