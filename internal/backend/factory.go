package backend

import (
	"context"
	"errors"
	"fmt"

	"sitepay/internal/amqp"
	"sitepay/internal/docstore/memory"
	"sitepay/internal/docstore/sqlite"
	"sitepay/internal/log"
)

type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create opens the configured store. The AMQP change feed is optional: a
// failed connection is logged and the store runs without cross-process
// updates.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case MemoryBackend:
		return f.createMemory(ctx, cfg)
	case SQLiteBackend:
		return f.createSQLite(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

func (f *Factory) createMemory(ctx context.Context, cfg Config) (*Result, error) {
	store := memory.New()
	if cfg.Seed {
		empty := func() (bool, error) { return store.Count(projectsPath(cfg.AppID)) == 0, nil }
		if err := Seed(ctx, store, cfg.AppID, empty); err != nil {
			store.Close()
			return nil, err
		}
	}
	f.logger.Info("Initialized memory backend", "app_id", cfg.AppID, "seeded", cfg.Seed)
	return &Result{Store: store, Cleanup: store.Close}, nil
}

func (f *Factory) createSQLite(ctx context.Context, cfg Config) (*Result, error) {
	store, err := sqlite.Open(cfg.SQLiteDBPath, sqlite.WithLogger(f.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	if cfg.Seed {
		empty := func() (bool, error) {
			n, err := store.Count(ctx, projectsPath(cfg.AppID))
			return n == 0, err
		}
		if err := Seed(ctx, store, cfg.AppID, empty); err != nil {
			store.Close()
			return nil, err
		}
	}

	result := &Result{Store: store, Cleanup: store.Close}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AppID, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change feed", log.FieldError, err)
		} else {
			store.SetPublisher(client)
			result.Background = func(ctx context.Context) error {
				return client.Run(ctx, func(msg *amqp.ChangeMessage) error {
					store.Refresh(msg.Collection)
					return nil
				})
			}
			result.Cleanup = func() error {
				return errors.Join(client.Close(), store.Close())
			}
			f.logger.Info("Initialized AMQP change feed", "exchange", cfg.AMQPExchange, "origin", client.Origin())
		}
	}

	f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath, "amqp_enabled", result.Background != nil)
	return result, nil
}
