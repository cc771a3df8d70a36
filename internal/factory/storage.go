package factory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/zym9863/Dream-s-Exit/internal/config"
	storepkg "github.com/zym9863/Dream-s-Exit/internal/store"
	storepg "github.com/zym9863/Dream-s-Exit/internal/store/postgres"
	storesqlite "github.com/zym9863/Dream-s-Exit/internal/store/sqlite"
	storesupa "github.com/zym9863/Dream-s-Exit/internal/store/supabase"
)

// NewStore returns the store.Store selected by cfg.DBDriver.
// Call cfg.ResolveDefaults first so "auto" has been resolved.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case config.DriverSupabase:
		return newSupabaseStore(ctx, cfg, log)
	case config.DriverPostgres:
		return newPostgresStore(ctx, cfg, log)
	case config.DriverSQLite:
		s, err := storesqlite.OpenStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		if cfg.IsProduction() {
			log.Warn().Str("path", cfg.SQLitePath).Msg("sqlite store in production: data stays on this host")
		}
		log.Debug().Str("driver", cfg.DBDriver).Str("path", cfg.SQLitePath).Msg("sqlite store opened")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}

// newSupabaseStore returns immediately; reachability is checked asynchronously.
func newSupabaseStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	s, err := storesupa.New(storesupa.Config{URL: cfg.SupabaseURL, Key: cfg.SupabaseKey, Schema: cfg.SupabaseSchema})
	if err != nil {
		return nil, err
	}

	go func() {
		bootstrapCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout(cfg))
		defer cancel()

		if err := s.HealthPing(bootstrapCtx); err != nil {
			log.Warn().Err(err).Str("driver", cfg.DBDriver).Msg("store bootstrap check failed")
		} else {
			log.Debug().Str("driver", cfg.DBDriver).Msg("store bootstrap check completed")
		}
	}()

	return s, nil
}

// newPostgresStore retries the first connection until the bootstrap timeout,
// then applies the schema.
func newPostgresStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxInterval = 2 * time.Second
	exp.MaxElapsedTime = bootstrapTimeout(cfg)

	var db *sql.DB
	attempts := 0
	op := func() error {
		attempts++
		var err error
		db, err = storepg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempts).Msg("postgres not reachable yet")
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(exp, ctx)); err != nil {
		return nil, fmt.Errorf("connect postgres after %d attempts: %w", attempts, err)
	}

	schemaCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout(cfg))
	defer cancel()
	if err := storepg.EnsureSchema(schemaCtx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug().Str("driver", cfg.DBDriver).Int("attempts", attempts).Msg("postgres store ready")
	return storepg.NewWithDB(db), nil
}

func bootstrapTimeout(cfg *config.Config) time.Duration {
	if cfg.BootstrapTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(cfg.BootstrapTimeoutSeconds) * time.Second
}
