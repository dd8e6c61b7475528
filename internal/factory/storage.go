// Package factory constructs storage adapters from configuration.
package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fTr0ut/shelvesai/internal/config"
	storepkg "github.com/fTr0ut/shelvesai/internal/store"
	storepg "github.com/fTr0ut/shelvesai/internal/store/postgres"
	storelite "github.com/fTr0ut/shelvesai/internal/store/sqlite"
)

const bootstrapTimeout = 30 * time.Second

// NewStore returns a store.Store for cfg.DBDriver. The sqlite path bootstraps
// synchronously; postgres opens synchronously (health checks need the
// connection immediately) and runs the schema bootstrap check async so a slow
// migration does not block startup.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		db, err := storelite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := storelite.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return storelite.New(db), nil

	case "postgres":
		dsn := cfg.PostgresDSN
		if dsn == "" {
			return nil, fmt.Errorf("SHELVES_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		db, err := storepg.Open(dsn)
		if err != nil {
			return nil, err
		}
		go func() {
			bootstrapCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
			defer cancel()
			if err := storepg.Bootstrap(bootstrapCtx, dsn); err != nil {
				log.Warn().Err(err).Str("driver", cfg.DBDriver).Msg("store bootstrap check failed")
			} else {
				log.Debug().Str("driver", cfg.DBDriver).Msg("store bootstrap check completed")
			}
		}()
		return storepg.NewWithDB(db), nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
