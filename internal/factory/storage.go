package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/chrislearn/mofa-studio/internal/config"
	storepkg "github.com/chrislearn/mofa-studio/internal/store"
	storepg "github.com/chrislearn/mofa-studio/internal/store/postgres"
	storesqlite "github.com/chrislearn/mofa-studio/internal/store/sqlite"
)

// NewStore opens the store selected by cfg.DBDriver and ensures its schema.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	timeout := time.Duration(cfg.BootstrapTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	bootCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch cfg.DBDriver {
	case "sqlite":
		s, err := storesqlite.New(bootCtx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		log.Info().Str("driver", "sqlite").Str("path", cfg.SQLitePath).Msg("store ready")
		return s, nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("COMPANION_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		s, err := storepg.New(bootCtx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		log.Info().Str("driver", "postgres").Msg("store ready")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
