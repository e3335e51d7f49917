package credentials

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"promptsmith/internal/infra"
	"promptsmith/internal/storage"
)

// Open builds the Store selected by cfg.CredentialBackend. The returned close
// function releases any database pool and is never nil.
func Open(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Store, func(), error) {
	noop := func() {}
	switch cfg.CredentialBackend {
	case infra.CredentialBackendMemory:
		return NewStore(NewMemoryBackend(), logger), noop, nil
	case infra.CredentialBackendPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		backend := NewSQLBackend(infra.NewSQLRunner(pool, logger.With().Str("component", "sql").Logger()))
		if err := backend.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("ensure settings schema: %w", err)
		}
		return NewStore(backend, logger), pool.Close, nil
	default:
		files, err := storage.NewFileStore(cfg.CredentialDir, 0o600)
		if err != nil {
			return nil, noop, err
		}
		return NewStore(NewFileBackend(files), logger), noop, nil
	}
}
