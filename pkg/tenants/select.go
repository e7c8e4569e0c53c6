package tenants

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Select picks the tenant source: postgres when pool is set (schema ensured,
// seed upserted), else the JSON seed, else the adapter-file directory.
func Select(ctx context.Context, pool *pgxpool.Pool, seed, dir string, log *zap.SugaredLogger) (Provider, error) {
	switch {
	case pool != nil:
		if err := EnsureSchema(ctx, pool); err != nil {
			return nil, fmt.Errorf("tenant schema: %w", err)
		}
		if err := SeedFromEnv(ctx, pool, seed); err != nil {
			log.Warnw("tenant seed", "err", err)
		}
		log.Infow("tenants from postgres")
		return NewPostgresProvider(pool, log), nil
	case seed != "":
		log.Infow("tenants from TENANT_SEED_JSON")
		return NewMemoryProviderFromSeed(seed, log)
	default:
		log.Infow("tenants from directory", "dir", dir)
		return NewFileProvider(dir, log), nil
	}
}
