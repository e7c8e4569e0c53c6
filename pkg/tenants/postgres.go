// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgProvider implements Provider backed by PostgreSQL.
type pgProvider struct {
	dbPool *pgxpool.Pool      // Connection pool to PostgreSQL
	log    *zap.SugaredLogger // Logger for diagnostic output
}

// NewPostgresProvider constructs a PostgreSQL-backed tenant provider.
func NewPostgresProvider(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Provider {
	return &pgProvider{dbPool: dbPool, log: log}
}

// EnsureSchema creates the tenant table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS relay_tenants (
  tenant_id text PRIMARY KEY,
  auth_server_url text NOT NULL,
  realm text NOT NULL,
  client_id text NOT NULL,
  client_secret text NOT NULL DEFAULT '',
  idp_hint text,
  enabled boolean NOT NULL DEFAULT true,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
ALTER TABLE relay_tenants ADD COLUMN IF NOT EXISTS idp_hint text;
ALTER TABLE relay_tenants ADD COLUMN IF NOT EXISTS enabled boolean NOT NULL DEFAULT true;
`)
	return err
}

// SeedFromEnv upserts the TENANT_SEED_JSON entries (same format as the memory provider).
func SeedFromEnv(ctx context.Context, dbPool *pgxpool.Pool, jsonSeed string) error {
	if jsonSeed == "" {
		return nil
	}
	var entries []SeedEntry
	if err := json.Unmarshal([]byte(jsonSeed), &entries); err != nil {
		return err
	}
	for _, entry := range entries {
		c := entry.config()
		if !ValidID(c.TenantID) || !c.complete() {
			continue
		}
		if _, err := dbPool.Exec(ctx, `INSERT INTO relay_tenants(tenant_id,auth_server_url,realm,client_id,client_secret,idp_hint)
		  VALUES ($1,$2,$3,$4,$5,NULLIF($6,''))
		  ON CONFLICT (tenant_id) DO UPDATE SET auth_server_url=EXCLUDED.auth_server_url,realm=EXCLUDED.realm,client_id=EXCLUDED.client_id,client_secret=EXCLUDED.client_secret,idp_hint=EXCLUDED.idp_hint,updated_at=NOW()`,
			c.TenantID, c.AuthServerURL, c.Realm, c.ClientID, c.ClientSecret, c.IdPHint); err != nil {
			return fmt.Errorf("seed tenant %s: %w", c.TenantID, err)
		}
	}
	return nil
}

// Resolve fetches an enabled tenant by id.
func (p *pgProvider) Resolve(ctx context.Context, tenantID string) (Config, error) {
	if !ValidID(tenantID) {
		return Config{}, fmt.Errorf("invalid tenant id: %w", ErrNotFound)
	}
	row := p.dbPool.QueryRow(ctx, `SELECT tenant_id,auth_server_url,realm,client_id,client_secret,COALESCE(idp_hint,'') FROM relay_tenants WHERE tenant_id=$1 AND enabled`, tenantID)
	var c Config
	if err := row.Scan(&c.TenantID, &c.AuthServerURL, &c.Realm, &c.ClientID, &c.ClientSecret, &c.IdPHint); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			p.log.Errorw("tenant lookup failed", "tenant", tenantID, "err", err)
		}
		return Config{}, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}
	if !c.complete() {
		return Config{}, fmt.Errorf("tenant %s incomplete: %w", tenantID, ErrNotFound)
	}
	return c, nil
}
