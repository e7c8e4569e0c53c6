package tenants

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// SeedEntry is one element of TENANT_SEED_JSON.
type SeedEntry struct {
	ID            string `json:"id"`
	AuthServerURL string `json:"authServerUrl"`
	Realm         string `json:"realm"`
	ClientID      string `json:"clientId"`
	ClientSecret  string `json:"clientSecret"`
	IdPHint       string `json:"idpHint"`
}

type memProvider struct {
	byID map[string]Config
}

// NewMemoryProvider serves a fixed tenant set. The map is never written after
// construction, so concurrent Resolve calls need no locking.
func NewMemoryProvider(cfgs ...Config) Provider {
	p := &memProvider{byID: make(map[string]Config, len(cfgs))}
	for _, c := range cfgs {
		p.byID[c.TenantID] = c
	}
	return p
}

// NewMemoryProviderFromSeed parses TENANT_SEED_JSON. Invalid entries are skipped.
func NewMemoryProviderFromSeed(seed string, log *zap.SugaredLogger) (Provider, error) {
	var entries []SeedEntry
	if err := json.Unmarshal([]byte(seed), &entries); err != nil {
		return nil, fmt.Errorf("parse tenant seed: %w", err)
	}
	cfgs := make([]Config, 0, len(entries))
	for _, e := range entries {
		c := e.config()
		if !ValidID(c.TenantID) || !c.complete() {
			log.Warnw("skipping tenant seed entry", "tenant", e.ID)
			continue
		}
		cfgs = append(cfgs, c)
	}
	log.Infow("memory tenant provider", "tenants", len(cfgs))
	return NewMemoryProvider(cfgs...), nil
}

func (e SeedEntry) config() Config {
	return Config{
		TenantID:      e.ID,
		AuthServerURL: e.AuthServerURL,
		Realm:         e.Realm,
		ClientID:      e.ClientID,
		ClientSecret:  e.ClientSecret,
		IdPHint:       e.IdPHint,
	}
}

func (m *memProvider) Resolve(ctx context.Context, tenantID string) (Config, error) {
	if c, ok := m.byID[tenantID]; ok && ValidID(tenantID) {
		return c, nil
	}
	return Config{}, fmt.Errorf("tenant %q: %w", tenantID, ErrNotFound)
}
