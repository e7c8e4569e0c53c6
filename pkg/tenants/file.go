package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// adapterFile mirrors the Keycloak OIDC adapter file ({tenant}-keycloak.json).
// Both the dashed adapter keys and the camelCase variants are accepted.
type adapterFile struct {
	Realm              string `json:"realm" yaml:"realm"`
	AuthServerURL      string `json:"auth-server-url" yaml:"auth-server-url"`
	AuthServerURLCamel string `json:"authServerUrl" yaml:"authServerUrl"`
	Resource           string `json:"resource" yaml:"resource"`
	ClientID           string `json:"clientId" yaml:"clientId"`
	Credentials        struct {
		Secret string `json:"secret" yaml:"secret"`
	} `json:"credentials" yaml:"credentials"`
	Secret  string `json:"secret" yaml:"secret"`
	IdPHint string `json:"idp-hint" yaml:"idp-hint"`
}

func (a adapterFile) toConfig(tenantID string) Config {
	c := Config{
		TenantID:      tenantID,
		AuthServerURL: a.AuthServerURL,
		Realm:         a.Realm,
		ClientID:      a.Resource,
		ClientSecret:  a.Credentials.Secret,
		IdPHint:       a.IdPHint,
	}
	if c.AuthServerURL == "" {
		c.AuthServerURL = a.AuthServerURLCamel
	}
	if c.ClientID == "" {
		c.ClientID = a.ClientID
	}
	if c.ClientSecret == "" {
		c.ClientSecret = a.Secret
	}
	return c
}

type fileProvider struct {
	dir string
	log *zap.SugaredLogger
}

// NewFileProvider reads tenant files from dir. Each tenant lives in
// {id}-keycloak.json, or {id}-keycloak.yaml when no JSON file exists.
func NewFileProvider(dir string, log *zap.SugaredLogger) Provider {
	return &fileProvider{dir: dir, log: log}
}

func (p *fileProvider) Resolve(ctx context.Context, tenantID string) (Config, error) {
	if !ValidID(tenantID) {
		return Config{}, fmt.Errorf("invalid tenant id: %w", ErrNotFound)
	}
	p.log.Debugw("loading tenant config", "tenant", tenantID)

	base := filepath.Join(p.dir, tenantID+"-keycloak")
	var raw adapterFile
	b, err := os.ReadFile(base + ".json")
	switch {
	case err == nil:
		err = json.Unmarshal(b, &raw)
	case errors.Is(err, fs.ErrNotExist):
		b, err = os.ReadFile(base + ".yaml")
		if err == nil {
			err = yaml.Unmarshal(b, &raw)
		}
	}
	if err != nil {
		p.log.Warnw("tenant config unreadable", "tenant", tenantID, "err", err)
		return Config{}, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}
	cfg := raw.toConfig(tenantID)
	if !cfg.complete() {
		p.log.Warnw("tenant config incomplete", "tenant", tenantID)
		return Config{}, fmt.Errorf("tenant %s incomplete: %w", tenantID, ErrNotFound)
	}
	return cfg, nil
}
