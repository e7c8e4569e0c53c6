package main

import (
	"bytes"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssorelay/pkg/config"
	"ssorelay/pkg/logger"
)

func run(t *testing.T, cfg config.Config, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(cfg, logger.Nop())
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), errOut.String(), err
}

func baseConfig() config.Config {
	return config.Config{
		SecretKey:     "relay-secret-key-0123",
		CipherMode:    "legacy",
		StateMode:     "signed",
		StateTTL:      time.Minute,
		StateCookie:   true,
		ServiceAreaID: 1,
		TokenTimeout:  time.Second,
		RedirectURI:   "https://sso.example.com/auth",
		MainDomain:    "apps.example.com",
	}
}

func TestEncryptDecrypt(t *testing.T) {
	cfg := baseConfig()
	ct, _, err := run(t, cfg, "encrypt", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "4KxdyUG7EbHXZ2MvVVvQQPbf3fKQzXQM2vEIDn9aW8s=", ct)

	pt, _, err := run(t, cfg, "decrypt", ct)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", pt)

	_, _, err = run(t, cfg, "decrypt", "!!!")
	assert.Error(t, err)
}

func TestInterfaceKeyCommand(t *testing.T) {
	cfg := baseConfig()
	out, _, err := run(t, cfg, "interface-key", "--date", "20240101")
	require.NoError(t, err)
	assert.Equal(t, "409661708730303", out)

	_, _, err = run(t, cfg, "interface-key", "--date", "2024-01-01")
	assert.Error(t, err)

	cfg.SecretKey = "short"
	out, _, err = run(t, cfg, "interface-key", "--date", "20240101", "--encrypt")
	require.NoError(t, err)
	assert.Equal(t, "4Ww4pgcO1RQ5tFTTA32bZw==", out)
}

func TestMissingSecret(t *testing.T) {
	cfg := baseConfig()
	cfg.SecretKey = ""
	_, _, err := run(t, cfg, "encrypt", "x")
	assert.Error(t, err)
}

func TestLoginURLCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme-keycloak.json"), []byte(`{
		"realm": "acme",
		"auth-server-url": "https://kc.example.com/",
		"resource": "relay",
		"credentials": {"secret": "s"}
	}`), 0o600))
	cfg := baseConfig()
	cfg.TenantConfigDir = dir

	out, errOut, err := run(t, cfg, "login-url", "acme")
	require.NoError(t, err)
	u, err := url.Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "kc.example.com", u.Host)
	assert.Equal(t, "/realms/acme/protocol/openid-connect/auth", u.Path)
	assert.Equal(t, "acme", u.Query().Get("client_id"))
	assert.Equal(t, "https://sso.example.com/auth/callback?client_id=acme", u.Query().Get("redirect_uri"))
	assert.Contains(t, errOut, "relay_nonce_acme=")

	_, _, err = run(t, cfg, "login-url", "missing")
	assert.Error(t, err)
}
