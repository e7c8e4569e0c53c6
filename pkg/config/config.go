// pkg/config/config.go
package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	HTTPAddr  string // ":" + PORT
	MountPath string // route prefix, e.g. /auth

	// Relay endpoints
	RedirectURI string // base callback URL registered at the provider
	MainDomain  string // tenant application domain suffix
	SecretKey   string // shared with tenant applications

	// Tenant config sources (postgres > seed json > directory)
	TenantConfigDir string
	TenantSeedJSON  string
	TenantCacheTTL  time.Duration

	// Login / callback behaviour
	IdentityProviderHint string // kc_idp_hint default (tenant may override)
	ServiceAreaID        int64
	CipherMode           string // legacy | aead
	StateMode            string // signed | legacy
	StateTTL             time.Duration
	StateCookie          bool
	VerifyIDToken        bool
	EmailClaim           string // JMESPath over id token claims
	TokenTimeout         time.Duration
	PolicyFile           string

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                  env("RELAY_ENV", "dev"),
		HTTPAddr:             ":" + env("PORT", "8100"),
		MountPath:            "/" + strings.Trim(env("MOUNT_PATH", "/auth"), "/"),
		RedirectURI:          strings.TrimRight(env("REDIRECT_URI", ""), "/"),
		MainDomain:           strings.Trim(env("MAIN_DOMAIN", ""), "."),
		SecretKey:            env("SECRET_KEY", ""),
		TenantConfigDir:      env("TENANT_CONFIG_DIR", "config"),
		TenantSeedJSON:       env("TENANT_SEED_JSON", ""),
		TenantCacheTTL:       envDur("TENANT_CACHE_TTL_SEC", 60) * time.Second,
		IdentityProviderHint: env("IDP_HINT", ""),
		ServiceAreaID:        envInt("SERVICE_AREA_ID", 1),
		CipherMode:           strings.ToLower(env("CIPHER_MODE", "legacy")),
		StateMode:            strings.ToLower(env("STATE_MODE", "signed")),
		StateTTL:             envDur("STATE_TTL_SEC", 600) * time.Second,
		StateCookie:          envBool("STATE_COOKIE", true),
		VerifyIDToken:        envBool("ID_TOKEN_VERIFY", true),
		EmailClaim:           env("EMAIL_CLAIM", "email"),
		TokenTimeout:         envDur("TOKEN_TIMEOUT_SEC", 10) * time.Second,
		PolicyFile:           env("POLICY_FILE", ""),
		RedisURL:             env("REDIS_URL", ""),
		DatabaseURL:          env("DATABASE_URL", ""),
	}
	if cfg.MountPath == "/" {
		cfg.MountPath = ""
	}
	for _, w := range cfg.warnings() {
		log.Println("[WARN] " + w)
	}
	return cfg
}

// warnings lists settings that work but weaken or break the login flow.
func (c Config) warnings() []string {
	var out []string
	if c.StateMode == "legacy" {
		out = append(out, "STATE_MODE=legacy: login state is generated but never validated on callback")
	}
	if !c.VerifyIDToken {
		out = append(out, "ID_TOKEN_VERIFY=false: identity token signatures are not checked")
	}
	if c.StateMode == "signed" && c.StateCookie && c.RedirectURI != "" &&
		!strings.HasPrefix(strings.ToLower(c.RedirectURI), "https://") {
		out = append(out, "REDIRECT_URI is not https: browsers drop the Secure state cookie and every callback fails with \"Invalid state parameter\" (set STATE_COOKIE=false for plain-http development)")
	}
	return out
}

// Validate reports every missing or unsupported setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.RedirectURI == "" {
		errs = append(errs, errors.New("REDIRECT_URI is required"))
	}
	if c.MainDomain == "" {
		errs = append(errs, errors.New("MAIN_DOMAIN is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY is required"))
	}
	switch c.CipherMode {
	case "legacy", "aead":
	default:
		errs = append(errs, errors.New("CIPHER_MODE must be legacy or aead"))
	}
	switch c.StateMode {
	case "signed", "legacy":
	default:
		errs = append(errs, errors.New("STATE_MODE must be signed or legacy"))
	}
	if c.TokenTimeout <= 0 {
		errs = append(errs, errors.New("TOKEN_TIMEOUT_SEC must be positive"))
	}
	if c.StateTTL <= 0 {
		errs = append(errs, errors.New("STATE_TTL_SEC must be positive"))
	}
	return errors.Join(errs...)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}
func envInt(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return def
		}
		return i
	}
	return def
}
// envDur returns whole units (callers multiply). Unparseable values fall back
// to def; explicit zero or negative values are kept for Validate to judge.
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			log.Printf("[WARN] %s=%q is not a number, using %d", k, v, def)
			return time.Duration(def)
		}
		return time.Duration(i)
	}
	return time.Duration(def)
}
