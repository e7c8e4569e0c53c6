// cmd/relay-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ssorelay/internal/oidc"
	"ssorelay/internal/policy"
	"ssorelay/internal/relay"
	"ssorelay/internal/state"
	"ssorelay/pkg/cipher"
	"ssorelay/pkg/config"
	"ssorelay/pkg/db"
	"ssorelay/pkg/logger"
	"ssorelay/pkg/middleware"
	"ssorelay/pkg/openapi"
	"ssorelay/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer log.Sync()

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("config", "err", err)
	}

	pool := db.MustConnect(cfg, log)
	prov, err := tenants.Select(ctx, pool, cfg.TenantSeedJSON, cfg.TenantConfigDir, log)
	if err != nil {
		log.Fatalw("tenants", "err", err)
	}
	prov = tenants.Cached(prov, cfg.TenantCacheTTL)

	var replay state.ReplayGuard
	if rdb := db.MustRedis(cfg, log); rdb != nil {
		defer rdb.Close()
		replay = state.NewRedisGuard(rdb)
	} else {
		replay = state.NewMemoryGuard()
	}

	ciph, err := cipher.New(cfg.CipherMode, cfg.SecretKey)
	if err != nil {
		log.Fatalw("cipher", "err", err)
	}
	states, err := state.NewManager(state.Options{
		Mode:       cfg.StateMode,
		Secret:     cfg.SecretKey,
		TTL:        cfg.StateTTL,
		BindCookie: cfg.StateCookie,
		Replay:     replay,
	})
	if err != nil {
		log.Fatalw("state", "err", err)
	}

	client := oidc.NewClient(cfg.TokenTimeout)
	deps := relay.Deps{
		Tenants:  prov,
		IdP:      client,
		IDTokens: oidc.NewIDTokenReader(ctx, cfg.VerifyIDToken, client.HTTPClient()),
		States:   states,
		Cipher:   ciph,
		Log:      log,
	}
	adm, err := policy.Load(ctx, cfg.PolicyFile)
	if err != nil {
		log.Fatalw("policy", "file", cfg.PolicyFile, "err", err)
	}
	if adm != nil {
		deps.Admit = adm
		log.Infow("admission policy loaded", "file", cfg.PolicyFile)
	}

	svc := relay.NewService(deps, relay.Options{
		RedirectURI:   cfg.RedirectURI,
		MainDomain:    cfg.MainDomain,
		IdPHint:       cfg.IdentityProviderHint,
		ServiceAreaID: cfg.ServiceAreaID,
		EmailClaim:    cfg.EmailClaim,
	})

	tracing, shutdownTracing := middleware.Tracing(log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.AccessLog(log))
	r.Use(tracing)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("pong")) })
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	doc := openapi.NewRegistry()
	relay.Describe(doc, cfg.MountPath)
	r.Get("/openapi.json", doc.ServeHandler("ssorelay", "1.0"))

	h := relay.NewHandler(svc, cfg.MountPath)
	if cfg.MountPath == "" {
		h.Routes(r)
	} else {
		r.Route(cfg.MountPath, h.Routes)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("relay-service listening",
			"addr", cfg.HTTPAddr,
			"mount", cfg.MountPath,
			"cipher", cfg.CipherMode,
			"state", states.Mode(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = shutdownTracing(shutdownCtx)
	if pool != nil {
		pool.Close()
	}
	fmt.Println("relay-service stopped")
}
