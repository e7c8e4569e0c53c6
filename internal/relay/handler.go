package relay

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ssorelay/pkg/middleware"
	"ssorelay/pkg/openapi"
	"ssorelay/pkg/problems"
	"ssorelay/pkg/tenants"
)

// NoncePrefix names the per-tenant cookie binding a login to its browser.
const NoncePrefix = "relay_nonce_"

type Handler struct {
	svc        *Service
	prov       tenants.Provider
	log        *zap.SugaredLogger
	cookiePath string
	cookieTTL  time.Duration
}

// NewHandler serves svc under mountPath (e.g. "/auth" or "").
func NewHandler(svc *Service, mountPath string) *Handler {
	return &Handler{
		svc:        svc,
		prov:       svc.Tenants,
		log:        svc.Log,
		cookiePath: mountPath + "/callback",
		cookieTTL:  svc.States.TTL(),
	}
}

// Routes registers the login and callback endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.With(middleware.WithTenant(h.prov, "clientId", h.log)).Get("/login/{clientId}", h.login)
	r.Get("/callback", h.callback)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	tc, _ := middleware.TenantFrom(r.Context())
	id := chi.URLParam(r, "clientId")
	reqID := middleware.RequestIDFrom(r.Context())

	login, err := h.svc.BuildLoginURL(id, tc)
	if err != nil {
		loginTotal.WithLabelValues("error").Inc()
		h.log.Errorw("login", "tenant", id, "request_id", reqID, "err", err)
		problems.Write(w, err)
		return
	}
	if login.State.Nonce != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     NoncePrefix + id,
			Value:    login.State.Nonce,
			Path:     h.cookiePath,
			MaxAge:   int(h.cookieTTL / time.Second),
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	loginTotal.WithLabelValues("redirect").Inc()
	h.log.Infow("login redirect", "tenant", id, "request_id", reqID)
	http.Redirect(w, r, login.URL, http.StatusFound)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("client_id")
	reqID := middleware.RequestIDFrom(r.Context())

	req := CallbackRequest{Code: q.Get("code"), TenantID: id, State: q.Get("state")}
	if tenants.ValidID(id) {
		if c, err := r.Cookie(NoncePrefix + id); err == nil {
			req.Nonce = c.Value
		}
	}

	target, err := h.svc.HandleCallback(r.Context(), req)
	if err != nil {
		slug := problems.Slug(err)
		callbackTotal.WithLabelValues(slug).Inc()
		h.log.Warnw("callback failed", "tenant", id, "request_id", reqID, "reason", slug, "err", err)
		problems.Write(w, err)
		return
	}
	if req.Nonce != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     NoncePrefix + id,
			Value:    "",
			Path:     h.cookiePath,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	callbackTotal.WithLabelValues("redirect").Inc()
	h.log.Infow("callback redirect", "tenant", id, "request_id", reqID)
	http.Redirect(w, r, target, http.StatusFound)
}

// Describe registers the relay routes, prefixed with mountPath, on reg.
func Describe(reg *openapi.Registry, mountPath string) {
	reg.Register(openapi.Operation{
		Method:  http.MethodGet,
		Path:    mountPath + "/login/{clientId}",
		Summary: "Start a login for a tenant application",
		Params:  []openapi.Param{{Name: "clientId", In: "path", Desc: "tenant id"}},
		Responses: map[int]string{
			http.StatusFound:    "redirect to the tenant's Keycloak authorization endpoint",
			http.StatusNotFound: "Client configuration not found",
		},
	})
	reg.Register(openapi.Operation{
		Method:  http.MethodGet,
		Path:    mountPath + "/callback",
		Summary: "Authorization code callback",
		Params: []openapi.Param{
			{Name: "client_id", In: "query", Required: true, Desc: "tenant id"},
			{Name: "code", In: "query", Required: true},
			{Name: "state", In: "query"},
		},
		Responses: map[int]string{
			http.StatusFound:               "redirect to the tenant application with the encrypted identity",
			http.StatusBadRequest:          "Authorization code is missing / Invalid state parameter",
			http.StatusForbidden:           "Access denied",
			http.StatusNotFound:            "Client configuration not found",
			http.StatusInternalServerError: "Error requesting token from Keycloak",
		},
	})
}
