// Package relay brokers the Keycloak authorization-code flow for many tenant
// applications and hands the resulting identity to the tenant's own host.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"ssorelay/internal/oidc"
	"ssorelay/internal/policy"
	"ssorelay/internal/state"
	"ssorelay/pkg/cipher"
	"ssorelay/pkg/problems"
	"ssorelay/pkg/tenants"
)

// landingPath is the tenant application endpoint receiving the login result.
const landingPath = "/googleSsologinUser.do"

// IdentityProvider builds authorization URLs and redeems codes at a tenant realm.
type IdentityProvider interface {
	AuthCodeURL(tc tenants.Config, req oidc.AuthRequest) string
	Exchange(ctx context.Context, tc tenants.Config, code, redirectURI string) (oidc.TokenResponse, error)
}

// ClaimsReader turns a raw id_token into its claims, verifying it if configured.
type ClaimsReader interface {
	Claims(ctx context.Context, tc tenants.Config, raw string) (map[string]any, error)
}

// Admitter decides whether an authenticated user may enter the tenant application.
type Admitter interface {
	Allow(ctx context.Context, in policy.Input) (bool, error)
}

// Options carries the deployment settings shared by every tenant.
type Options struct {
	RedirectURI   string // base callback URL, no trailing slash
	MainDomain    string
	IdPHint       string
	ServiceAreaID int64
	EmailClaim    string           // JMESPath over id_token claims
	Now           func() time.Time // interface key clock; defaults to time.Now
}

// Deps are the collaborators a Service calls into.
type Deps struct {
	Tenants  tenants.Provider
	IdP      IdentityProvider
	IDTokens ClaimsReader
	States   *state.Manager
	Cipher   cipher.Cipher
	Admit    Admitter // nil forwards every authenticated user
	Log      *zap.SugaredLogger
}

// Service implements the login and callback flows. It is safe for concurrent use.
type Service struct {
	Deps
	opts Options
}

// NewService fills in defaults: time.Now and service area 1.
func NewService(d Deps, o Options) *Service {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.ServiceAreaID == 0 {
		o.ServiceAreaID = 1
	}
	return &Service{Deps: d, opts: o}
}

// Login is the outcome of BuildLoginURL.
type Login struct {
	URL   string
	State state.Issued
}

// CallbackRequest carries what the provider's redirect brought back.
type CallbackRequest struct {
	Code     string
	TenantID string
	State    string
	Nonce    string // browser nonce cookie, if any
}

// RedirectURI is the callback registered for tenantID. Login and token
// exchange both use it, so the provider sees the same bytes twice.
func (s *Service) RedirectURI(tenantID string) string {
	return s.opts.RedirectURI + "/callback?client_id=" + url.QueryEscape(tenantID)
}

// TenantURL is the landing page of the tenant application.
func (s *Service) TenantURL(tenantID string, q url.Values) string {
	u := url.URL{
		Scheme:   "https",
		Host:     tenantID + "." + s.opts.MainDomain,
		Path:     landingPath,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// BuildLoginURL returns the authorization URL for tenantID, whose
// configuration tc has already been resolved.
func (s *Service) BuildLoginURL(tenantID string, tc tenants.Config) (Login, error) {
	st, err := s.States.Issue(tenantID)
	if err != nil {
		return Login{}, fmt.Errorf("issue state: %w", err)
	}
	hint := tc.IdPHint
	if hint == "" {
		hint = s.opts.IdPHint
	}
	u := s.IdP.AuthCodeURL(tc, oidc.AuthRequest{
		ClientID:    tenantID,
		RedirectURI: s.RedirectURI(tenantID),
		State:       st.Value,
		IdPHint:     hint,
	})
	return Login{URL: u, State: st}, nil
}

// HandleCallback redeems the authorization code and builds the redirect into
// the tenant application. Errors are *problems.Problem unless something
// internal broke.
func (s *Service) HandleCallback(ctx context.Context, req CallbackRequest) (string, error) {
	if req.Code == "" {
		return "", problems.New(problems.MissingCode, nil)
	}
	tc, err := s.Tenants.Resolve(ctx, req.TenantID)
	if err != nil {
		return "", problems.New(problems.ConfigNotFound, err)
	}
	if err := s.States.Verify(ctx, req.TenantID, req.State, req.Nonce); err != nil {
		if errors.Is(err, state.ErrInvalid) || errors.Is(err, state.ErrReplayed) {
			return "", problems.New(problems.InvalidState, err)
		}
		return "", fmt.Errorf("verify state: %w", err)
	}

	start := time.Now()
	tok, err := s.IdP.Exchange(ctx, tc, req.Code, s.RedirectURI(req.TenantID))
	observeExchange(start, err)
	if err != nil {
		return "", problems.New(problems.UpstreamExchange, err)
	}
	claims, err := s.IDTokens.Claims(ctx, tc, tok.IDToken)
	if err != nil {
		return "", problems.New(problems.UpstreamExchange, err)
	}
	email, err := oidc.Email(claims, s.opts.EmailClaim)
	if err != nil {
		return "", problems.New(problems.UpstreamExchange, err)
	}

	if s.Admit != nil {
		ok, err := s.Admit.Allow(ctx, policy.Input{Tenant: req.TenantID, Email: email, Claims: claims})
		if err != nil {
			return "", problems.New(problems.AccessDenied, err)
		}
		if !ok {
			return "", problems.New(problems.AccessDenied, errors.New("rejected by policy"))
		}
	}

	mail, err := s.Cipher.Encrypt(email)
	if err != nil {
		return "", fmt.Errorf("encrypt email: %w", err)
	}
	key, err := s.Cipher.Encrypt(cipher.InterfaceKeyString(s.opts.ServiceAreaID, s.opts.Now()))
	if err != nil {
		return "", fmt.Errorf("encrypt interface key: %w", err)
	}
	return s.TenantURL(req.TenantID, url.Values{
		"userMailId":   {mail},
		"googleToken":  {tok.AccessToken},
		"interfaceKey": {key},
	}), nil
}
