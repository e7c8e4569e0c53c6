package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"ssorelay/pkg/tenants"
)

// TokenResponse is the part of the token endpoint reply the relay forwards.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
}

// AuthRequest describes one authorization-code login.
type AuthRequest struct {
	ClientID    string
	RedirectURI string
	State       string
	IdPHint     string // kc_idp_hint; empty lets Keycloak show its chooser
}

// Client talks to a tenant's Keycloak realm. It holds no per-tenant state.
type Client struct {
	http *http.Client
}

// DefaultTimeout applies when NewClient is given a non-positive timeout.
const DefaultTimeout = 10 * time.Second

// NewClient builds a client whose back-channel calls give up after timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{http: &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}}
}

// HTTPClient exposes the instrumented client for JWKS fetches.
func (c *Client) HTTPClient() *http.Client { return c.http }

// AuthCodeURL builds the realm authorization URL for req.
func (c *Client) AuthCodeURL(tc tenants.Config, req AuthRequest) string {
	oc := oauth2.Config{
		ClientID:    req.ClientID,
		RedirectURL: req.RedirectURI,
		Scopes:      []string{"openid"},
		Endpoint:    endpoint(tc),
	}
	var opts []oauth2.AuthCodeOption
	if req.IdPHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("kc_idp_hint", req.IdPHint))
	}
	return oc.AuthCodeURL(req.State, opts...)
}

// UpstreamError carries the provider status without its body.
type UpstreamError struct {
	Status int
	Code   string // OAuth error code when the provider sent one
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("token endpoint status %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("token endpoint status %d", e.Status)
}

// Exchange redeems code at the tenant's token endpoint. redirectURI must be
// byte-identical to the one sent with the authorization request.
func (c *Client) Exchange(ctx context.Context, tc tenants.Config, code, redirectURI string) (TokenResponse, error) {
	oc := oauth2.Config{
		ClientID:     tc.ClientID,
		ClientSecret: tc.ClientSecret,
		RedirectURL:  redirectURI,
		Endpoint:     endpoint(tc),
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := oc.Exchange(ctx, code, oauth2.SetAuthURLParam("scope", "openid"))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return TokenResponse{}, &UpstreamError{Status: re.Response.StatusCode, Code: re.ErrorCode}
		}
		return TokenResponse{}, fmt.Errorf("token request: %w", err)
	}
	idt, _ := tok.Extra("id_token").(string)
	return TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      idt,
	}, nil
}
