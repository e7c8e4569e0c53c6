package oidc

import (
	"golang.org/x/oauth2"

	"ssorelay/pkg/tenants"
)

// Keycloak realm endpoints, relative to the realm URL.
const (
	authPath  = "/protocol/openid-connect/auth"
	tokenPath = "/protocol/openid-connect/token"
	certsPath = "/protocol/openid-connect/certs"
)

func AuthURL(tc tenants.Config) string  { return tc.RealmURL() + authPath }
func TokenURL(tc tenants.Config) string { return tc.RealmURL() + tokenPath }
func CertsURL(tc tenants.Config) string { return tc.RealmURL() + certsPath }

// Issuer is the expected iss claim of tokens minted by the realm.
func Issuer(tc tenants.Config) string { return tc.RealmURL() }

func endpoint(tc tenants.Config) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   AuthURL(tc),
		TokenURL:  TokenURL(tc),
		AuthStyle: oauth2.AuthStyleInParams,
	}
}
