package tenants

import "strings"

// Config holds the identity-provider connection settings of one tenant.
// Values are immutable once resolved.
type Config struct {
	TenantID      string // path segment (acme); also the tenant app subdomain
	AuthServerURL string // https://sso.example.com (Keycloak base, without /realms)
	Realm         string
	ClientID      string // Keycloak "resource"
	ClientSecret  string
	IdPHint       string // optional kc_idp_hint override (e.g. google)
}

// RealmURL is the issuer base of the tenant's realm.
func (c Config) RealmURL() string {
	return strings.TrimRight(c.AuthServerURL, "/") + "/realms/" + c.Realm
}

func (c Config) complete() bool {
	return c.AuthServerURL != "" && c.Realm != "" && c.ClientID != ""
}
