package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	gocache "github.com/patrickmn/go-cache"

	"ssorelay/pkg/tenants"
)

var ErrNoIDToken = errors.New("token response has no id_token")

// kidMissGap bounds forced JWKS refetches triggered by an unknown key id.
const kidMissGap = 30 * time.Second

// IDTokenReader turns an id_token into its claim set.
//
// With verification on, the signature is checked against the realm JWKS and
// iss/aud/exp are validated. With verification off the token is only decoded,
// which trusts whatever the back channel returned.
type IDTokenReader struct {
	verify bool
	skew   time.Duration
	client *http.Client

	jwks    *jwk.Cache // per-URL entries, refreshed in the background
	regMu   sync.Mutex
	fetched sync.Map       // realm certs URL -> struct{} once a fetch succeeded
	misses  *gocache.Cache // realm certs URL -> recent unknown-kid refetch
}

// NewIDTokenReader builds a reader. ctx bounds the background JWKS refresher.
func NewIDTokenReader(ctx context.Context, verify bool, client *http.Client) *IDTokenReader {
	if client == nil {
		client = http.DefaultClient
	}
	return &IDTokenReader{
		verify: verify,
		skew:   time.Minute,
		client: client,
		jwks:   jwk.NewCache(ctx),
		misses: gocache.New(kidMissGap, time.Minute),
	}
}

// keySet returns the realm JWKS. Only the first fetch of a URL, or a refetch
// for an unknown kid, goes to the network on the request path; each URL is
// fetched under its own lock so a slow realm never holds up another.
func (r *IDTokenReader) keySet(ctx context.Context, url, kid string) (jwk.Set, error) {
	if err := r.register(url); err != nil {
		return nil, err
	}
	var set jwk.Set
	if _, ok := r.fetched.Load(url); ok {
		if s, err := r.jwks.Get(ctx, url); err == nil {
			set = s
		}
	}
	if set == nil {
		s, err := r.jwks.Refresh(ctx, url)
		if err != nil {
			return nil, err
		}
		r.fetched.Store(url, struct{}{})
		return s, nil
	}
	if kid == "" {
		return set, nil
	}
	if _, ok := set.LookupKeyID(kid); ok {
		return set, nil
	}
	// Unknown kid: the realm probably rotated keys.
	if r.misses.Add(url, struct{}{}, gocache.DefaultExpiration) != nil {
		return set, nil
	}
	s, err := r.jwks.Refresh(ctx, url)
	if err != nil {
		return set, nil
	}
	return s, nil
}

func (r *IDTokenReader) register(url string) error {
	if r.jwks.IsRegistered(url) {
		return nil
	}
	r.regMu.Lock()
	defer r.regMu.Unlock()
	if r.jwks.IsRegistered(url) {
		return nil
	}
	return r.jwks.Register(url, jwk.WithHTTPClient(r.client))
}

func (r *IDTokenReader) Claims(ctx context.Context, tc tenants.Config, raw string) (map[string]any, error) {
	if raw == "" {
		return nil, ErrNoIDToken
	}
	var opts []jwt.ParseOption
	if r.verify {
		set, err := r.keySet(ctx, CertsURL(tc), keyID(raw))
		if err != nil {
			return nil, fmt.Errorf("jwks fetch: %w", err)
		}
		opts = append(opts,
			jwt.WithKeySet(set),
			jwt.WithIssuer(Issuer(tc)),
			jwt.WithAudience(tc.ClientID),
			jwt.WithValidate(true),
			jwt.WithAcceptableSkew(r.skew),
		)
	} else {
		opts = append(opts, jwt.WithVerify(false), jwt.WithValidate(false))
	}
	tok, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		return nil, fmt.Errorf("id_token: %w", err)
	}
	return tok.AsMap(ctx)
}

// keyID reads the kid header without verifying anything.
func keyID(raw string) string {
	msg, err := jws.Parse([]byte(raw))
	if err != nil || len(msg.Signatures()) == 0 {
		return ""
	}
	return msg.Signatures()[0].ProtectedHeaders().KeyID()
}
