// Package oidctest runs an in-process stand-in for a Keycloak realm: token
// endpoint, JWKS endpoint and RS256-signed identity tokens.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"ssorelay/pkg/tenants"
)

const (
	ValidCode = "good-code"
	KeyID     = "test-kid"
)

type Server struct {
	*httptest.Server

	Realm        string
	ClientID     string
	ClientSecret string
	Email        string

	// FailStatus, when non-zero, makes the token endpoint answer with it.
	FailStatus atomic.Int32
	// OmitIDToken drops id_token from successful token responses.
	OmitIDToken atomic.Bool
	// TokenDelay and CertsDelay (nanoseconds) stall the endpoints until the
	// delay passes or the client goes away.
	TokenDelay atomic.Int64
	CertsDelay atomic.Int64

	tokenCalls atomic.Int32
	certsCalls atomic.Int32
	mu         sync.Mutex
	forms      []url.Values
	kid        string
	key        jwk.Key
	pub        jwk.Set
	rotations  int
}

// New starts a realm named realm whose confidential client is clientID/secret.
func New(t testing.TB, realm, clientID, secret string) *Server {
	t.Helper()
	priv, set, err := newKeys(KeyID)
	if err != nil {
		t.Fatal(err)
	}

	s := &Server{
		Realm:        realm,
		ClientID:     clientID,
		ClientSecret: secret,
		Email:        "jane@example.com",
		kid:          KeyID,
		key:          priv,
		pub:          set,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/"+realm+"/protocol/openid-connect/token", s.token)
	mux.HandleFunc("/realms/"+realm+"/protocol/openid-connect/certs", s.certs)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newKeys(kid string) (jwk.Key, jwk.Set, error) {
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}
	priv, err := jwk.FromRaw(raw)
	if err != nil {
		return nil, nil, err
	}
	_ = priv.Set(jwk.KeyIDKey, kid)
	_ = priv.Set(jwk.AlgorithmKey, jwa.RS256)
	pub, err := priv.PublicKey()
	if err != nil {
		return nil, nil, err
	}
	_ = pub.Set(jwk.KeyIDKey, kid)
	_ = pub.Set(jwk.AlgorithmKey, jwa.RS256)
	set := jwk.NewSet()
	_ = set.AddKey(pub)
	return priv, set, nil
}

// Rotate replaces the realm signing key with a new one under a new kid.
// Tokens signed before the rotation no longer verify.
func (s *Server) Rotate(t testing.TB) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotations++
	kid := fmt.Sprintf("%s-%d", KeyID, s.rotations)
	priv, set, err := newKeys(kid)
	if err != nil {
		t.Fatal(err)
	}
	s.kid, s.key, s.pub = kid, priv, set
}

// Tenant returns a tenant configuration pointing at this realm.
func (s *Server) Tenant(id string) tenants.Config {
	return tenants.Config{
		TenantID:      id,
		AuthServerURL: s.URL,
		Realm:         s.Realm,
		ClientID:      s.ClientID,
		ClientSecret:  s.ClientSecret,
	}
}

func (s *Server) Issuer() string  { return s.URL + "/realms/" + s.Realm }
func (s *Server) TokenCalls() int { return int(s.tokenCalls.Load()) }
func (s *Server) CertsCalls() int { return int(s.certsCalls.Load()) }

// LastForm is the most recent token request body.
func (s *Server) LastForm() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.forms) == 0 {
		return nil
	}
	return s.forms[len(s.forms)-1]
}

// IDToken signs claims with the realm key. Missing iss/aud/exp/iat are filled in.
func (s *Server) IDToken(t testing.TB, claims map[string]any) string {
	t.Helper()
	signed, err := s.sign(claims)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func (s *Server) sign(claims map[string]any) (string, error) {
	now := time.Now()
	tok := jwt.New()
	_ = tok.Set(jwt.IssuerKey, s.Issuer())
	_ = tok.Set(jwt.AudienceKey, s.ClientID)
	_ = tok.Set(jwt.IssuedAtKey, now)
	_ = tok.Set(jwt.ExpirationKey, now.Add(5*time.Minute))
	for k, v := range claims {
		if err := tok.Set(k, v); err != nil {
			return "", err
		}
	}
	s.mu.Lock()
	kid, key := s.kid, s.key
	s.mu.Unlock()
	hdrs := jws.NewHeaders()
	_ = hdrs.Set(jws.KeyIDKey, kid)
	b, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, key, jws.WithProtectedHeaders(hdrs)))
	return string(b), err
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	s.tokenCalls.Add(1)
	if r.Method != http.MethodPost {
		http.Error(w, "method", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "form", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.forms = append(s.forms, r.PostForm)
	s.mu.Unlock()
	if !stall(r, s.TokenDelay.Load()) {
		return
	}

	if st := s.FailStatus.Load(); st != 0 {
		writeJSON(w, int(st), map[string]any{"error": "server_error", "error_description": "upstream exploded"})
		return
	}
	if r.PostForm.Get("client_id") != s.ClientID || r.PostForm.Get("client_secret") != s.ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized_client"})
		return
	}
	if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("code") != ValidCode {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Code not valid"})
		return
	}
	body := map[string]any{
		"access_token":  "access-" + r.PostForm.Get("code"),
		"refresh_token": "refresh-token",
		"token_type":    "Bearer",
		"expires_in":    300,
		"scope":         "openid email profile",
	}
	if !s.OmitIDToken.Load() {
		idt, err := s.sign(map[string]any{"sub": "user-1", "email": s.Email})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		body["id_token"] = idt
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) certs(w http.ResponseWriter, r *http.Request) {
	s.certsCalls.Add(1)
	if !stall(r, s.CertsDelay.Load()) {
		return
	}
	s.mu.Lock()
	pub := s.pub
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, pub)
}

// stall waits d nanoseconds; false means the client gave up first.
func stall(r *http.Request, d int64) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(time.Duration(d)):
		return true
	case <-r.Context().Done():
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
