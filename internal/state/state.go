// Package state issues and checks the OAuth state parameter of a login.
//
// In signed mode the state is a short-lived HS256 JWT naming the tenant. The
// relay keeps no session: the browser carries the state through Keycloak and,
// when cookie binding is on, a nonce cookie equal to the token id.
package state

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	ModeSigned = "signed"
	ModeLegacy = "legacy"

	tenantClaim = "tid"
)

var (
	ErrInvalid  = errors.New("state invalid")
	ErrReplayed = errors.New("state already used")
)

type Options struct {
	Mode       string
	Secret     string
	TTL        time.Duration
	BindCookie bool
	Replay     ReplayGuard // nil disables single-use enforcement
	Now        func() time.Time
}

// Issued is a freshly minted state.
type Issued struct {
	Value     string
	Nonce     string // cookie value; empty when no cookie must be set
	ExpiresAt time.Time
}

type Manager struct {
	mode   string
	key    []byte
	ttl    time.Duration
	bind   bool
	replay ReplayGuard
	now    func() time.Time
}

func NewManager(o Options) (*Manager, error) {
	if o.Mode == "" {
		o.Mode = ModeSigned
	}
	if o.Mode != ModeSigned && o.Mode != ModeLegacy {
		return nil, fmt.Errorf("state: unknown mode %q", o.Mode)
	}
	if o.Mode == ModeSigned && o.Secret == "" {
		return nil, errors.New("state: signed mode needs a secret")
	}
	if o.TTL <= 0 {
		o.TTL = 10 * time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	// Separate the signing key from the cipher key derived from the same secret.
	k := sha256.Sum256([]byte("ssorelay/state\x00" + o.Secret))
	return &Manager{
		mode:   o.Mode,
		key:    k[:],
		ttl:    o.TTL,
		bind:   o.BindCookie,
		replay: o.Replay,
		now:    o.Now,
	}, nil
}

func (m *Manager) Mode() string       { return m.mode }
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates the state for a login of tenantID.
func (m *Manager) Issue(tenantID string) (Issued, error) {
	now := m.now()
	if m.mode == ModeLegacy {
		// Opaque and never checked on callback.
		return Issued{Value: strings.ReplaceAll(uuid.NewString(), "-", ""), ExpiresAt: now.Add(m.ttl)}, nil
	}
	jti := uuid.NewString()
	tok, err := jwt.NewBuilder().
		JwtID(jti).
		IssuedAt(now).
		Expiration(now.Add(m.ttl)).
		Claim(tenantClaim, tenantID).
		Build()
	if err != nil {
		return Issued{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, m.key))
	if err != nil {
		return Issued{}, err
	}
	out := Issued{Value: string(signed), ExpiresAt: now.Add(m.ttl)}
	if m.bind {
		out.Nonce = jti
	}
	return out, nil
}

// Verify checks a callback's state for tenantID. nonce is the cookie value
// presented by the browser (ignored unless cookie binding is on).
func (m *Manager) Verify(ctx context.Context, tenantID, value, nonce string) error {
	if m.mode == ModeLegacy {
		return nil
	}
	if value == "" {
		return fmt.Errorf("%w: missing", ErrInvalid)
	}
	tok, err := jwt.Parse([]byte(value),
		jwt.WithKey(jwa.HS256, m.key),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(m.now)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	tid, _ := tok.Get(tenantClaim)
	if s, _ := tid.(string); s != tenantID {
		return fmt.Errorf("%w: tenant mismatch", ErrInvalid)
	}
	jti := tok.JwtID()
	if jti == "" {
		return fmt.Errorf("%w: no id", ErrInvalid)
	}
	if m.bind && subtle.ConstantTimeCompare([]byte(nonce), []byte(jti)) != 1 {
		return fmt.Errorf("%w: nonce mismatch", ErrInvalid)
	}
	if m.replay != nil {
		ok, err := m.replay.Claim(ctx, jti, m.ttl)
		if err != nil {
			return fmt.Errorf("replay guard: %w", err)
		}
		if !ok {
			return ErrReplayed
		}
	}
	return nil
}
