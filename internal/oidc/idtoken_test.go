package oidc_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssorelay/internal/oidc"
	"ssorelay/internal/oidc/oidctest"
)

func TestClaimsVerified(t *testing.T) {
	kc := oidctest.New(t, "acme", "acme", "shh")
	r := oidc.NewIDTokenReader(context.Background(), true, http.DefaultClient)
	tc := kc.Tenant("acme")

	claims, err := r.Claims(context.Background(), tc, kc.IDToken(t, map[string]any{"email": "a@acme.com"}))
	require.NoError(t, err)
	assert.Equal(t, "a@acme.com", claims["email"])

	_, err = r.Claims(context.Background(), tc, kc.IDToken(t, map[string]any{"email": "b@acme.com"}))
	require.NoError(t, err)
	assert.Equal(t, 1, kc.CertsCalls(), "jwks is cached per realm")
}

func TestClaimsVerifiedRejects(t *testing.T) {
	kc := oidctest.New(t, "acme", "acme", "shh")
	other := oidctest.New(t, "acme", "acme", "shh")
	r := oidc.NewIDTokenReader(context.Background(), true, http.DefaultClient)
	tc := kc.Tenant("acme")

	cases := map[string]string{
		"foreign key":    other.IDToken(t, map[string]any{"iss": kc.Issuer(), "email": "x@y"}),
		"wrong audience": kc.IDToken(t, map[string]any{"aud": "someone-else", "email": "x@y"}),
		"wrong issuer":   kc.IDToken(t, map[string]any{"iss": "https://evil/realms/acme", "email": "x@y"}),
		"expired":        kc.IDToken(t, map[string]any{"exp": time.Now().Add(-time.Hour), "email": "x@y"}),
		"garbage":        "not.a.jwt",
	}
	for name, raw := range cases {
		_, err := r.Claims(context.Background(), tc, raw)
		assert.Error(t, err, name)
	}
	_, err := r.Claims(context.Background(), tc, "")
	assert.ErrorIs(t, err, oidc.ErrNoIDToken)
}

func TestClaimsSlowRealmDoesNotBlockOthers(t *testing.T) {
	fast := oidctest.New(t, "fast", "fast", "shh")
	slow := oidctest.New(t, "slow", "slow", "shh")
	r := oidc.NewIDTokenReader(context.Background(), true, http.DefaultClient)
	ctx := context.Background()

	_, err := r.Claims(ctx, fast.Tenant("fast"), fast.IDToken(t, map[string]any{"email": "a@fast"}))
	require.NoError(t, err)

	slow.CertsDelay.Store(int64(1500 * time.Millisecond))
	slowToken := slow.IDToken(t, map[string]any{"email": "b@slow"})
	done := make(chan error, 1)
	go func() {
		_, err := r.Claims(ctx, slow.Tenant("slow"), slowToken)
		done <- err
	}()
	require.Eventually(t, func() bool { return slow.CertsCalls() == 1 }, time.Second, 5*time.Millisecond)

	start := time.Now()
	claims, err := r.Claims(ctx, fast.Tenant("fast"), fast.IDToken(t, map[string]any{"email": "c@fast"}))
	require.NoError(t, err)
	assert.Equal(t, "c@fast", claims["email"])
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.NoError(t, <-done)
	assert.Equal(t, 1, fast.CertsCalls())
}

func TestClaimsRefetchOnKeyRotation(t *testing.T) {
	kc := oidctest.New(t, "acme", "acme", "shh")
	r := oidc.NewIDTokenReader(context.Background(), true, http.DefaultClient)
	tc := kc.Tenant("acme")
	ctx := context.Background()

	_, err := r.Claims(ctx, tc, kc.IDToken(t, map[string]any{"email": "a@acme.com"}))
	require.NoError(t, err)

	kc.Rotate(t)
	claims, err := r.Claims(ctx, tc, kc.IDToken(t, map[string]any{"email": "b@acme.com"}))
	require.NoError(t, err)
	assert.Equal(t, "b@acme.com", claims["email"])
	assert.Equal(t, 2, kc.CertsCalls())

	// Unknown kids do not turn into a refetch per request.
	kc.Rotate(t)
	_, err = r.Claims(ctx, tc, kc.IDToken(t, map[string]any{"email": "c@acme.com"}))
	assert.Error(t, err)
	assert.Equal(t, 2, kc.CertsCalls())
}

func TestClaimsRetriesAfterFailedFirstFetch(t *testing.T) {
	kc := oidctest.New(t, "acme", "acme", "shh")
	r := oidc.NewIDTokenReader(context.Background(), true, &http.Client{Timeout: 100 * time.Millisecond})
	tc := kc.Tenant("acme")

	kc.CertsDelay.Store(int64(time.Second))
	_, err := r.Claims(context.Background(), tc, kc.IDToken(t, map[string]any{"email": "a@acme.com"}))
	require.Error(t, err)

	kc.CertsDelay.Store(0)
	_, err = r.Claims(context.Background(), tc, kc.IDToken(t, map[string]any{"email": "a@acme.com"}))
	assert.NoError(t, err)
}

func TestClaimsDecodeOnly(t *testing.T) {
	kc := oidctest.New(t, "acme", "acme", "shh")
	other := oidctest.New(t, "other", "other", "x")
	r := oidc.NewIDTokenReader(context.Background(), false, nil)

	claims, err := r.Claims(context.Background(), kc.Tenant("acme"), other.IDToken(t, map[string]any{"email": "z@z"}))
	require.NoError(t, err)
	assert.Equal(t, "z@z", claims["email"])
	assert.Equal(t, 0, kc.CertsCalls())
}

func TestEmail(t *testing.T) {
	claims := map[string]any{
		"email":      "a@b.c",
		"attributes": map[string]any{"mail": []any{"first@x", "second@x"}},
		"blank":      " ",
	}
	e, err := oidc.Email(claims, "")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", e)

	e, err = oidc.Email(claims, "attributes.mail[0]")
	require.NoError(t, err)
	assert.Equal(t, "first@x", e)

	_, err = oidc.Email(claims, "blank")
	assert.ErrorIs(t, err, oidc.ErrNoEmail)
	_, err = oidc.Email(claims, "missing")
	assert.ErrorIs(t, err, oidc.ErrNoEmail)
	_, err = oidc.Email(claims, "[[[")
	assert.Error(t, err)
}
