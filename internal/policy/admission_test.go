package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const domainPolicy = `package relay

import rego.v1

default allow := false

allowed_domains := {
	"acme": {"acme.com"},
	"globex": {"globex.io", "gmail.com"},
}

allow if {
	some domain in allowed_domains[input.tenant]
	endswith(input.email, concat("", ["@", domain]))
}

allow if input.claims.realm_access.roles[_] == "relay-bypass"
`

func TestAllow(t *testing.T) {
	a, err := New(context.Background(), domainPolicy)
	require.NoError(t, err)
	ctx := context.Background()

	cases := []struct {
		in   Input
		want bool
	}{
		{Input{Tenant: "acme", Email: "jane@acme.com"}, true},
		{Input{Tenant: "acme", Email: "jane@gmail.com"}, false},
		{Input{Tenant: "globex", Email: "jane@gmail.com"}, true},
		{Input{Tenant: "initech", Email: "jane@acme.com"}, false},
		{Input{Tenant: "initech", Email: "ops@x", Claims: map[string]any{
			"realm_access": map[string]any{"roles": []any{"relay-bypass"}},
		}}, true},
	}
	for _, c := range cases {
		got, err := a.Allow(ctx, c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "%+v", c.in)
	}
}

func TestUndefinedDenies(t *testing.T) {
	a, err := New(context.Background(), "package relay\n")
	require.NoError(t, err)
	ok, err := a.Allow(context.Background(), Input{Tenant: "acme", Email: "a@acme.com"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	a, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, a)

	_, err = Load(context.Background(), filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.rego")
	require.NoError(t, os.WriteFile(bad, []byte("package relay\nallow if {"), 0o600))
	_, err = Load(context.Background(), bad)
	assert.Error(t, err)

	good := filepath.Join(t.TempDir(), "good.rego")
	require.NoError(t, os.WriteFile(good, []byte(domainPolicy), 0o600))
	a, err = Load(context.Background(), good)
	require.NoError(t, err)
	assert.NotNil(t, a)
}
