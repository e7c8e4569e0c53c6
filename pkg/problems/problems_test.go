package problems

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrite(t *testing.T) {
	cases := []struct {
		err    error
		status int
		body   string
	}{
		{New(ConfigNotFound, errors.New("open config/x-keycloak.json: no such file")), 404, "Client configuration not found"},
		{New(MissingCode, nil), 400, "Authorization code is missing"},
		{New(InvalidState, nil), 400, "Invalid state parameter"},
		{fmt.Errorf("callback: %w", New(UpstreamExchange, errors.New(`{"error":"invalid_grant"}`))), 500, "Error requesting token from Keycloak"},
		{New(AccessDenied, nil), 403, "Access denied"},
		{errors.New("boom"), 500, "internal error"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		Write(rec, c.err)
		assert.Equal(t, c.status, rec.Code)
		assert.Equal(t, c.body, strings.TrimSpace(rec.Body.String()))
		assert.NotContains(t, rec.Body.String(), "invalid_grant")
		assert.NotContains(t, rec.Body.String(), "keycloak.json")
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	}
}

func TestUnwrapAndSlug(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("wrap: %w", New(UpstreamExchange, cause))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "upstream_exchange", Slug(err))
	assert.Equal(t, "internal", Slug(cause))
	assert.Equal(t, http.StatusInternalServerError, New(UpstreamExchange, nil).Status())
}
