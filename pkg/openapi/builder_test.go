package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeHandler(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Operation{
		Method:    "GET",
		Path:      "/auth/login/{clientId}",
		Summary:   "login",
		Params:    []Param{{Name: "clientId", In: "path"}},
		Responses: map[int]string{302: "redirect", 404: "unknown"},
	})

	rec := httptest.NewRecorder()
	reg.ServeHandler("ssorelay", "test")(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc struct {
		OpenAPI string `json:"openapi"`
		Paths   map[string]map[string]struct {
			Parameters []struct {
				Name     string `json:"name"`
				Required bool   `json:"required"`
			} `json:"parameters"`
			Responses map[string]struct {
				Description string `json:"description"`
			} `json:"responses"`
		} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.1.0", doc.OpenAPI)
	op := doc.Paths["/auth/login/{clientId}"]["get"]
	require.Len(t, op.Parameters, 1)
	assert.True(t, op.Parameters[0].Required)
	assert.Equal(t, "unknown", op.Responses["404"].Description)
}
