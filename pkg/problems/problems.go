// Package problems maps relay failures to the fixed status codes and
// client-visible messages. The underlying cause is kept for server logs only.
package problems

import (
	"errors"
	"net/http"
)

type Kind int

const (
	ConfigNotFound Kind = iota + 1
	MissingCode
	InvalidState
	UpstreamExchange
	AccessDenied
)

var catalog = map[Kind]struct {
	status  int
	message string
	slug    string
}{
	ConfigNotFound:   {http.StatusNotFound, "Client configuration not found", "config_not_found"},
	MissingCode:      {http.StatusBadRequest, "Authorization code is missing", "missing_code"},
	InvalidState:     {http.StatusBadRequest, "Invalid state parameter", "invalid_state"},
	UpstreamExchange: {http.StatusInternalServerError, "Error requesting token from Keycloak", "upstream_exchange"},
	AccessDenied:     {http.StatusForbidden, "Access denied", "access_denied"},
}

// Problem is a terminal per-request failure.
type Problem struct {
	Kind Kind
	Err  error
}

func New(kind Kind, cause error) *Problem { return &Problem{Kind: kind, Err: cause} }

func (p *Problem) Status() int     { return catalog[p.Kind].status }
func (p *Problem) Message() string { return catalog[p.Kind].message }

// Slug is a stable label for metrics and logs.
func (p *Problem) Slug() string { return catalog[p.Kind].slug }

func (p *Problem) Error() string {
	if p.Err == nil {
		return p.Slug()
	}
	return p.Slug() + ": " + p.Err.Error()
}

func (p *Problem) Unwrap() error { return p.Err }

// Write renders err as plain text. Anything that is not a Problem becomes a
// generic 500 so internal detail never reaches the browser.
func Write(w http.ResponseWriter, err error) {
	var p *Problem
	if errors.As(err, &p) {
		http.Error(w, p.Message(), p.Status())
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// Slug returns the metric label for err ("internal" when it is not a Problem).
func Slug(err error) string {
	var p *Problem
	if errors.As(err, &p) {
		return p.Slug()
	}
	return "internal"
}
