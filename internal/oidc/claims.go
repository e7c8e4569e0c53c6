package oidc

import (
	"errors"
	"fmt"
	"strings"

	jmes "github.com/jmespath/go-jmespath"
)

var ErrNoEmail = errors.New("id_token has no email claim")

// Email evaluates the JMESPath expression expr (e.g. "email" or
// "attributes.mail[0]") over claims and returns a non-empty string.
func Email(claims map[string]any, expr string) (string, error) {
	if strings.TrimSpace(expr) == "" {
		expr = "email"
	}
	v, err := jmes.Search(expr, claims)
	if err != nil {
		return "", fmt.Errorf("email claim %q: %w", expr, err)
	}
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return "", ErrNoEmail
	}
	return s, nil
}
