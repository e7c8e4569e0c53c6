// Package policy decides whether an authenticated user may be forwarded to a
// tenant application. The decision is a rego rule, data.relay.allow.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

const query = "data.relay.allow"

// Input is the document exposed to the policy as `input`.
type Input struct {
	Tenant string         `json:"tenant"`
	Email  string         `json:"email"`
	Claims map[string]any `json:"claims"`
}

type Admission struct {
	pq rego.PreparedEvalQuery
}

// New compiles module once; the prepared query is safe for concurrent use.
func New(ctx context.Context, module string) (*Admission, error) {
	pq, err := rego.New(
		rego.Query(query),
		rego.Module("relay.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	return &Admission{pq: pq}, nil
}

// Load reads a rego module from path. An empty path disables admission (nil, nil).
func Load(ctx context.Context, path string) (*Admission, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return New(ctx, string(b))
}

// Allow reports whether in is admitted. An undefined rule denies.
func (a *Admission) Allow(ctx context.Context, in Input) (bool, error) {
	rs, err := a.pq.Eval(ctx, rego.EvalInput(map[string]any{
		"tenant": in.Tenant,
		"email":  in.Email,
		"claims": in.Claims,
	}))
	if err != nil {
		return false, fmt.Errorf("evaluate policy: %w", err)
	}
	return rs.Allowed(), nil
}
