// Package openapi renders a small OpenAPI 3.1 document for the relay routes.
package openapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// Param is a query or path parameter.
type Param struct {
	Name     string
	In       string // "path" or "query"
	Required bool
	Desc     string
}

// Operation is one route surfaced in the document.
type Operation struct {
	Method    string
	Path      string
	Summary   string
	Params    []Param
	Responses map[int]string // status -> description
}

type Registry struct {
	ops []Operation
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Register(op Operation) {
	op.Method = strings.ToLower(op.Method)
	r.ops = append(r.ops, op)
}

// Build produces the document. Later registrations of the same method and
// path replace earlier ones.
func (r *Registry) Build(serviceName, version string) map[string]any {
	paths := map[string]map[string]any{}
	for _, op := range r.ops {
		if paths[op.Path] == nil {
			paths[op.Path] = map[string]any{}
		}
		params := make([]map[string]any, 0, len(op.Params))
		for _, p := range op.Params {
			params = append(params, map[string]any{
				"name":        p.Name,
				"in":          p.In,
				"required":    p.Required || p.In == "path",
				"description": p.Desc,
				"schema":      map[string]string{"type": "string"},
			})
		}
		responses := map[string]any{}
		for c, desc := range op.Responses {
			responses[strconv.Itoa(c)] = map[string]string{"description": desc}
		}
		paths[op.Path][op.Method] = map[string]any{
			"summary":    op.Summary,
			"parameters": params,
			"responses":  responses,
		}
	}
	return map[string]any{
		"openapi": "3.1.0",
		"info":    map[string]any{"title": serviceName, "version": version},
		"paths":   paths,
	}
}

// ServeHandler serves the built document as JSON.
func (r *Registry) ServeHandler(serviceName, version string) http.HandlerFunc {
	doc := r.Build(serviceName, version)
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}
}
