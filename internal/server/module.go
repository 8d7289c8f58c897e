// Package server exposes a Module's endpoints over HTTP behind the
// admission pipeline: per-IP throttling, then signature authentication,
// then schema-validated dispatch.
package server

import (
	"context"
)

// Endpoint is a named remote operation exposed by a Module. Params returns
// a fresh pointer to the endpoint's parameter struct; its json tags define
// the wire names and its validate tags the schema. A nil Params means the
// endpoint takes no parameters.
type Endpoint struct {
	Name    string
	Params  func() any
	Handler func(ctx context.Context, params any) (any, error)
}

// Module is a named collection of endpoints. Endpoint names must be unique
// within a module; a collision is a server construction error.
type Module interface {
	Name() string
	Endpoints() []Endpoint
}
