// Package middleware wraps transport handlers with the cross-cutting
// concerns every inbound update goes through.
package middleware

import "github.com/Alexander-D-Karpov/tandem/internal/transport"

type Middleware func(transport.Handler) transport.Handler

// Chain applies mws so that the first one is outermost.
func Chain(h transport.Handler, mws ...Middleware) transport.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
