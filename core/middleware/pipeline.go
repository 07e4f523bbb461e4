package middleware

import (
	"github.com/searchktools/static-server/core/http"
	"github.com/searchktools/static-server/core/observability"
)

// HandlerFunc produces exactly one response for a request
type HandlerFunc func(req *http.Request) *http.Response

// Middleware wraps a handler
type Middleware func(next HandlerFunc) HandlerFunc

// Pipeline is an ordered middleware chain
type Pipeline struct {
	middlewares []Middleware
}

// NewPipeline creates a new middleware pipeline
func NewPipeline(middlewares ...Middleware) *Pipeline {
	p := &Pipeline{
		middlewares: make([]Middleware, 0, 4),
	}
	p.middlewares = append(p.middlewares, middlewares...)
	return p
}

// Use adds a middleware to the pipeline
func (p *Pipeline) Use(m Middleware) *Pipeline {
	p.middlewares = append(p.middlewares, m)
	return p
}

// Then wraps final with every middleware. The first one added runs first.
func (p *Pipeline) Then(final HandlerFunc) HandlerFunc {
	h := final
	for i := len(p.middlewares) - 1; i >= 0; i-- {
		h = p.middlewares[i](h)
	}
	return h
}

// RouteMethodNotAllowed names responses produced by MethodGuard
const RouteMethodNotAllowed = "method-not-allowed"

// MethodGuard answers any method other than allowed with 405 and closes the
// connection. Such requests never reach the router.
func MethodGuard(allowed string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(req *http.Request) *http.Response {
			if req.Method != allowed {
				resp := http.Error(http.StatusMethodNotAllowed, true)
				resp.Route = RouteMethodNotAllowed
				return resp
			}
			return next(req)
		}
	}
}

// Metrics records the duration and outcome of every request under the name
// of the route that answered it. Responses with status 500 count as errors.
func Metrics(pm *observability.PerformanceMonitor) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(req *http.Request) *http.Response {
			start := pm.StartTrace()
			resp := next(req)
			pm.EndTrace(resp.Route, start, resp.Status >= http.StatusInternalServerError)
			return resp
		}
	}
}
