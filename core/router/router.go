package router

import (
	"strings"

	"github.com/searchktools/static-server/config"
	"github.com/searchktools/static-server/core/http"
	"github.com/searchktools/static-server/core/middleware"
	"github.com/searchktools/static-server/core/static"
)

// Route names
const (
	RouteRoot      = "root"
	RouteEcho      = "echo"
	RouteUserAgent = "user-agent"
	RouteStatic    = "static"
	RouteNotFound  = "not-found"
)

const echoPrefix = "/echo/"

type route struct {
	name    string
	path    string
	prefix  bool // match path as a prefix instead of exactly
	handler middleware.HandlerFunc
}

func (rt *route) match(path string) bool {
	if rt.prefix {
		return strings.HasPrefix(path, rt.path)
	}
	return path == rt.path
}

// Router dispatches GET requests to a fixed, ordered set of handlers.
// The first matching route wins:
//
//	/             root
//	/echo/...     echo
//	/user-agent*  user-agent
//	anything      static, when a serving mode is configured
//
// Everything else is 404. Methods other than GET are answered with 405
// before any route is considered.
type Router struct {
	serving  config.Serving
	resolver *static.Resolver
	routes   []route

	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc
}

// New creates a router over the given serving mode and resolver.
// Extra middlewares run outside the method guard, in the order given.
func New(serving config.Serving, resolver *static.Resolver, middlewares ...middleware.Middleware) *Router {
	r := &Router{
		serving:     serving,
		resolver:    resolver,
		middlewares: middlewares,
	}

	r.routes = []route{
		{name: RouteRoot, path: "/", handler: r.handleRoot},
		{name: RouteEcho, path: echoPrefix, prefix: true, handler: handleEcho},
		{name: RouteUserAgent, path: "/user-agent", prefix: true, handler: handleUserAgent},
	}
	if serving.Active() {
		r.routes = append(r.routes, route{name: RouteStatic, path: "/", prefix: true, handler: r.handleStatic})
	}

	r.compile()
	return r
}

// Use appends a middleware. It must not be called while serving.
func (r *Router) Use(m middleware.Middleware) {
	r.middlewares = append(r.middlewares, m)
	r.compile()
}

func (r *Router) compile() {
	r.handler = middleware.NewPipeline(r.middlewares...).
		Use(middleware.MethodGuard("GET")).
		Then(r.dispatch)
}

// Serve answers a valid request. It always returns a response.
func (r *Router) Serve(req *http.Request) *http.Response {
	return r.handler(req)
}

// Match returns the name of the route path would be dispatched to
func (r *Router) Match(path string) string {
	for i := range r.routes {
		if r.routes[i].match(path) {
			return r.routes[i].name
		}
	}
	return RouteNotFound
}

func (r *Router) dispatch(req *http.Request) *http.Response {
	for i := range r.routes {
		rt := &r.routes[i]
		if rt.match(req.Path) {
			resp := rt.handler(req)
			resp.Route = rt.name
			return resp
		}
	}

	resp := http.Error(http.StatusNotFound, false)
	resp.Route = RouteNotFound
	return resp
}

// handleRoot answers "/". Without static content it sends an empty 200 and
// closes the connection; otherwise "/" goes to the resolver, which serves
// index.html in directory mode.
func (r *Router) handleRoot(req *http.Request) *http.Response {
	if !r.serving.Active() {
		resp := http.Empty()
		resp.Close = true
		return resp
	}
	return r.handleStatic(req)
}

func handleEcho(req *http.Request) *http.Response {
	return http.Text(req.Path[len(echoPrefix):])
}

func handleUserAgent(req *http.Request) *http.Response {
	return http.Text(req.UserAgent)
}

// handleStatic serves a file. 404 leaves the connection alone; 403 and 500
// close it.
func (r *Router) handleStatic(req *http.Request) *http.Response {
	content, err := r.resolver.Resolve(req.Path)
	if err != nil {
		status := static.Status(err)
		return http.Error(status, status != http.StatusNotFound)
	}
	return http.Data(content.ContentType, content.Body)
}
