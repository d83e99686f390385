package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// Route describes one registered endpoint
type Route struct {
	Resource string
	Method   string
	Path     string
}

// Router mounts resources under /api/<version>
type Router struct {
	api       *gin.RouterGroup
	version   string
	resources []*Resource
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the API prefix
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.version = version
	}
}

// NewRouter creates a Router over engine, "v1" unless an option says otherwise
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{version: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	r.api = engine.Group("/api/" + r.version)
	return r
}

// Mount registers every route of the given resources
func (r *Router) Mount(resources ...*Resource) *Router {
	for _, res := range resources {
		group := r.api.Group(res.prefix)
		for _, rt := range res.routes {
			group.Handle(rt.method, rt.path, rt.handlers...)
		}
		r.resources = append(r.resources, res)
	}
	return r
}

// Routes lists what has been mounted, in registration order
func (r *Router) Routes() []Route {
	var out []Route
	for _, res := range r.resources {
		for _, rt := range res.routes {
			out = append(out, Route{
				Resource: res.name,
				Method:   rt.method,
				Path:     path.Join(r.api.BasePath(), res.prefix, rt.path),
			})
		}
	}
	return out
}

// Resource is the set of endpoints sharing one path prefix
type Resource struct {
	name   string
	prefix string
	routes []resourceRoute
}

type resourceRoute struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewResource starts an empty resource
func NewResource(name, prefix string) *Resource {
	return &Resource{name: name, prefix: prefix}
}

// Handle adds a route; the chainable helpers below delegate to it.
func (res *Resource) Handle(method, relativePath string, handlers ...gin.HandlerFunc) *Resource {
	res.routes = append(res.routes, resourceRoute{method: method, path: relativePath, handlers: handlers})
	return res
}

func (res *Resource) GET(relativePath string, handlers ...gin.HandlerFunc) *Resource {
	return res.Handle(http.MethodGet, relativePath, handlers...)
}

func (res *Resource) POST(relativePath string, handlers ...gin.HandlerFunc) *Resource {
	return res.Handle(http.MethodPost, relativePath, handlers...)
}

func (res *Resource) PUT(relativePath string, handlers ...gin.HandlerFunc) *Resource {
	return res.Handle(http.MethodPut, relativePath, handlers...)
}

// Name returns the resource name
func (res *Resource) Name() string { return res.name }
