package rawendpoints

import "net/http"

// Group is a Router that prefixes patterns and adds shared filters.
//
//	api := app.Group("/api").WithFilter(auth)
//	MapRawEndpoints(api)
type Group struct {
	app     *App
	prefix  string
	filters []EndpointFilter
}

var _ Router = (*Group)(nil)

// Group returns a route group whose patterns are prefixed with prefix.
func (a *App) Group(prefix string) *Group {
	return &Group{app: a, prefix: prefix}
}

// Group returns a nested group. It inherits the parent's filters.
func (g *Group) Group(prefix string) *Group {
	return &Group{
		app:     g.app,
		prefix:  g.prefix + prefix,
		filters: append([]EndpointFilter(nil), g.filters...),
	}
}

// WithFilter adds a filter to every route mapped through the group afterwards.
// Group filters run after global filters and before route filters.
func (g *Group) WithFilter(f EndpointFilter) *Group {
	g.filters = append(g.filters, f)
	return g
}

// Map registers h for method and prefix+pattern.
func (g *Group) Map(method, pattern string, h Handler) *RouteBuilder {
	b := g.app.Map(method, g.prefix+pattern, h)
	for _, f := range g.filters {
		b.AddEndpointFilter(f)
	}
	return b
}

func (g *Group) MapGet(pattern string, h Handler) *RouteBuilder {
	return g.Map(http.MethodGet, pattern, h)
}

func (g *Group) MapPost(pattern string, h Handler) *RouteBuilder {
	return g.Map(http.MethodPost, pattern, h)
}

func (g *Group) MapPut(pattern string, h Handler) *RouteBuilder {
	return g.Map(http.MethodPut, pattern, h)
}

func (g *Group) MapPatch(pattern string, h Handler) *RouteBuilder {
	return g.Map(http.MethodPatch, pattern, h)
}

func (g *Group) MapDelete(pattern string, h Handler) *RouteBuilder {
	return g.Map(http.MethodDelete, pattern, h)
}
