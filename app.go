package rawendpoints

import (
	"cmp"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/gorilla/mux"
)

// Router is the route registration surface generated code targets.
// It is implemented by [App] and [Group].
type Router interface {
	MapGet(pattern string, h Handler) *RouteBuilder
	MapPost(pattern string, h Handler) *RouteBuilder
	MapPut(pattern string, h Handler) *RouteBuilder
	MapPatch(pattern string, h Handler) *RouteBuilder
	MapDelete(pattern string, h Handler) *RouteBuilder
}

// RouteInfo describes a registered route.
type RouteInfo struct {
	Method  string
	Pattern string
	Name    string
}

func (ri RouteInfo) String() string {
	return ri.Method + " " + ri.Pattern
}

type route struct {
	info     RouteInfo
	handler  Handler
	filters  []EndpointFilter
	muxRoute *mux.Route
}

// App is the central router for endpoints.
// It manages route registration, middleware, endpoint filters, and error handling.
// Use Handler() to get an http.Handler for use with http.ListenAndServe.
//
// Route patterns use gorilla/mux syntax, e.g. "/users/{id}".
type App struct {
	mu                 sync.RWMutex
	router             *mux.Router
	routes             map[string]*route
	errorTransformer   ErrorTransformer
	maskInternalErrors bool
	filters            []EndpointFilter
	middlewares        []func(http.Handler) http.Handler
	logger             *slog.Logger
	maxRequestBodySize uint64
}

var _ Router = (*App)(nil)

// NewApp returns an empty App.
func NewApp() *App {
	a := &App{
		router:             mux.NewRouter(),
		routes:             make(map[string]*route),
		maxRequestBodySize: 1 << 20, // 1MB default
	}
	a.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, NewError(CodeNotFound, "route not found"), a.logger)
	})
	a.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, Errorf(CodeMethodNotAllowed, "method %s not allowed", r.Method), a.logger)
	})
	return a
}

// WithErrorTransformer sets a custom error transformer.
// It returns the app for chaining.
func (a *App) WithErrorTransformer(fn ErrorTransformer) *App {
	a.errorTransformer = fn
	return a
}

// WithMaskInternalErrors enables masking of internal error messages.
// The original error is still logged.
func (a *App) WithMaskInternalErrors() *App {
	a.maskInternalErrors = true
	return a
}

// WithFilter adds a global endpoint filter.
//
// Filter execution order:
//  1. Global filters (added via App.WithFilter)
//  2. Group filters (added via Group.WithFilter)
//  3. Route filters (added via RouteBuilder.AddEndpointFilter)
//  4. Handler
//
// Within each level, filters execute in the order they were added.
func (a *App) WithFilter(f EndpointFilter) *App {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filters = append(a.filters, f)
	return a
}

// WithMiddleware adds an HTTP middleware to wrap the app.
// Middleware is applied in the order added (first added is outermost).
func (a *App) WithMiddleware(mw func(http.Handler) http.Handler) *App {
	a.middlewares = append(a.middlewares, mw)
	return a
}

// WithLogger sets a custom logger for the app.
// If not set, slog.Default() is used.
func (a *App) WithLogger(logger *slog.Logger) *App {
	a.logger = logger
	return a
}

// WithMaxRequestBodySize sets the maximum JSON request body size.
// A value of 0 means no limit. Default is 1MB (1 << 20).
func (a *App) WithMaxRequestBodySize(size uint64) *App {
	a.maxRequestBodySize = size
	return a
}

// Handler returns an http.Handler for use with http.ListenAndServe or other
// HTTP servers. The returned handler includes all configured middleware.
func (a *App) Handler() http.Handler {
	var h http.Handler = http.HandlerFunc(a.serveHTTP)
	for i := len(a.middlewares) - 1; i >= 0; i-- {
		h = a.middlewares[i](h)
	}
	return h
}

func (a *App) serveHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			a.log().Error("PANIC recovered",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			writeError(w, NewError(CodeInternal, fmt.Sprintf("internal server error (panic): %v", rec)), a.logger)
		}
	}()
	a.router.ServeHTTP(w, r)
}

// Map registers h for method and pattern.
// If a handler is already registered for the same method and pattern, it is
// replaced and a warning is logged.
func (a *App) Map(method, pattern string, h Handler) *RouteBuilder {
	if h == nil {
		panic("rawendpoints: nil handler for " + method + " " + pattern)
	}
	key := method + " " + pattern
	rt := &route{
		info:    RouteInfo{Method: method, Pattern: pattern},
		handler: h,
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if prev, exists := a.routes[key]; exists {
		a.log().Warn("duplicate route registration",
			slog.String("method", method),
			slog.String("pattern", pattern))
		rt.muxRoute = prev.muxRoute
	} else {
		rt.muxRoute = a.router.Handle(pattern, a.dispatch(key)).Methods(method)
	}
	a.routes[key] = rt
	return &RouteBuilder{app: a, route: rt}
}

func (a *App) MapGet(pattern string, h Handler) *RouteBuilder {
	return a.Map(http.MethodGet, pattern, h)
}

func (a *App) MapPost(pattern string, h Handler) *RouteBuilder {
	return a.Map(http.MethodPost, pattern, h)
}

func (a *App) MapPut(pattern string, h Handler) *RouteBuilder {
	return a.Map(http.MethodPut, pattern, h)
}

func (a *App) MapPatch(pattern string, h Handler) *RouteBuilder {
	return a.Map(http.MethodPatch, pattern, h)
}

func (a *App) MapDelete(pattern string, h Handler) *RouteBuilder {
	return a.Map(http.MethodDelete, pattern, h)
}

// Routes returns the registered routes sorted by pattern, then method.
func (a *App) Routes() []RouteInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	infos := make([]RouteInfo, 0, len(a.routes))
	for _, rt := range a.routes {
		infos = append(infos, rt.info)
	}
	slices.SortFunc(infos, func(x, y RouteInfo) int {
		return cmp.Or(cmp.Compare(x.Pattern, y.Pattern), cmp.Compare(x.Method, y.Method))
	})
	return infos
}

// URL builds the URL of the route registered under name.
// pairs are route variable name/value pairs.
func (a *App) URL(name string, pairs ...string) (*url.URL, error) {
	a.mu.RLock()
	r := a.router.Get(name)
	a.mu.RUnlock()
	if r == nil {
		return nil, fmt.Errorf("no route named %q", name)
	}
	return r.URL(pairs...)
}

// dispatch resolves the route at request time so that replaced
// registrations take effect.
func (a *App) dispatch(key string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.RLock()
		rt := a.routes[key]
		info := rt.info
		filters := make([]EndpointFilter, 0, len(a.filters)+len(rt.filters))
		filters = append(filters, a.filters...)
		filters = append(filters, rt.filters...)
		a.mu.RUnlock()

		ic := NewInvocationContext(r.Context(), w, r)
		ic.route = info

		args, err := rt.handler.bind(ic, a.maxRequestBodySize)
		if err != nil {
			a.handleError(w, err)
			return
		}
		ic.args = args

		res, err := chainFilters(filters, rt.handler.invoke)(ic)
		if err != nil {
			a.handleError(w, err)
			return
		}
		writeResult(w, res, a.log())
	})
}

func (a *App) handleError(w http.ResponseWriter, err error) {
	var epErr *Error
	if a.errorTransformer != nil {
		epErr = a.errorTransformer(err)
	}
	if epErr == nil {
		epErr = DefaultErrorTransformer(err)
	}
	if epErr.Code == CodeInternal {
		a.log().Error("endpoint failed", slog.Any("error", err))
		if a.maskInternalErrors {
			epErr = NewError(CodeInternal, "internal server error")
		}
	}
	writeError(w, epErr, a.logger)
}

func (a *App) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// RouteBuilder configures a registered route.
type RouteBuilder struct {
	app   *App
	route *route
}

// AddEndpointFilter adds a filter that runs for this route only,
// after global and group filters.
func (b *RouteBuilder) AddEndpointFilter(f EndpointFilter) *RouteBuilder {
	b.app.mu.Lock()
	defer b.app.mu.Unlock()
	b.route.filters = append(b.route.filters, f)
	return b
}

// WithName names the route so that App.URL can build links to it.
func (b *RouteBuilder) WithName(name string) *RouteBuilder {
	b.app.mu.Lock()
	defer b.app.mu.Unlock()
	b.route.info.Name = name
	// A mux route that is renamed stops matching, so only the first name is
	// registered with the router.
	if b.route.muxRoute.GetName() == "" {
		b.route.muxRoute.Name(name)
	}
	return b
}

// Info returns the route's metadata.
func (b *RouteBuilder) Info() RouteInfo {
	b.app.mu.RLock()
	defer b.app.mu.RUnlock()
	return b.route.info
}
