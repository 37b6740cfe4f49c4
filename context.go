package rawendpoints

import (
	"context"
	"net/http"
)

type contextKey struct {
	name string
}

var invocationKey = &contextKey{"invocation"}

// InvocationContext is passed through the endpoint filter pipeline.
// It embeds the request context, so it carries the request's deadline and
// cancellation into filters, validators and handlers.
type InvocationContext struct {
	context.Context

	writer  http.ResponseWriter
	request *http.Request
	route   RouteInfo
	args    []any
}

// NewInvocationContext creates an invocation context with the given arguments.
// The App creates these for every request; this constructor exists for testing
// filters in isolation.
func NewInvocationContext(parent context.Context, w http.ResponseWriter, r *http.Request, args ...any) *InvocationContext {
	ic := &InvocationContext{
		writer:  w,
		request: r,
		args:    args,
	}
	ic.Context = context.WithValue(parent, invocationKey, ic)
	return ic
}

// FromContext returns the InvocationContext stored in ctx.
func FromContext(ctx context.Context) (*InvocationContext, bool) {
	if ic, ok := ctx.(*InvocationContext); ok {
		return ic, true
	}
	ic, ok := ctx.Value(invocationKey).(*InvocationContext)
	return ic, ok
}

// Arguments returns the handler arguments bound for this invocation.
// For typed handlers this is the decoded request; for plain HTTP handlers it is
// the response writer and the request.
func (c *InvocationContext) Arguments() []any {
	return c.args
}

// Argument returns the i-th argument, or nil if out of range.
func (c *InvocationContext) Argument(i int) any {
	if i < 0 || i >= len(c.args) {
		return nil
	}
	return c.args[i]
}

// Request returns the HTTP request.
func (c *InvocationContext) Request() *http.Request {
	return c.request
}

// Writer returns the HTTP response writer.
func (c *InvocationContext) Writer() http.ResponseWriter {
	return c.writer
}

// Route returns the metadata of the matched route.
func (c *InvocationContext) Route() RouteInfo {
	return c.route
}

// SetHeader sets an HTTP response header.
func (c *InvocationContext) SetHeader(key, value string) {
	if c.writer != nil {
		c.writer.Header().Set(key, value)
	}
}
