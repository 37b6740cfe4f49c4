package rawendpoints

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
)

var schemaDecoder = schema.NewDecoder()

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
}

// Handler serves a route. Create one with [Handle] or [HandlerFunc].
// It is sealed so that every handler goes through the argument binding and
// filter pipeline of the App.
type Handler interface {
	// bind decodes the request into the handler's arguments.
	bind(ic *InvocationContext, maxBodySize uint64) ([]any, error)
	// invoke calls the handler with the arguments in ic.
	invoke(ic *InvocationContext) (any, error)
}

type typedHandler[Req any, Res any] struct {
	fn func(context.Context, Req) (Res, error)
}

// Handle adapts a typed function into a Handler.
//
// The request value is decoded from, in order: the JSON body (POST, PUT and
// PATCH only), then route variables and query parameters using `schema` tags.
// Req may be a struct or a pointer to a struct. The decoded value is the single
// invocation argument seen by endpoint filters.
//
// A Res implementing [Result] writes its own response; any other value is
// written as {"result": ...}.
func Handle[Req any, Res any](fn func(context.Context, Req) (Res, error)) Handler {
	return &typedHandler[Req, Res]{fn: fn}
}

func (h *typedHandler[Req, Res]) bind(ic *InvocationContext, maxBodySize uint64) ([]any, error) {
	var req Req
	r := ic.Request()

	// target is the struct the decoders fill; for pointer Reqs it is
	// allocated and req points to it.
	var target reflect.Value
	reqType := reflect.TypeFor[Req]()
	if reqType.Kind() == reflect.Pointer {
		target = reflect.New(reqType.Elem())
		req = target.Interface().(Req)
	} else {
		target = reflect.ValueOf(&req)
	}

	if hasBody(r.Method) && r.Body != nil && r.Body != http.NoBody {
		body := io.Reader(r.Body)
		if maxBodySize > 0 {
			body = http.MaxBytesReader(ic.Writer(), r.Body, int64(maxBodySize))
		}
		if err := json.NewDecoder(body).Decode(target.Interface()); err != nil && !errors.Is(err, io.EOF) {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				return nil, err
			}
			return nil, Errorf(CodeInvalidArgument, "failed to decode body: %v", err)
		}
	}

	if target.Elem().Kind() == reflect.Struct {
		values := routeValues(r)
		if len(values) > 0 {
			if err := schemaDecoder.Decode(target.Interface(), values); err != nil {
				return nil, Errorf(CodeInvalidArgument, "failed to decode parameters: %v", err)
			}
		}
	}

	return []any{req}, nil
}

func (h *typedHandler[Req, Res]) invoke(ic *InvocationContext) (any, error) {
	req, ok := ic.Argument(0).(Req)
	if !ok && ic.Argument(0) != nil {
		return nil, Errorf(CodeInternal, "invalid argument type %T", ic.Argument(0))
	}
	res, err := h.fn(ic, req)
	if err != nil {
		return nil, err
	}
	return res, nil
}

type httpHandler struct {
	fn http.HandlerFunc
}

// HandlerFunc adapts a plain HTTP handler into a Handler.
// Its invocation arguments are the http.ResponseWriter and the *http.Request.
// The function writes its own response; filters may still short-circuit it.
func HandlerFunc(fn func(http.ResponseWriter, *http.Request)) Handler {
	return &httpHandler{fn: fn}
}

func (h *httpHandler) bind(ic *InvocationContext, _ uint64) ([]any, error) {
	return []any{ic.Writer(), ic.Request()}, nil
}

func (h *httpHandler) invoke(ic *InvocationContext) (any, error) {
	h.fn(ic.Writer(), ic.Request().WithContext(ic))
	return handled{}, nil
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// routeValues merges query parameters with route variables.
// Route variables win over query parameters of the same name.
func routeValues(r *http.Request) url.Values {
	values := r.URL.Query()
	for k, v := range mux.Vars(r) {
		values.Set(k, v)
	}
	return values
}
