// Package testutil provides helpers for testing rawendpoints apps and
// endpoints with net/http/httptest.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/broady/rawendpoints"
)

// RequestBuilder constructs test HTTP requests with a fluent API.
type RequestBuilder struct {
	method  string
	path    string
	body    []byte
	headers http.Header
	query   url.Values
}

// NewRequest creates a builder for GET /.
func NewRequest() *RequestBuilder {
	return &RequestBuilder{
		method:  http.MethodGet,
		path:    "/",
		headers: make(http.Header),
		query:   make(url.Values),
	}
}

// Method sets the HTTP method and path.
func (b *RequestBuilder) Method(method, path string) *RequestBuilder {
	b.method = method
	b.path = path
	return b
}

func (b *RequestBuilder) GET(path string) *RequestBuilder    { return b.Method(http.MethodGet, path) }
func (b *RequestBuilder) POST(path string) *RequestBuilder   { return b.Method(http.MethodPost, path) }
func (b *RequestBuilder) PUT(path string) *RequestBuilder    { return b.Method(http.MethodPut, path) }
func (b *RequestBuilder) PATCH(path string) *RequestBuilder  { return b.Method(http.MethodPatch, path) }
func (b *RequestBuilder) DELETE(path string) *RequestBuilder { return b.Method(http.MethodDelete, path) }

// WithJSON sets the request body to the JSON encoding of v.
func (b *RequestBuilder) WithJSON(v any) *RequestBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		panic("testutil: cannot marshal request body: " + err.Error())
	}
	b.body = data
	b.headers.Set("Content-Type", "application/json")
	return b
}

// WithBody sets the raw request body.
func (b *RequestBuilder) WithBody(body string) *RequestBuilder {
	b.body = []byte(body)
	return b
}

// WithHeader sets a request header.
func (b *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	b.headers.Set(key, value)
	return b
}

// WithQuery adds a query parameter.
func (b *RequestBuilder) WithQuery(key, value string) *RequestBuilder {
	b.query.Add(key, value)
	return b
}

// Build creates the request and a fresh ResponseRecorder.
func (b *RequestBuilder) Build() (*http.Request, *httptest.ResponseRecorder) {
	target := b.path
	if len(b.query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + b.query.Encode()
	}

	var req *http.Request
	if len(b.body) > 0 {
		req = httptest.NewRequest(b.method, target, bytes.NewReader(b.body))
	} else {
		req = httptest.NewRequest(b.method, target, nil)
	}
	for k, v := range b.headers {
		req.Header[k] = v
	}
	return req, httptest.NewRecorder()
}

// Serve builds the request and serves it with h.
func (b *RequestBuilder) Serve(h http.Handler) *httptest.ResponseRecorder {
	req, w := b.Build()
	h.ServeHTTP(w, req)
	return w
}

// AssertStatus checks the response status code.
func AssertStatus(t testing.TB, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Errorf("expected status %d, got %d\nBody: %s", want, w.Code, w.Body.String())
	}
}

// AssertHeader checks that a response header has the expected value.
func AssertHeader(t testing.TB, w *httptest.ResponseRecorder, key, want string) {
	t.Helper()
	if got := w.Header().Get(key); got != want {
		t.Errorf("expected header %s=%q, got %q", key, want, got)
	}
}

// AssertJSONResult checks that the body is the {"result": ...} envelope
// around want. Values are compared after a JSON round trip, so formatting
// and key order do not matter.
func AssertJSONResult(t testing.TB, w *httptest.ResponseRecorder, want any) {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	var got struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v\nBody: %s", err, w.Body.String())
	}
	wantJSON, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal expected result: %v", err)
	}
	if !jsonEqual(wantJSON, got.Result) {
		t.Errorf("result mismatch:\nwant: %s\ngot:  %s", wantJSON, got.Result)
	}
}

// DecodeResult decodes the {"result": ...} envelope into a T.
func DecodeResult[T any](t testing.TB, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Result T `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v\nBody: %s", err, w.Body.String())
	}
	return env.Result
}

// AssertJSONError checks that the body is an error envelope with the given code.
func AssertJSONError(t testing.TB, w *httptest.ResponseRecorder, code rawendpoints.ErrorCode) *rawendpoints.Error {
	t.Helper()
	var env struct {
		Error *rawendpoints.Error `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error response: %v\nBody: %s", err, w.Body.String())
	}
	if env.Error == nil {
		t.Fatalf("expected error envelope, got: %s", w.Body.String())
	}
	if env.Error.Code != code {
		t.Errorf("expected error code %s, got %s (message: %s)", code, env.Error.Code, env.Error.Message)
	}
	return env.Error
}

// AssertProblem checks that the response is a 400 validation problem whose
// errors equal want. A nil want skips the comparison of errors.
func AssertProblem(t testing.TB, w *httptest.ResponseRecorder, want map[string][]string) *rawendpoints.ProblemDetails {
	t.Helper()
	AssertStatus(t, w, http.StatusBadRequest)
	AssertHeader(t, w, "Content-Type", "application/problem+json")

	var p rawendpoints.ProblemDetails
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v\nBody: %s", err, w.Body.String())
	}
	if want != nil && !reflect.DeepEqual(p.Errors, want) {
		t.Errorf("problem errors mismatch:\nwant: %v\ngot:  %v", want, p.Errors)
	}
	return &p
}

func jsonEqual(a, b []byte) bool {
	if len(b) == 0 {
		b = []byte("null")
	}
	var va, vb any
	if err := json.Unmarshal(a, &va); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}
