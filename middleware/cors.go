// Package middleware provides HTTP middleware and endpoint filters for
// rawendpoints apps.
package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig holds the configuration for CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists origins a cross-domain request can be executed from.
	// "*" allows all origins. Default: ["*"].
	AllowOrigins []string

	// AllowMethods lists methods the client may use.
	// Default: the five methods endpoints can be mapped to, plus OPTIONS.
	AllowMethods []string

	// AllowHeaders lists headers the client may send.
	// Default: ["Content-Type", "Authorization"].
	AllowHeaders []string

	// ExposeHeaders lists response headers that are safe to expose.
	ExposeHeaders []string

	// AllowCredentials indicates whether the request can include credentials.
	AllowCredentials bool

	// MaxAge is how long (in seconds) preflight results may be cached. 0 omits the header.
	MaxAge int
}

var (
	defaultCORSMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	defaultCORSHeaders = []string{"Content-Type", "Authorization"}
)

// CORS returns an HTTP middleware that answers preflight requests and sets
// CORS headers. A nil cfg allows all origins with the default methods and headers.
//
//	app := rawendpoints.NewApp().WithMiddleware(middleware.CORS(nil))
func CORS(cfg *CORSConfig) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = &CORSConfig{}
	}
	origins := cmpOr(cfg.AllowOrigins, []string{"*"})
	wildcard := slices.Contains(origins, "*")
	methods := strings.Join(cmpOr(cfg.AllowMethods, defaultCORSMethods), ", ")
	headers := strings.Join(cmpOr(cfg.AllowHeaders, defaultCORSHeaders), ", ")
	exposed := strings.Join(cfg.ExposeHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			switch {
			case origin == "":
				if wildcard {
					h.Set("Access-Control-Allow-Origin", "*")
				}
			case wildcard && !cfg.AllowCredentials:
				h.Set("Access-Control-Allow-Origin", "*")
			case wildcard || slices.Contains(origins, origin):
				// Credentials forbid "*", so the matched origin is echoed back.
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method != http.MethodOptions {
				if exposed != "" {
					h.Set("Access-Control-Expose-Headers", exposed)
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if cfg.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func cmpOr(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
