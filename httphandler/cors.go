package httphandler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// CORSOptions configures which origins may call the API from a browser.
type CORSOptions struct {
	// AllowOrigins lists allowed origins. A "*" entry allows any origin.
	AllowOrigins []string
}

func (o CORSOptions) allowAny() bool {
	for _, origin := range o.AllowOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func (o CORSOptions) originValid(origin string) bool {
	for _, allowedOrigin := range o.AllowOrigins {
		if allowedOrigin == "*" || origin == allowedOrigin {
			return true
		}
	}
	return false
}

// cors answers preflight requests and adds CORS headers to responses.
// Allowed methods are set by mux.CORSMethodMiddleware.
func cors(opts CORSOptions) mux.MiddlewareFunc {
	maxAge := strconv.FormatInt(int64(time.Hour.Seconds()), 10)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if !opts.originValid(origin) {
					sendError(w, "origin not allowed", http.StatusForbidden)
					return
				}
				h := w.Header()
				if opts.allowAny() {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
				h.Set("Access-Control-Allow-Headers", "Content-Type")
				h.Set("Access-Control-Max-Age", maxAge)
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
