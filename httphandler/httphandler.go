/*
Package httphandler provides the HTTP API for resolving share URLs.

Resolve a share URL with a JSON POST:

    $ curl -s -XPOST localhost:8080/api/get-direct-link -d '{"share_url": "https://share.example/s/1abc"}' | jq .
    {
        "direct_link": "https://d.example/file.mp4?sign=...",
        "file_info": {
            "direct_link": "https://d.example/file.mp4?sign=...",
            "file_name": "file.mp4"
        }
    }

Every failure is reported as a JSON object with a single error field; a
missing share_url is a 400, anything else a 500:

    $ curl -s -XPOST localhost:8080/api/get-direct-link -d '{}' | jq .
    {
        "error": "share_url is required"
    }

GET /api/debug reports whether a resolution backend was found at startup.
*/
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/mccutchen/directlink"
	"github.com/mccutchen/directlink/metrics"
)

// statusClientClosedRequest is the non-standard status recorded when the
// client goes away before a response is written. See
// https://httpstatuses.com/499.
const statusClientClosedRequest = 499

// ResolveRequest defines the body accepted by the resolve endpoint.
type ResolveRequest struct {
	ShareURL string `json:"share_url"`
}

// ResolveResponse defines the resolve endpoint's success response.
type ResolveResponse struct {
	DirectLink string         `json:"direct_link"`
	FileInfo   map[string]any `json:"file_info"`
}

// ErrorResponse defines the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler is an HTTP request handler that resolves share URLs.
type Handler struct {
	resolver    directlink.Interface
	diagnostics Diagnostics
	metrics     *metrics.Recorder
	cors        CORSOptions
	router      *mux.Router
}

var _ http.Handler = &Handler{} // Handler implements http.Handler

// Option customizes a Handler.
type Option func(*Handler)

// WithDiagnostics sets the data reported by the debug endpoint.
func WithDiagnostics(d Diagnostics) Option {
	return func(h *Handler) {
		h.diagnostics = d
	}
}

// WithMetrics records resolve outcomes and serves them on /metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithCORS overrides the default CORS policy, which allows any origin.
func WithCORS(opts CORSOptions) Option {
	return func(h *Handler) {
		h.cors = opts
	}
}

// New creates a new Handler.
func New(resolver directlink.Interface, opts ...Option) *Handler {
	h := &Handler{
		resolver: resolver,
		cors:     CORSOptions{AllowOrigins: []string{"*"}},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.router = h.newRouter()
	return h
}

func (h *Handler) newRouter() *mux.Router {
	router := mux.NewRouter()
	if h.metrics != nil {
		router.Methods(http.MethodGet).Path("/metrics").Handler(h.metrics.Handler())
	}

	api := router.PathPrefix("/api").Subrouter()
	api.Use(mux.CORSMethodMiddleware(api))
	api.Use(cors(h.cors))
	api.Methods(http.MethodPost, http.MethodOptions).Path("/get-direct-link").HandlerFunc(h.resolve)
	api.Methods(http.MethodGet, http.MethodOptions).Path("/debug").HandlerFunc(h.debug)
	return router
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	// A body that is not a JSON object is treated like one without a
	// share_url.
	var req ResolveRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	result, err := h.resolver.Resolve(ctx, req.ShareURL)
	if err != nil {
		code, outcome := classify(err)
		h.metrics.ObserveResolve(outcome, time.Since(start))

		// Special case when client closed connection, no need to respond
		if code == statusClientClosedRequest {
			hlog.FromRequest(r).Error().Err(err).Str("share_url", req.ShareURL).Msg("client closed connection")
			w.WriteHeader(code)
			return
		}

		level := zerolog.ErrorLevel
		if code < http.StatusInternalServerError {
			level = zerolog.InfoLevel
		}
		hlog.FromRequest(r).WithLevel(level).Err(err).Str("share_url", req.ShareURL).Str("outcome", outcome).Msg("error resolving share url")

		sendError(w, err.Error(), code)
		return
	}

	h.metrics.ObserveResolve(metrics.OutcomeOK, time.Since(start))
	sendJSON(w, http.StatusOK, ResolveResponse{
		DirectLink: result.DirectLink,
		FileInfo:   result.FileInfo,
	})
}

func (h *Handler) debug(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, h.diagnostics)
}

// classify maps a resolve error to a response status and metrics outcome.
// Backend faults, and anything unexpected, are 500s carrying the error's own
// message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, directlink.ErrInvalidInput):
		return http.StatusBadRequest, metrics.OutcomeInvalidInput
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, metrics.OutcomeCanceled
	case errors.Is(err, directlink.ErrUnavailable):
		return http.StatusInternalServerError, metrics.OutcomeUnavailable
	case errors.Is(err, directlink.ErrNoDirectLink):
		return http.StatusInternalServerError, metrics.OutcomeNoDirectLink
	default:
		return http.StatusInternalServerError, metrics.OutcomeDelegateError
	}
}

func sendJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, msg string, code int) {
	sendJSON(w, code, ErrorResponse{Error: msg})
}
