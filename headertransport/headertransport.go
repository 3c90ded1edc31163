// Package headertransport provides an http.RoundTripper that injects a fixed
// set of headers into every outgoing request, e.g. to authenticate to a
// resolution backend.
package headertransport

import (
	"net/http"
)

// DefaultHeaders are injected into every request unless overridden.
var DefaultHeaders = map[string]string{
	"Accept":     "application/json, text/plain;q=0.9, */*;q=0.1",
	"User-Agent": "directlink",
}

// Transport is an http.RoundTripper implementation that injects a set of
// headers into every outgoing request.
type Transport struct {
	transport     http.RoundTripper
	injectHeaders map[string]string
}

var _ http.RoundTripper = &Transport{} // Transport implements http.RoundTripper

// New creates a new header injecting transport.
func New(transport http.RoundTripper, opts ...Option) *Transport {
	t := &Transport{
		transport:     transport,
		injectHeaders: DefaultHeaders,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip executes a single HTTP transaction, after injecting a set of
// headers into the outgoing request.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	// existing headers take precedence over injected headers
	for key, value := range t.injectHeaders {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	return t.transport.RoundTrip(req)
}

// Option customizes a Transport.
type Option func(*Transport)

// WithHeaders overrides the default set of headers injected into each request.
func WithHeaders(injectHeaders map[string]string) Option {
	return func(t *Transport) {
		t.injectHeaders = injectHeaders
	}
}

// WithBearerToken adds an Authorization header carrying token, on top of the
// headers configured so far. An empty token is ignored.
func WithBearerToken(token string) Option {
	return func(t *Transport) {
		if token == "" {
			return
		}
		headers := make(map[string]string, len(t.injectHeaders)+1)
		for k, v := range t.injectHeaders {
			headers[k] = v
		}
		headers["Authorization"] = "Bearer " + token
		t.injectHeaders = headers
	}
}
