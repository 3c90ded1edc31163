package telemetry

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptrace"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WrapTransport returns a transport that records a client span for every
// outgoing request, with child spans for connection setup.
func WrapTransport(transport http.RoundTripper) http.RoundTripper {
	return &traceTransport{transport}
}

type traceTransport struct {
	transport http.RoundTripper
}

func (t *traceTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(r.Context(), "backend.request", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("http.url", r.URL.Redacted()),
		attribute.String("net.peer.name", r.URL.Hostname()),
	)

	ctx = httptrace.WithClientTrace(ctx, newClientTrace(span))
	resp, err := t.transport.RoundTrip(r.WithContext(ctx))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error", err.Error()))
		return resp, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, resp.Status)
	}
	return resp, nil
}

// newClientTrace records connection-level events on the request span.
func newClientTrace(span trace.Span) *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(hostPort string) {
			attrs := []attribute.KeyValue{}
			if host, port, err := net.SplitHostPort(hostPort); err == nil {
				attrs = append(attrs,
					attribute.String("net.host.name", host),
					attribute.String("net.host.port", port),
				)
			}
			span.AddEvent("net.get_conn", trace.WithAttributes(attrs...))
		},
		GotConn: func(info httptrace.GotConnInfo) {
			span.AddEvent("net.got_conn", trace.WithAttributes(
				attribute.Bool("net.conn.reused", info.Reused),
				attribute.Bool("net.conn.was_idle", info.WasIdle),
			))
		},
		DNSStart: func(info httptrace.DNSStartInfo) {
			span.AddEvent("net.dns_start", trace.WithAttributes(attribute.String("net.host.name", info.Host)))
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			span.AddEvent("net.dns_done")
		},
		TLSHandshakeStart: func() {
			span.AddEvent("net.tls_handshake_start")
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			span.AddEvent("net.tls_handshake_done", trace.WithAttributes(
				attribute.Bool("net.conn.tls_did_resume", state.DidResume),
			))
		},
		GotFirstResponseByte: func() {
			span.AddEvent("net.first_response_byte")
		},
	}
}
