package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mccutchen/directlink"
	"github.com/mccutchen/directlink/backend/execbackend"
	"github.com/mccutchen/directlink/backend/httpbackend"
	"github.com/mccutchen/directlink/config"
	"github.com/mccutchen/directlink/headertransport"
	"github.com/mccutchen/directlink/httphandler"
	"github.com/mccutchen/directlink/metrics"
	"github.com/mccutchen/directlink/telemetry"
)

const (
	readHeaderTimeout = 5 * time.Second
	sysPathEntries    = 3

	// dialer
	dialTimeout = 5 * time.Second
	keepAlive   = 30 * time.Second

	// transport
	idleConnTimeout     = 90 * time.Second
	maxIdleConnsPerHost = 16
	tlsHandshakeTimeout = 5 * time.Second
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	} else {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		logger = logger.Level(zerolog.InfoLevel)
	}

	stopTelemetry := initTelemetry(cfg, logger)
	defer stopTelemetry()

	recorder := metrics.New()
	detection := detectBackend(cfg, logger)
	recorder.SetBackend(detection.Handle.Strategy())

	var resolver directlink.Interface = directlink.New(detection.Handle)
	if cfg.CoalesceRequests {
		resolver = directlink.NewSingleflightResolver(resolver)
	}

	handler := httphandler.New(resolver,
		httphandler.WithMetrics(recorder),
		httphandler.WithCORS(httphandler.CORSOptions{AllowOrigins: cfg.CORSAllowedOrigins}),
		httphandler.WithDiagnostics(httphandler.NewDiagnostics(
			detection,
			execbackend.Installed(cfg.ResolverCommand),
			execbackend.SearchPath(sysPathEntries),
		)),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           applyMiddleware(handler, logger),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listenAndServeGracefully(srv, cfg.ShutdownTimeout, logger)
}

// detectBackend tries, in order, an in-process registered backend (when one
// is configured), the HTTP backend and the command backend.
func detectBackend(cfg *config.Config, logger zerolog.Logger) directlink.Detection {
	var strategies []directlink.Strategy
	if cfg.RegisteredBackend != "" {
		strategies = append(strategies, directlink.Registered(cfg.RegisteredBackend))
	}
	strategies = append(strategies,
		httpbackend.Strategy(cfg.ResolverHTTPURL, newBackendClient(cfg)),
		execbackend.Strategy(cfg.ResolverCommand, cfg.ResolverCommandArgs...),
	)
	logger.Debug().Strs("registered_backends", directlink.Backends()).Msg("detecting resolver backend")

	detection := directlink.Detect(context.Background(), strategies...)

	for _, attempt := range detection.Attempts {
		if attempt.Error != "" {
			logger.Info().Str("strategy", attempt.Strategy).Str("reason", attempt.Error).Msg("resolver backend strategy skipped")
		}
	}
	if !detection.Handle.Available() {
		logger.Warn().Msg("no resolver backend available, all resolve requests will fail")
		return detection
	}
	logger.Info().
		Str("strategy", detection.Handle.Strategy()).
		Stringer("convention", detection.Handle.Convention()).
		Msg("resolver backend detected")
	return detection
}

func newBackendClient(cfg *config.Config) *http.Client {
	var transport http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: keepAlive,
		}).DialContext,
		IdleConnTimeout:     idleConnTimeout,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		MaxIdleConns:        maxIdleConnsPerHost * 2,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
	}
	transport = telemetry.WrapTransport(transport)
	transport = headertransport.New(transport, headertransport.WithBearerToken(cfg.ResolverHTTPToken))

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.ResolverHTTPTimeout,
	}
}

func listenAndServeGracefully(srv *http.Server, shutdownTimeout time.Duration, logger zerolog.Logger) {
	// exitCh will be closed when it is safe to exit, after the server has had
	// a chance to shut down gracefully
	exitCh := make(chan struct{})

	go func() {
		// wait for SIGTERM or SIGINT
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		// start graceful shutdown
		logger.Info().Msgf("shutdown started by signal: %s", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}

		// indicate that it is now safe to exit
		close(exitCh)
	}()

	// start server
	logger.Info().Msgf("listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("listen error")
		return
	}

	// wait until it is safe to exit
	<-exitCh
}

func applyMiddleware(h http.Handler, l zerolog.Logger) http.Handler {
	h = hlog.AccessHandler(accessLogger)(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.NewHandler(l)(h)
	h = otelhttp.NewHandler(h, "directlink")
	return h
}

func accessLogger(r *http.Request, status int, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("remote_addr", r.RemoteAddr).
		Stringer("url", r.URL).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Send()
}

func initTelemetry(cfg *config.Config, logger zerolog.Logger) func() {
	shutdown, err := telemetry.Init(context.Background(), telemetry.Options{
		ServiceName:  cfg.ServiceName,
		Exporter:     cfg.TelemetryExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		logger.Error().Err(err).Msg("telemetry disabled")
		return func() {}
	}
	if cfg.TelemetryExporter == "" || cfg.TelemetryExporter == telemetry.ExporterNone {
		logger.Info().Msg("set DIRECTLINK_TELEMETRY_EXPORTER to capture traces")
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("error flushing telemetry")
		}
	}
}
