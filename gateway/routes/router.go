package routes

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"crosshub/gateway/config"
	"crosshub/gateway/middleware"
)

// Kit bundles the middleware built from a daemon's HTTP section.
type Kit struct {
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
}

// NewKit builds the authenticator, rate limiter and observability
// middleware described by cfg.
func NewKit(cfg config.HTTP, logger *slog.Logger) Kit {
	return Kit{
		Authenticator: middleware.NewAuthenticator(cfg.Auth.Middleware(), logger),
		RateLimiter:   middleware.NewRateLimiter(cfg.Limits(), logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName:   cfg.Observability.ServiceName,
			MetricsPrefix: cfg.Observability.MetricsPrefix,
			LogRequests:   cfg.Observability.LogRequests,
			Enabled:       cfg.Observability.Metrics,
		}, logger),
	}
}

// New returns a chi router carrying the shared middleware, /healthz and
// /metrics. Daemons mount their API groups on it.
func New(cfg config.HTTP, kit Kit) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowCredentials: cfg.CORS.AllowCredentials,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if kit.Observability != nil {
		r.Handle("/metrics", kit.Observability.MetricsHandler())
	}
	return r
}

// Group mounts fn under prefix. Observability wraps authentication, which
// wraps rate limiting; nil scopes leave the group unauthenticated.
func Group(r chi.Router, kit Kit, name, prefix, limitKey string, scopes []string, fn func(chi.Router)) {
	r.Route(prefix, func(sr chi.Router) {
		if kit.Observability != nil {
			sr.Use(kit.Observability.Middleware(name))
		}
		if kit.Authenticator != nil && scopes != nil {
			sr.Use(kit.Authenticator.Middleware(scopes...))
		}
		if kit.RateLimiter != nil && limitKey != "" {
			sr.Use(kit.RateLimiter.Middleware(limitKey))
		}
		fn(sr)
	})
}

// Serve runs handler on the configured listener until ctx ends.
func Serve(ctx context.Context, cfg config.HTTP, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout.Duration,
		WriteTimeout: cfg.WriteTimeout.Duration,
		IdleTimeout:  cfg.IdleTimeout.Duration,
	}
	tlsEnabled := cfg.Security.TLSCertFile != ""
	if tlsEnabled {
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("http server listening", "addr", cfg.ListenAddress, "tls", tlsEnabled)
	var err error
	if tlsEnabled {
		err = srv.ListenAndServeTLS(cfg.Security.TLSCertFile, cfg.Security.TLSKeyFile)
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}
