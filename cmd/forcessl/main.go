package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/forcessl/forcessl/internal/api"
	"github.com/forcessl/forcessl/internal/api/middleware"
	"github.com/forcessl/forcessl/internal/config"
	"github.com/forcessl/forcessl/internal/database"
	"github.com/forcessl/forcessl/internal/database/models"
	"github.com/forcessl/forcessl/internal/forcessl"
	"github.com/forcessl/forcessl/internal/metrics"
	"github.com/forcessl/forcessl/internal/plugin"
	"github.com/forcessl/forcessl/internal/restapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/acme/autocert"
)

func main() {
	startTime := time.Now()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	slog.SetDefault(slog.New(cfg.SlogHandler(os.Stdout)))

	slog.Info("starting forcessl",
		"version", plugin.Version,
		"http_port", cfg.HTTPPort,
		"https_port", cfg.HTTPSPort,
		"tls", cfg.TLSEnabled(),
		"rest_api", cfg.RESTAPI,
		"trust_forwarded_proto", cfg.TrustForwardedProto,
		"data_dir", cfg.DataDir,
	)

	// Open database and run migrations.
	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := seedAPIUser(context.Background(), db, cfg); err != nil {
		slog.Error("failed to provision api user", "error", err)
		os.Exit(1)
	}

	jwtSecret, err := cfg.JWTSecretBytes()
	if err != nil {
		slog.Error("failed to load jwt secret", "error", err)
		os.Exit(1)
	}

	rest := restapi.New(cfg.RESTAPI)
	policy := forcessl.NewPolicy(cfg.Trust(), cfg.RedirectPort())
	p := plugin.New(rest, policy)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCollector(&policy.Stats, database.NewPostRepository(db), p, startTime),
	)

	handler := api.NewServer(db, cfg, rest, p, jwtSecret, registry)
	defer handler.Close()

	listeners := buildListeners(cfg, handler, policy)

	// Start servers in goroutines.
	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		l := l
		go func() {
			slog.Info("server listening", "addr", l.srv.Addr, "tls", l.tls)
			if err := l.serve(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("%s: %w", l.srv.Addr, err)
			}
		}()
	}

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
		exitCode = 1
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down servers")
	for _, l := range listeners {
		if err := l.srv.Shutdown(ctx); err != nil {
			slog.Error("http server shutdown error", "addr", l.srv.Addr, "error", err)
			exitCode = 1
		}
	}

	slog.Info("forcessl stopped",
		"redirected", policy.Stats.Redirected(),
		"passed_through", policy.Stats.PassedThrough(),
		"malformed", policy.Stats.Malformed(),
	)
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// listener is one http.Server and the call that runs it.
type listener struct {
	srv   *http.Server
	tls   bool
	serve func() error
}

func newHTTPServer(port int, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// buildListeners returns the servers to run. Without TLS a single plain HTTP
// server carries everything and SSL enforcement relies on a TLS-terminating
// proxy in front. With TLS the HTTPS server carries the full router and the
// plain HTTP server either carries it too (so only the REST API is forced)
// or, with redirect-all, upgrades every request.
func buildListeners(cfg *config.Config, handler http.Handler, policy *forcessl.Policy) []listener {
	if !cfg.TLSEnabled() {
		srv := newHTTPServer(cfg.HTTPPort, handler)
		return []listener{{srv: srv, serve: srv.ListenAndServe}}
	}

	var plain http.Handler = handler
	if cfg.RedirectAll {
		plain = middleware.HTTPSRedirectHandler(policy)
	}

	httpsSrv := newHTTPServer(cfg.HTTPSPort, handler)
	serveTLS := func() error { return httpsSrv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey) }

	if cfg.ACMEDomain != "" {
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.ACMEDomain),
			Cache:      autocert.DirCache(filepath.Join(cfg.DataDir, "acme")),
			Email:      cfg.ACMEEmail,
		}
		httpsSrv.TLSConfig = m.TLSConfig()
		serveTLS = func() error { return httpsSrv.ListenAndServeTLS("", "") }

		// HTTP-01 challenges arrive on the plain listener.
		plain = m.HTTPHandler(plain)
		slog.Info("acme enabled", "domain", cfg.ACMEDomain)
	}

	httpSrv := newHTTPServer(cfg.HTTPPort, plain)
	return []listener{
		{srv: httpsSrv, tls: true, serve: serveTLS},
		{srv: httpSrv, serve: httpSrv.ListenAndServe},
	}
}

// seedAPIUser creates or updates the configured REST API user.
func seedAPIUser(ctx context.Context, db *database.DB, cfg *config.Config) error {
	if cfg.APIUser == "" {
		slog.Warn("no api-user configured, write endpoints will reject every token request")
		return nil
	}

	hash, err := database.HashPassword(cfg.APIPassword)
	if err != nil {
		return fmt.Errorf("hashing api password: %w", err)
	}

	user := &models.User{
		Username:     cfg.APIUser,
		DisplayName:  cfg.APIUser,
		PasswordHash: hash,
	}
	if err := database.NewUserRepository(db).Upsert(ctx, user); err != nil {
		return err
	}

	slog.Info("api user provisioned", "username", user.Username, "user_id", user.ID)
	return nil
}
