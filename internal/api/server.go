package api

import (
	"net/http"

	"github.com/forcessl/forcessl/internal/api/middleware"
	"github.com/forcessl/forcessl/internal/config"
	"github.com/forcessl/forcessl/internal/database"
	"github.com/forcessl/forcessl/internal/forcessl"
	"github.com/forcessl/forcessl/internal/plugin"
	"github.com/forcessl/forcessl/internal/restapi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router    *chi.Mux
	cfg       *config.Config
	trust     forcessl.Trust
	rest      *restapi.API
	plugin    *plugin.Plugin
	posts     database.PostRepository
	users     database.UserRepository
	limiter   *middleware.IPRateLimiter
	guard     *middleware.LoginGuard
	jwtSecret []byte
	gatherer  prometheus.Gatherer
}

// NewServer creates the HTTP handler with all routes mounted. The REST API
// is mounted only when rest is loaded. gatherer may be nil, in which case
// /metrics is not served.
func NewServer(
	db *database.DB,
	cfg *config.Config,
	rest *restapi.API,
	p *plugin.Plugin,
	jwtSecret []byte,
	gatherer prometheus.Gatherer,
) *Server {
	rlCfg := middleware.DefaultRateLimitConfig()
	rlCfg.Rate = rate.Limit(cfg.RateLimit)
	rlCfg.Burst = cfg.RateBurst

	s := &Server{
		router:    chi.NewRouter(),
		cfg:       cfg,
		trust:     cfg.Trust(),
		rest:      rest,
		plugin:    p,
		posts:     database.NewPostRepository(db),
		users:     database.NewUserRepository(db),
		limiter:   middleware.NewIPRateLimiter(rlCfg),
		guard:     middleware.NewLoginGuard(middleware.DefaultLoginGuardConfig()),
		jwtSecret: jwtSecret,
		gatherer:  gatherer,
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
	s.guard.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack. CapturePeer must see the socket address
	// before RealIP replaces it.
	r.Use(middleware.CapturePeer)
	r.Use(chimw.RequestID)
	r.Use(middleware.RealIP(s.trust))
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders(s.cfg.TLSEnabled(), s.trust))

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/wp-admin", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/wp-admin/", http.StatusMovedPermanently)
	})
	r.Get("/wp-admin/", s.handleAdmin)

	if !s.rest.Loaded() {
		return
	}

	r.Route(restapi.Prefix, func(r chi.Router) {
		// The SSL filter runs ahead of everything else in the API, including
		// route matching, so unknown routes are redirected too.
		s.plugin.Register(r)

		r.Use(middleware.RateLimit(s.limiter))
		r.Use(middleware.CORS(middleware.ParseCORSOrigins(s.cfg.CORSOrigins)))

		r.NotFound(s.handleNoRoute)
		r.MethodNotAllowed(s.handleNoRoute)

		r.Get("/", s.handleIndex)

		r.Route("/"+restapi.NamespaceCore+"/posts", func(r chi.Router) {
			r.Get("/", s.handleListPosts)
			r.Get("/{id:[0-9]+}", s.handleGetPost)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireBearer(s.jwtSecret))
				r.Post("/", s.handleCreatePost)
				r.Delete("/{id:[0-9]+}", s.handleDeletePost)
			})
		})

		r.Post("/"+restapi.NamespaceAuth+"/token", s.handleToken)
	})
}

// handleHealth returns basic health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleNoRoute answers REST API paths that match no route.
func (s *Server) handleNoRoute(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "rest_no_route", "No route was found matching the URL and request method.")
}

// siteURL returns the scheme and host the client used to reach us.
func (s *Server) siteURL(r *http.Request) string {
	scheme := "http"
	if forcessl.FromHTTP(r, s.trust).Secure {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
