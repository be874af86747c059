// internal/httpapi/server.go
//
// HTTP surface of the launch engine: the platform keyset, the OAuth2
// token endpoint, launch and 1.3 authorization endpoints, the deep
// linking return endpoint and the basic outcomes service.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/campushq/ltibridge/internal/idtoken"
	"github.com/campushq/ltibridge/internal/keys"
	"github.com/campushq/ltibridge/internal/launch"
	"github.com/campushq/ltibridge/internal/obs"
	"github.com/campushq/ltibridge/internal/outcomes"
	"github.com/campushq/ltibridge/internal/token"
	"github.com/campushq/ltibridge/internal/tool"
)

// Server bundles the engine services behind the HTTP routes.
type Server struct {
	Tools        tool.Store
	Tokens       *token.Service
	Keys         *keys.Manager
	Verifier     *idtoken.Verifier
	Orchestrator *launch.Orchestrator
	Outcomes     *outcomes.Service
	Log          *logrus.Logger

	// PublicURL is the externally visible base URL, used when building
	// service endpoints handed to tools.
	PublicURL string

	// Token endpoint rate limiting, per caller IP.
	TokenRateLimit float64
	TokenRateBurst int

	CORSOrigins   []string
	EnableMetrics bool

	pending pendingLaunches
	limits  *ipLimiter
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	if s.limits == nil {
		s.limits = newIPLimiter(s.TokenRateLimit, s.TokenRateBurst)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	if s.EnableMetrics {
		r.Use(obs.Instrument)
		r.Method(http.MethodGet, "/metrics", obs.Handler())
	}

	r.Get("/.well-known/jwks.json", s.handleJWKS)
	r.Post("/oauth/token", s.handleToken)

	r.Route("/lti", func(r chi.Router) {
		r.Post("/launch", s.handleLaunch)
		r.Get("/auth", s.handleAuthorize)
		r.Post("/auth", s.handleAuthorize)
		r.Post("/deeplink/{toolID}", s.handleDeepLinkReturn)
		r.Post("/outcomes", s.handleOutcomes)
		r.With(s.requireScope("basicoutcome")).Get("/results/{sourcedID}", s.handleReadResult)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func (s *Server) logger() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}
