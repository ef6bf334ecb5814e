package httpapi

import (
	"context"
	"net/http"

	"github.com/MrEthical07/bankauth"
	"github.com/MrEthical07/bankauth/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// AuthService is the engine surface the HTTP layer drives. *bankauth.Engine
// implements it.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*bankauth.LoginResult, error)
	ConfirmLoginTwoFactor(ctx context.Context, pendingID, code string) (*bankauth.LoginResult, error)
	Refresh(ctx context.Context, rawRefresh string) (*bankauth.SessionTokens, error)
	Logout(ctx context.Context, rawRefresh string) error
	Validate(ctx context.Context, accessToken string) (*bankauth.AuthResult, error)
	VerifyCSRF(ctx context.Context, auth *bankauth.AuthResult, presented string) error
	SetupTwoFactor(ctx context.Context, userID string) (*bankauth.TwoFactorSetup, error)
	ConfirmTwoFactorSetup(ctx context.Context, userID, code string) error
	CreateUser(ctx context.Context, actorID string, in bankauth.CreateUserInput) (*bankauth.PublicUser, error)
	Health(ctx context.Context) bankauth.HealthStatus
}

// Options configures [New].
type Options struct {
	Service AuthService
	Cookie  bankauth.CookieConfig
	// CSRFHeader defaults to X-CSRF-Token.
	CSRFHeader string
	Logger     *zap.Logger
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// Registerer receives the HTTP request metrics. Nil disables them.
	Registerer prometheus.Registerer
	// Throttle, when set, runs in front of every route.
	Throttle *middleware.Throttle
	// TrustedProxies lists the CIDRs whose X-Forwarded-For and X-Real-IP
	// headers are believed. Empty means the socket address is always used.
	TrustedProxies []string
}

// Server holds the handlers for the authentication endpoints.
type Server struct {
	svc      AuthService
	cookies  bankauth.CookieConfig
	csrf     string
	log      *zap.Logger
	validate *validator.Validate
	metrics  http.Handler
	httpm    *httpMetrics
	throttle *middleware.Throttle
	realIP   *middleware.RealIP
}

// New builds a Server. It fails when a trusted proxy entry does not parse or
// the request metrics cannot be registered.
func New(opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	csrf := opts.CSRFHeader
	if csrf == "" {
		csrf = "X-CSRF-Token"
	}

	s := &Server{
		svc:      opts.Service,
		cookies:  opts.Cookie,
		csrf:     csrf,
		log:      log.Named("http"),
		validate: newValidator(),
		metrics:  opts.Metrics,
		throttle: opts.Throttle,
	}
	realIP, err := middleware.NewRealIP(opts.TrustedProxies)
	if err != nil {
		return nil, err
	}
	s.realIP = realIP
	if opts.Registerer != nil {
		m, err := newHTTPMetrics(opts.Registerer)
		if err != nil {
			return nil, err
		}
		s.httpm = m
	}
	return s, nil
}

// Routes returns the router with every endpoint mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(s.realIP.Handler)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ClientContext)
	r.Use(bindRequestID)
	if s.httpm != nil {
		r.Use(s.httpm.instrument)
	}
	if s.throttle != nil {
		r.Use(s.throttle.Handler)
	}

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Post("/login", s.handleLogin)
	r.Post("/2fa/challenge", s.handleTwoFactorChallenge)
	r.Post("/refresh", s.handleRefresh)
	r.Post("/logout", s.handleLogout)

	requireAccess := middleware.RequireAccess(s.svc, s.cookies.AccessName, s.writeError)
	requireCSRF := middleware.RequireCSRF(s.svc, s.csrf, s.writeError)

	r.Group(func(r chi.Router) {
		r.Use(requireAccess)
		r.Use(requireCSRF)

		r.Get("/me", s.handleMe)
		r.Post("/2fa/setup", s.handleTwoFactorSetup)
		r.Post("/2fa/verify-setup", s.handleTwoFactorVerifySetup)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(bankauth.RoleAdmin, s.writeError))
			r.Use(middleware.RequireEnrolled(s.writeError))
			r.Post("/admin/users", s.handleCreateUser)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method_not_allowed", Message: "Method not allowed"})
	})

	return r
}

// bindRequestID hands chi's request id to the engine and echoes it back.
func bindRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chimw.GetReqID(r.Context())
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(bankauth.WithRequestID(r.Context(), id)))
	})
}
