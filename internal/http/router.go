package http

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/fitcoach-api/internal/access"
	"github.com/redmonkez12/fitcoach-api/internal/account"
	"github.com/redmonkez12/fitcoach-api/internal/auth"
	"github.com/redmonkez12/fitcoach-api/internal/billing"
	"github.com/redmonkez12/fitcoach-api/internal/config"
	apihttp "github.com/redmonkez12/fitcoach-api/internal/httputil"
	"github.com/redmonkez12/fitcoach-api/internal/logging"
	"github.com/redmonkez12/fitcoach-api/internal/ratelimit"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth           *auth.Handler
	Mobile         *auth.MobileHandler
	AuthMiddleware *auth.Middleware
	Account        *account.Handler
	Portal         *billing.PortalHandler
	StripeHook     http.Handler
	RevenueCatHook http.Handler
	Guard          *access.Guard
	Limiter        *ratelimit.Limiter
	// WebApp serves guarded page navigations. Nil answers them with 404.
	WebApp http.Handler
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Client-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(Metrics)
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	if cfg.Server.IsDevelopment() {
		logger.Info("Swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	limit := func(purpose string) func(http.Handler) http.Handler {
		if h.Limiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return h.Limiter.Middleware(purpose)
	}

	// Web auth
	r.Route("/auth", func(r chi.Router) {
		r.With(limit("register")).Post("/register", h.Auth.Register)
		r.With(limit("login")).Post("/login", h.Auth.Login)
		r.With(limit("identity")).Post("/identity", h.Auth.Identity)
		r.Post("/refresh", h.Auth.Refresh)
		r.Post("/logout", h.Auth.Logout)
		r.With(limit("forgot_password")).Post("/forgot-password", h.Auth.ForgotPassword)
		r.With(limit("reset_password")).Post("/reset-password", h.Auth.ResetPassword)
		r.Get("/email-change/confirm", h.Auth.ConfirmEmailChange)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware.RequireSession)
			r.Post("/email-change", h.Auth.RequestEmailChange)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/mobile", func(r chi.Router) {
			r.With(limit("mobile_login")).Post("/auth/login", h.Mobile.Login)
			r.With(limit("mobile_identity")).Post("/auth/identity", h.Mobile.Identity)

			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware.RequireMobileAuth)
				r.Get("/me", h.Account.Me)
				r.Post("/trial/start", h.Account.StartTrial)
			})
		})

		// Vendors sign the raw body; nothing may decode it first.
		r.Route("/webhooks", func(r chi.Router) {
			r.Method(http.MethodPost, "/stripe", h.StripeHook)
			r.Method(http.MethodPost, "/revenuecat", h.RevenueCatHook)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware.RequireSession)
			r.Post("/billing/portal", h.Portal.CreateSession)
		})
	})

	// Everything else is a page navigation.
	pages := h.WebApp
	if pages == nil {
		pages = http.HandlerFunc(handlePageNotFound)
	}
	if h.Guard != nil {
		pages = h.Guard.Middleware(pages)
	}
	r.NotFound(pages.ServeHTTP)

	return r
}

// NewWebAppProxy forwards page navigations to the web app at rawURL.
func NewWebAppProxy(rawURL string) (http.Handler, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return httputil.NewSingleHostReverseProxy(target), nil
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	apihttp.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}

func handlePageNotFound(w http.ResponseWriter, r *http.Request) {
	apihttp.RespondError(w, "not found", http.StatusNotFound)
}
