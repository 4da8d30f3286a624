package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FACorreiaa/go-account-service/internal/api/auth"
	"github.com/FACorreiaa/go-account-service/internal/api/sync"
)

// Config carries the handler dependencies for the router.
type Config struct {
	AuthHandler            *auth.AuthHandler
	SyncHandler            *sync.Handler
	AuthenticateMiddleware func(http.Handler) http.Handler
}

// SetupRouter wires the HTTP surface. Server-wide middleware (request ID,
// logger, recoverer) is applied by main before mounting this router.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public account routes.
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/logout", cfg.AuthHandler.Logout)
			r.Post("/auth/refresh", cfg.AuthHandler.RefreshToken)
			r.Post("/auth/token/revoke", cfg.AuthHandler.RevokeToken)
			r.Post("/auth/password/forgot", cfg.AuthHandler.ForgotPassword)
			r.Post("/auth/password/reset", cfg.AuthHandler.ResetPassword)
			r.Post("/auth/verify-email", cfg.AuthHandler.VerifyEmail)
			r.Post("/auth/resend-verification", cfg.AuthHandler.ResendVerification)
		})

		// Routes that require a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Get("/auth/me", cfg.AuthHandler.Me)
			r.Post("/auth/password/change", cfg.AuthHandler.ChangePassword)
			r.Post("/auth/users/activate", cfg.AuthHandler.ActivateUser)
			r.Post("/auth/users/deactivate", cfg.AuthHandler.DeactivateUser)
			r.Delete("/auth/account", cfg.AuthHandler.DeleteAccount)
			r.Post("/auth/users/soft-delete", cfg.AuthHandler.SoftDeleteUser)
		})

		// Reconciliation against the upstream profile database.
		if cfg.SyncHandler != nil {
			r.Get("/sync/preview", cfg.SyncHandler.Preview)
			r.Post("/sync/users", cfg.SyncHandler.Apply)
		}
	})

	return r
}
