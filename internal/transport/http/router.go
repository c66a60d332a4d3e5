package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/altrivo/auth-service/internal/application/auth"
	"github.com/altrivo/auth-service/internal/application/otp"
	"github.com/altrivo/auth-service/internal/application/session"
	"github.com/altrivo/auth-service/internal/application/user"
	"github.com/altrivo/auth-service/internal/config"
	"github.com/altrivo/auth-service/internal/domain"
	"github.com/altrivo/auth-service/internal/infrastructure/dynamo"
	googleinfra "github.com/altrivo/auth-service/internal/infrastructure/google"
	jwtinfra "github.com/altrivo/auth-service/internal/infrastructure/jwt"
	s3infra "github.com/altrivo/auth-service/internal/infrastructure/s3"
	"github.com/altrivo/auth-service/internal/infrastructure/smtp"
	"github.com/altrivo/auth-service/internal/infrastructure/sns"
	"github.com/altrivo/auth-service/internal/transport/http/handler"
	appmiddleware "github.com/altrivo/auth-service/internal/transport/http/middleware"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo       *dynamo.UserRepo
	SessionRepo    *dynamo.SessionRepo
	OTPStore       otp.Store
	S3Store        *s3infra.Store
	Mailer         smtp.Mailer
	SMSSender      sns.SMSSender
	JWTProvider    *jwtinfra.Provider
	GoogleVerifier *googleinfra.Verifier
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	otpSvc := otp.NewService(deps.OTPStore, deps.Mailer)
	authDeps := auth.ServiceDeps{
		OTPService:      otpSvc,
		UserRepo:        deps.UserRepo,
		SessionRepo:     deps.SessionRepo,
		JWTProvider:     deps.JWTProvider,
		SMSSender:       deps.SMSSender,
		RefreshTokenDur: cfg.RefreshTokenDur,
	}
	if deps.GoogleVerifier != nil {
		authDeps.GoogleVerifier = deps.GoogleVerifier
	}
	authSvc := auth.NewService(authDeps)
	sessionSvc := session.NewService(deps.SessionRepo, deps.UserRepo, deps.JWTProvider, cfg.RefreshTokenDur)
	userSvc := user.NewService(deps.UserRepo, deps.SessionRepo, deps.S3Store, s3infra.ContentTypeFor)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	userH := handler.NewUserHandler(userSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.Get("/test", healthH.Test)
		r.Post("/test", healthH.Test)

		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/auth/verify-account", authH.VerifyRegistration)
		r.With(sensitiveRL.Limit).Post("/auth/forgot-password", authH.ForgotPassword)
		r.With(sensitiveRL.Limit).Post("/auth/verify-forgot-password", authH.VerifyForgotPassword)
		r.With(sensitiveRL.Limit).Post("/auth/reset-password", authH.ResetPassword)
		r.With(sensitiveRL.Limit).Post("/auth/google", authH.GoogleLogin)

		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			// Any authenticated user (self-or-admin enforced in the handler)
			r.Get("/users/{id}", userH.Get)
			r.Put("/users/{id}", userH.Update)
			r.Post("/users/avatar", userH.UploadAvatar)
			r.Get("/users/{id}/avatar", userH.GetAvatar)

			// Admin only
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))
				r.Get("/users", userH.List)
				r.Delete("/users/{id}", userH.Delete)
			})
		})
	})

	return r
}
