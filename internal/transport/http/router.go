package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/thrifthaven-api/internal/application/category"
	fileapp "github.com/thrifthaven-api/internal/application/file"
	"github.com/thrifthaven-api/internal/application/item"
	"github.com/thrifthaven-api/internal/application/notification"
	"github.com/thrifthaven-api/internal/application/session"
	"github.com/thrifthaven-api/internal/application/user"
	"github.com/thrifthaven-api/internal/config"
	"github.com/thrifthaven-api/internal/domain"
	"github.com/thrifthaven-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/thrifthaven-api/internal/infrastructure/jwt"
	s3infra "github.com/thrifthaven-api/internal/infrastructure/s3"
	"github.com/thrifthaven-api/internal/infrastructure/smtp"
	"github.com/thrifthaven-api/internal/infrastructure/sns"
	"github.com/thrifthaven-api/internal/transport/http/handler"
	appmiddleware "github.com/thrifthaven-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         *dynamo.UserRepo
	SessionRepo      *dynamo.SessionRepo
	ItemRepo         *dynamo.ItemRepo
	CategoryRepo     *dynamo.CategoryRepo
	NotificationRepo *dynamo.NotificationRepo
	FileRepo         *dynamo.FileRepo
	S3Store          *s3infra.Store
	Mailer           smtp.Mailer
	SMSSender        sns.SMSSender
	JWTProvider      *jwtinfra.Provider
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

	userSvc := user.NewService(deps.UserRepo, deps.SessionRepo)
	sessionSvc := session.NewService(session.ServiceDeps{
		SessionRepo:     deps.SessionRepo,
		UserRepo:        deps.UserRepo,
		JWTProvider:     deps.JWTProvider,
		RefreshTokenTTL: cfg.RefreshExpiry,
	})
	categorySvc := category.NewService(deps.CategoryRepo)
	itemSvc := item.NewService(item.ServiceDeps{
		ItemRepo:     deps.ItemRepo,
		UserRepo:     deps.UserRepo,
		CategoryRepo: deps.CategoryRepo,
		Mailer:       deps.Mailer,
		SMSSender:    deps.SMSSender,
	})
	notifSvc := notification.NewService(deps.NotificationRepo)
	fileSvc := fileapp.NewService(deps.S3Store, deps.FileRepo)

	healthH := handler.NewHealthHandler()
	userH := handler.NewUserHandler(userSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	itemH := handler.NewItemHandler(itemSvc)
	categoryH := handler.NewCategoryHandler(categorySvc)
	notifH := handler.NewNotificationHandler(notifSvc)
	fileH := handler.NewFileHandler(fileSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/users", userH.Register)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Get("/users/{id}", userH.Get)
			r.Put("/users/{id}", userH.Update)

			r.Get("/categories", categoryH.List)
			r.Get("/categories/{id}", categoryH.Get)

			// /items/pending is admin-only below; chi prefers the static
			// segment over {id}, so it never hits the detail route.
			r.Post("/items", itemH.Create)
			r.Get("/items", itemH.List)
			r.Get("/items/{id}", itemH.Get)
			r.Put("/items/{id}", itemH.Update)
			r.Post("/items/{id}/accept_offer", itemH.AcceptOffer)
			r.Post("/items/{id}/decline_offer", itemH.DeclineOffer)
			r.Post("/items/{id}/mark_sold", itemH.MarkSold)

			r.Get("/notifications", notifH.List)
			r.Post("/notifications/{id}/mark_read", notifH.MarkAsRead)
			r.Post("/notifications/mark_all_read", notifH.MarkAllRead)

			r.Post("/files/s3", fileH.Upload)
			r.Get("/files/s3/{id}", fileH.Download)
			r.Delete("/files/s3/{id}", fileH.Delete)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/items/pending", itemH.ListPending)
				r.Post("/items/{id}/approve", itemH.Approve)
				r.Post("/items/{id}/decline", itemH.Decline)

				r.Post("/categories", categoryH.Create)
				r.Delete("/categories/{id}", categoryH.Delete)

				r.Get("/users", userH.List)
				r.Delete("/users/{id}", userH.Delete)
			})
		})
	})

	return r
}
