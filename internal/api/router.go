// Package api wires the HTTP surface: post ingress, account status, OAuth and
// operator endpoints.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pysugar/postpilot/internal/api/handlers"
	"github.com/pysugar/postpilot/internal/api/middleware"
	"github.com/pysugar/postpilot/internal/auth/credential"
	"github.com/pysugar/postpilot/internal/auth/linkedin"
	"github.com/pysugar/postpilot/internal/posts"
	"github.com/pysugar/postpilot/internal/scheduler"
	"gorm.io/gorm"
)

type Deps struct {
	DB          *gorm.DB
	Posts       *posts.Service
	Credentials *credential.DBStore
	Scheduler   *scheduler.Scheduler
	OAuth       *linkedin.Handler

	// AdminPassword enables basic auth on /api when set.
	AdminPassword string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handlers.HealthHandler())

	// OAuth flow (browser redirects, no admin auth)
	r.Get("/auth/login", d.OAuth.HandleLogin)
	r.Get("/auth/callback", d.OAuth.HandleCallback)
	r.Get("/auth/simulate-redirect", d.OAuth.SimulateRedirect)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AdminAuth(d.AdminPassword))

		r.Get("/version", handlers.VersionHandler())

		// Posts
		r.Get("/posts", handlers.ListPostsHandler(d.Posts))
		r.Post("/posts", handlers.CreatePostHandler(d.Posts))
		r.Get("/posts/{id}", handlers.GetPostHandler(d.Posts))
		r.Delete("/posts/{id}", handlers.DeletePostHandler(d.Posts))

		// Connected account
		r.Get("/user", handlers.UserHandler(d.Credentials))
		r.Delete("/user", handlers.DisconnectHandler(d.Credentials))
		r.Get("/auth/url", d.OAuth.AuthURLHandler)
		r.Post("/auth/simulate", d.OAuth.HandleSimulate)

		// Operator
		r.Post("/scheduler/run", handlers.RunSchedulerHandler(d.Scheduler))

		// Guestbook
		r.Get("/comments", handlers.ListCommentsHandler(d.DB))
		r.Post("/comments", handlers.CreateCommentHandler(d.DB))
	})

	return r
}
