package routes

import (
	"net/http"

	"github.com/BradenHooton/expense-tracker/internal/auth"
	"github.com/BradenHooton/expense-tracker/internal/handlers"
	"github.com/BradenHooton/expense-tracker/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Handlers groups everything mounted by RegisterRoutes
type Handlers struct {
	Health   *handlers.HealthHandler
	Auth     *handlers.AuthHandler
	User     *handlers.UserHandler
	Category *handlers.CategoryHandler
	Expense  *handlers.ExpenseHandler
	Metrics  http.Handler // nil leaves /metrics unmounted
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, tokenManager *auth.TokenManager, apiRequestsPerMinute int) {
	// Public routes
	router.Get("/", h.Health.Root)
	router.Get("/health", h.Health.Health)
	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics)
	}

	// Login endpoints are guarded per username inside the auth service
	router.Post("/signup", h.Auth.Signup)
	router.Post("/login", h.Auth.Login)
	router.Post("/token", h.Auth.Token)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))
		r.Use(middleware.RateLimitByUser(apiRequestsPerMinute))

		r.Get("/users/me/", h.User.Me)
		h.Category.RegisterRoutes(r)
		h.Expense.RegisterRoutes(r)
	})
}
