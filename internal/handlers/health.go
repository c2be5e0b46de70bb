package handlers

import (
	"context"
	"net/http"

	pkghttp "github.com/BradenHooton/expense-tracker/pkg/http"
)

// HealthChecker is satisfied by *database.DB
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db HealthChecker
}

func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

// Root answers GET /
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Expense Tracker API"})
}

// Health answers GET /health with 503 when the database is unreachable
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.HealthCheck(r.Context()); err != nil {
		pkghttp.WriteError(w, http.StatusServiceUnavailable, "unhealthy", "Database unavailable")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
