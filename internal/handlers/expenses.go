package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/BradenHooton/expense-tracker/internal/auth"
	"github.com/BradenHooton/expense-tracker/internal/models"
	"github.com/BradenHooton/expense-tracker/internal/services"
	pkghttp "github.com/BradenHooton/expense-tracker/pkg/http"
	"github.com/go-chi/chi/v5"
)

type ExpenseService interface {
	Create(ctx context.Context, ownerID string, input services.ExpenseInput) (*models.Expense, error)
	List(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Expense, error)
	Get(ctx context.Context, ownerID, id string) (*models.Expense, error)
	Update(ctx context.Context, ownerID, id string, input services.ExpenseInput) (*models.Expense, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type ExpenseHandler struct {
	service ExpenseService
}

func NewExpenseHandler(service ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{service: service}
}

// ExpenseRequest is the body of both create and update
type ExpenseRequest struct {
	Amount      float64 `json:"amount" validate:"gt=0"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	CategoryID  *string `json:"category_id" validate:"omitempty,uuid"`
}

type ExpenseResponse struct {
	ID          string  `json:"id"`
	Amount      float64 `json:"amount"`
	Description *string `json:"description"`
	Date        string  `json:"date"`
	CategoryID  *string `json:"category_id"`
	UserID      string  `json:"user_id"`
}

func expenseModelToResponse(expense *models.Expense) *ExpenseResponse {
	return &ExpenseResponse{
		ID:          expense.ID,
		Amount:      expense.Amount,
		Description: expense.Description,
		Date:        expense.Date.Format(dateLayout),
		CategoryID:  expense.CategoryID,
		UserID:      expense.OwnerID,
	}
}

func (h *ExpenseHandler) RegisterRoutes(router chi.Router) {
	router.Route("/expenses", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Not authenticated")
		return
	}

	input, ok := decodeExpenseRequest(w, r)
	if !ok {
		return
	}

	expense, err := h.service.Create(r.Context(), claims.UserID, input)
	if err != nil {
		writeExpenseError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, expenseModelToResponse(expense))
}

func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Not authenticated")
		return
	}

	page, err := parsePagination(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	expenses, err := h.service.List(r.Context(), claims.UserID, page)
	if err != nil {
		writeExpenseError(w, err)
		return
	}

	resp := make([]*ExpenseResponse, 0, len(expenses))
	for _, expense := range expenses {
		resp = append(resp, expenseModelToResponse(expense))
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Not authenticated")
		return
	}

	id, ok := pathID(r)
	if !ok {
		pkghttp.WriteNotFound(w, "Expense not found")
		return
	}

	expense, err := h.service.Get(r.Context(), claims.UserID, id)
	if err != nil {
		writeExpenseError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, expenseModelToResponse(expense))
}

func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Not authenticated")
		return
	}

	id, ok := pathID(r)
	if !ok {
		pkghttp.WriteNotFound(w, "Expense not found")
		return
	}

	input, ok := decodeExpenseRequest(w, r)
	if !ok {
		return
	}

	expense, err := h.service.Update(r.Context(), claims.UserID, id, input)
	if err != nil {
		writeExpenseError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, expenseModelToResponse(expense))
}

func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Not authenticated")
		return
	}

	id, ok := pathID(r)
	if !ok {
		pkghttp.WriteNotFound(w, "Expense not found")
		return
	}

	if err := h.service.Delete(r.Context(), claims.UserID, id); err != nil {
		writeExpenseError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeExpenseRequest writes a 400 and returns false when the body is unusable
func decodeExpenseRequest(w http.ResponseWriter, r *http.Request) (services.ExpenseInput, bool) {
	var req ExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return services.ExpenseInput{}, false
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return services.ExpenseInput{}, false
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		pkghttp.WriteBadRequest(w, "date must be formatted as YYYY-MM-DD")
		return services.ExpenseInput{}, false
	}

	return services.ExpenseInput{
		Amount:      req.Amount,
		Description: req.Description,
		Date:        date,
		CategoryID:  req.CategoryID,
	}, true
}

func writeExpenseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Expense not found")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Not enough permissions")
	case errors.Is(err, models.ErrInvalidCategory):
		pkghttp.WriteBadRequest(w, "Category not found")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
