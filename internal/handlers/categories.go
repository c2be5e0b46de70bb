package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BradenHooton/expense-tracker/internal/auth"
	"github.com/BradenHooton/expense-tracker/internal/models"
	pkghttp "github.com/BradenHooton/expense-tracker/pkg/http"
	"github.com/go-chi/chi/v5"
)

type CategoryService interface {
	Create(ctx context.Context, ownerID, name string, description *string) (*models.Category, error)
	List(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Category, error)
}

type CategoryHandler struct {
	service CategoryService
}

func NewCategoryHandler(service CategoryService) *CategoryHandler {
	return &CategoryHandler{service: service}
}

type CreateCategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

type CategoryResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	UserID      string  `json:"user_id"`
}

func categoryModelToResponse(category *models.Category) *CategoryResponse {
	return &CategoryResponse{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
		UserID:      category.OwnerID,
	}
}

func (h *CategoryHandler) RegisterRoutes(router chi.Router) {
	router.Route("/categories", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
	})
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Not authenticated")
		return
	}

	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	category, err := h.service.Create(r.Context(), claims.UserID, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Category name is required")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, categoryModelToResponse(category))
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
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

	categories, err := h.service.List(r.Context(), claims.UserID, page)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := make([]*CategoryResponse, 0, len(categories))
	for _, category := range categories {
		resp = append(resp, categoryModelToResponse(category))
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
