package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/BradenHooton/expense-tracker/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// parsePagination reads skip and limit; absent values are left for the service to default
func parsePagination(r *http.Request) (models.Pagination, error) {
	var page models.Pagination
	query := r.URL.Query()

	if raw := query.Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return page, fmt.Errorf("skip must be a non-negative integer")
		}
		page.Skip = skip
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return page, fmt.Errorf("limit must be a positive integer")
		}
		page.Limit = limit
	}
	return page, nil
}

// pathID returns the {id} URL parameter when it is a well-formed UUID
func pathID(r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}
