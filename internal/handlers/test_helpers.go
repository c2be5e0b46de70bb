package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/BradenHooton/expense-tracker/internal/auth"
	"github.com/BradenHooton/expense-tracker/internal/models"
	"github.com/BradenHooton/expense-tracker/internal/services"
	pkghttp "github.com/BradenHooton/expense-tracker/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewFormRequest creates a form-encoded POST like the login clients send
func NewFormRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, username string) *http.Request {
	claims := &models.TokenClaims{
		UserID:   userID,
		Username: username,
		Type:     models.TokenTypeAccess,
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

// WithURLParam sets a chi route parameter without going through a router
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks the status and error code and returns the decoded body
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc  func(ctx context.Context, req services.LoginRequest) (*services.TokenResponse, error)
	SignupFunc func(ctx context.Context, req services.SignupRequest) (*models.User, error)
}

func (m *MockAuthService) Login(ctx context.Context, req services.LoginRequest) (*services.TokenResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, req)
	}
	return &services.TokenResponse{AccessToken: "access_token_123", TokenType: "bearer"}, nil
}

func (m *MockAuthService) Signup(ctx context.Context, req services.SignupRequest) (*models.User, error) {
	if m.SignupFunc != nil {
		return m.SignupFunc(ctx, req)
	}
	return &models.User{ID: "user_" + req.Username, Username: req.Username, Email: req.Email}, nil
}

// MockUserService implements UserService for testing
type MockUserService struct {
	GetCurrentUserFunc func(ctx context.Context, userID string) (*models.User, error)
}

func (m *MockUserService) GetCurrentUser(ctx context.Context, userID string) (*models.User, error) {
	if m.GetCurrentUserFunc != nil {
		return m.GetCurrentUserFunc(ctx, userID)
	}
	return nil, models.ErrUnauthorized
}

// MockCategoryService implements CategoryService for testing
type MockCategoryService struct {
	CreateFunc func(ctx context.Context, ownerID, name string, description *string) (*models.Category, error)
	ListFunc   func(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Category, error)
}

func (m *MockCategoryService) Create(ctx context.Context, ownerID, name string, description *string) (*models.Category, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, ownerID, name, description)
	}
	return &models.Category{ID: "category_1", Name: name, Description: description, OwnerID: ownerID}, nil
}

func (m *MockCategoryService) List(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Category, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, ownerID, page)
	}
	return []*models.Category{}, nil
}

// MockExpenseService implements ExpenseService for testing
type MockExpenseService struct {
	CreateFunc func(ctx context.Context, ownerID string, input services.ExpenseInput) (*models.Expense, error)
	ListFunc   func(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Expense, error)
	GetFunc    func(ctx context.Context, ownerID, id string) (*models.Expense, error)
	UpdateFunc func(ctx context.Context, ownerID, id string, input services.ExpenseInput) (*models.Expense, error)
	DeleteFunc func(ctx context.Context, ownerID, id string) error
}

func (m *MockExpenseService) Create(ctx context.Context, ownerID string, input services.ExpenseInput) (*models.Expense, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, ownerID, input)
	}
	return &models.Expense{ID: "expense_1", Amount: input.Amount, Date: input.Date, CategoryID: input.CategoryID, OwnerID: ownerID}, nil
}

func (m *MockExpenseService) List(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Expense, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, ownerID, page)
	}
	return []*models.Expense{}, nil
}

func (m *MockExpenseService) Get(ctx context.Context, ownerID, id string) (*models.Expense, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, ownerID, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockExpenseService) Update(ctx context.Context, ownerID, id string, input services.ExpenseInput) (*models.Expense, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, ownerID, id, input)
	}
	return nil, models.ErrNotFound
}

func (m *MockExpenseService) Delete(ctx context.Context, ownerID, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, ownerID, id)
	}
	return nil
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.Err
}
