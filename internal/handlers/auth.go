package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/expense-tracker/internal/models"
	"github.com/BradenHooton/expense-tracker/internal/services"
	pkgauth "github.com/BradenHooton/expense-tracker/pkg/auth"
	pkghttp "github.com/BradenHooton/expense-tracker/pkg/http"
)

const (
	incorrectCredentialsMessage = "Incorrect username or password"
	maxLoginFormMemory          = 1 << 20
	blockedMessageFormat        = "Account temporarily blocked due to too many failed login attempts. Please try again in %d minutes and %d seconds."
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, req services.LoginRequest) (*services.TokenResponse, error)
	Signup(ctx context.Context, req services.SignupRequest) (*models.User, error)
}

// AuthHandler serves signup and both password login endpoints
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// SignupRequest represents the request body for signup
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
}

// LoginForm is the form body accepted by /login and /token
type LoginForm struct {
	GrantType string `form:"grant_type" validate:"omitempty,oneof=password"`
	Username  string `form:"username" validate:"required"`
	Password  string `form:"password" validate:"required"`
}

// Signup registers a new account
//
// @Router /signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.Signup(r.Context(), services.SignupRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmailTaken):
			pkghttp.WriteBadRequest(w, "Email already registered")
		case errors.Is(err, models.ErrUsernameTaken):
			pkghttp.WriteBadRequest(w, "Username already taken")
		case pkgauth.IsPasswordValidationError(err):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, userModelToResponse(user))
}

// Login handles the form login used by the web client
//
// @Router /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.passwordLogin(w, r, "/login")
}

// Token handles the OAuth2 password grant
//
// @Router /token [post]
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	h.passwordLogin(w, r, "/token")
}

func (h *AuthHandler) passwordLogin(w http.ResponseWriter, r *http.Request, endpoint string) {
	form, err := parseLoginForm(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.Login(r.Context(), services.LoginRequest{
		Username:  form.Username,
		Password:  form.Password,
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		Endpoint:  endpoint,
	})
	if err != nil {
		h.writeLoginError(w, endpoint, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, endpoint string, err error) {
	var rateErr *models.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		seconds := rateErr.RetryAfterSeconds()
		pkghttp.WriteTooManyRequests(w, seconds, BlockedMessage(seconds))
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, incorrectCredentialsMessage)
	default:
		h.logger.Error("login failed", slog.String("endpoint", endpoint), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// BlockedMessage renders the 429 message for a block with the given seconds remaining
func BlockedMessage(retryAfterSeconds int) string {
	return fmt.Sprintf(blockedMessageFormat, retryAfterSeconds/60, retryAfterSeconds%60)
}

func parseLoginForm(r *http.Request) (*LoginForm, error) {
	contentType := r.Header.Get("Content-Type")
	var err error
	switch {
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		err = r.ParseForm()
	case strings.HasPrefix(contentType, "multipart/form-data"):
		err = r.ParseMultipartForm(maxLoginFormMemory)
	default:
		return nil, errors.New("request body must be form encoded")
	}
	if err != nil {
		return nil, errors.New("invalid form body")
	}

	form := &LoginForm{
		GrantType: r.PostForm.Get("grant_type"),
		Username:  r.PostForm.Get("username"),
		Password:  r.PostForm.Get("password"),
	}
	if err := ValidateRequest(form); err != nil {
		return nil, err
	}
	return form, nil
}
