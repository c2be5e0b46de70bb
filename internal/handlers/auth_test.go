package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/BradenHooton/expense-tracker/internal/handlers"
	"github.com/BradenHooton/expense-tracker/internal/models"
	"github.com/BradenHooton/expense-tracker/internal/services"
	pkgauth "github.com/BradenHooton/expense-tracker/pkg/auth"
	pkglogger "github.com/BradenHooton/expense-tracker/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func loginForm(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

func TestLogin_Success(t *testing.T) {
	var got services.LoginRequest
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, req services.LoginRequest) (*services.TokenResponse, error) {
			got = req
			return &services.TokenResponse{AccessToken: "access_token_123", TokenType: "bearer"}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, services.NewTestLogger())
	w := httptest.NewRecorder()
	handler.Login(w, handlers.NewFormRequest("/login", loginForm("alice", "Correct-Horse1")))

	var resp services.TokenResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "access_token_123", resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "192.0.2.1", got.IPAddress)
	assert.Equal(t, "/login", got.Endpoint)
}

func TestLogin_IncorrectCredentials(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, req services.LoginRequest) (*services.TokenResponse, error) {
			return nil, models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, services.NewTestLogger())
	w := httptest.NewRecorder()
	handler.Login(w, handlers.NewFormRequest("/login", loginForm("alice", "wrong")))

	resp := handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	assert.Equal(t, "Incorrect username or password", resp.Message)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}

func TestLogin_Blocked(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, req services.LoginRequest) (*services.TokenResponse, error) {
			return nil, &models.RateLimitError{RetryAfter: 1799 * time.Second}
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, services.NewTestLogger())
	w := httptest.NewRecorder()
	handler.Login(w, handlers.NewFormRequest("/login", loginForm("alice", "Correct-Horse1")))

	resp := handlers.AssertErrorResponse(t, w, http.StatusTooManyRequests, "rate_limit_exceeded")
	assert.Equal(t, "Account temporarily blocked due to too many failed login attempts. Please try again in 29 minutes and 59 seconds.", resp.Message)
	assert.Equal(t, "1799", w.Header().Get("Retry-After"))
}

func TestLogin_StorageFailure(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, req services.LoginRequest) (*services.TokenResponse, error) {
			return nil, models.ErrStorageUnavailable
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil, services.NewTestLogger())
	w := httptest.NewRecorder()
	handler.Login(w, handlers.NewFormRequest("/login", loginForm("alice", "whatever")))

	handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
}

func TestLogin_MalformedRequests(t *testing.T) {
	called := false
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, req services.LoginRequest) (*services.TokenResponse, error) {
			called = true
			return nil, nil
		},
	}
	handler := handlers.NewAuthHandler(mockAuth, nil, services.NewTestLogger())

	t.Run("json body", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Login(w, handlers.NewTestRequest(t, http.MethodPost, "/login", map[string]string{"username": "alice", "password": "x"}))
		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	})

	t.Run("missing password", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Login(w, handlers.NewFormRequest("/login", url.Values{"username": {"alice"}}))
		resp := handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
		assert.Contains(t, resp.Message, "password")
	})

	t.Run("unsupported grant type", func(t *testing.T) {
		form := loginForm("alice", "x")
		form.Set("grant_type", "client_credentials")
		w := httptest.NewRecorder()
		handler.Token(w, handlers.NewFormRequest("/token", form))
		resp := handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
		assert.Contains(t, resp.Message, "grant_type")
	})

	assert.False(t, called)
}

func TestToken_PasswordGrant(t *testing.T) {
	var endpoint string
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, req services.LoginRequest) (*services.TokenResponse, error) {
			endpoint = req.Endpoint
			return &services.TokenResponse{AccessToken: "tok", TokenType: "bearer"}, nil
		},
	}
	handler := handlers.NewAuthHandler(mockAuth, nil, services.NewTestLogger())

	form := loginForm("alice", "Correct-Horse1")
	form.Set("grant_type", "password")
	form.Set("scope", "ignored")
	w := httptest.NewRecorder()
	handler.Token(w, handlers.NewFormRequest("/token", form))

	var resp services.TokenResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "tok", resp.AccessToken)
	assert.Equal(t, "/token", endpoint)
}

func TestBlockedMessage(t *testing.T) {
	assert.Equal(t, "Account temporarily blocked due to too many failed login attempts. Please try again in 30 minutes and 0 seconds.", handlers.BlockedMessage(1800))
	assert.Equal(t, "Account temporarily blocked due to too many failed login attempts. Please try again in 0 minutes and 1 seconds.", handlers.BlockedMessage(1))
}

func TestSignup(t *testing.T) {
	valid := handlers.SignupRequest{Username: "bob", Email: "bob@example.com", Password: "Spending2024"}

	t.Run("created", func(t *testing.T) {
		handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, services.NewTestLogger())
		w := httptest.NewRecorder()
		handler.Signup(w, handlers.NewTestRequest(t, http.MethodPost, "/signup", valid))

		var resp handlers.UserResponse
		handlers.AssertJSONResponse(t, w, http.StatusCreated, &resp)
		assert.Equal(t, "user_bob", resp.ID)
		assert.Equal(t, "bob", resp.Username)
	})

	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"email taken", models.ErrEmailTaken, "Email already registered"},
		{"username taken", models.ErrUsernameTaken, "Username already taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAuth := &handlers.MockAuthService{
				SignupFunc: func(ctx context.Context, req services.SignupRequest) (*models.User, error) {
					return nil, tt.err
				},
			}
			handler := handlers.NewAuthHandler(mockAuth, nil, services.NewTestLogger())
			w := httptest.NewRecorder()
			handler.Signup(w, handlers.NewTestRequest(t, http.MethodPost, "/signup", valid))

			resp := handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
			assert.Equal(t, tt.message, resp.Message)
		})
	}

	t.Run("weak password", func(t *testing.T) {
		mockAuth := &handlers.MockAuthService{
			SignupFunc: func(ctx context.Context, req services.SignupRequest) (*models.User, error) {
				return nil, pkgauth.ValidatePassword(req.Password)
			},
		}
		handler := handlers.NewAuthHandler(mockAuth, nil, services.NewTestLogger())
		w := httptest.NewRecorder()
		handler.Signup(w, handlers.NewTestRequest(t, http.MethodPost, "/signup", handlers.SignupRequest{Username: "bob", Email: "bob@example.com", Password: "short"}))

		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	})

	t.Run("invalid email", func(t *testing.T) {
		handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, services.NewTestLogger())
		w := httptest.NewRecorder()
		handler.Signup(w, handlers.NewTestRequest(t, http.MethodPost, "/signup", handlers.SignupRequest{Username: "bob", Email: "nope", Password: "Spending2024"}))

		resp := handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
		assert.Contains(t, resp.Message, "email")
	})

	t.Run("server error", func(t *testing.T) {
		mockAuth := &handlers.MockAuthService{
			SignupFunc: func(ctx context.Context, req services.SignupRequest) (*models.User, error) {
				return nil, errors.New("boom")
			},
		}
		handler := handlers.NewAuthHandler(mockAuth, nil, services.NewTestLogger())
		w := httptest.NewRecorder()
		handler.Signup(w, handlers.NewTestRequest(t, http.MethodPost, "/signup", valid))

		handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
	})
}

// guardedLogin wires the real auth service and login guard behind /login and /token
type guardedLogin struct {
	router http.Handler
	clock  *services.FakeClock
}

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newGuardedLogin(t *testing.T) *guardedLogin {
	t.Helper()

	hasher := pkgauth.NewPasswordHasher(bcrypt.MinCost)
	users := map[string]*models.User{}
	for _, name := range []string{"alice", "bob"} {
		hash, err := hasher.Hash("Correct-Horse1")
		require.NoError(t, err)
		users[name] = services.NewTestUser("user-"+name, name, hash)
	}
	userRepo := &services.MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			if u, ok := users[username]; ok {
				return u, nil
			}
			return nil, models.ErrNotFound
		},
	}

	logger := services.NewTestLogger()
	clock := services.NewFakeClock(epoch)
	guard := services.NewLoginGuard(services.NewInMemoryAttemptStore(), services.DefaultLoginGuardConfig(), logger)
	guard.SetClock(clock.Now)

	authService := services.NewAuthService(userRepo, guard, &services.MockTokenIssuer{}, hasher, nil, logger, pkglogger.NewAuditLogger(logger))
	handler := handlers.NewAuthHandler(authService, nil, logger)

	r := chi.NewRouter()
	r.Post("/login", handler.Login)
	r.Post("/token", handler.Token)

	return &guardedLogin{router: r, clock: clock}
}

func (g *guardedLogin) post(target, username, password string, offset time.Duration) *httptest.ResponseRecorder {
	g.clock.Set(epoch.Add(offset))
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, handlers.NewFormRequest(target, loginForm(username, password)))
	return w
}

func TestLogin_BlockedUserWithCorrectPasswordGets429(t *testing.T) {
	g := newGuardedLogin(t)

	for i := 0; i < 5; i++ {
		w := g.post("/login", "alice", "wrong", time.Duration(i)*10*time.Second)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := g.post("/login", "alice", "Correct-Horse1", 41*time.Second)
	resp := handlers.AssertErrorResponse(t, w, http.StatusTooManyRequests, "rate_limit_exceeded")
	assert.Equal(t, "Account temporarily blocked due to too many failed login attempts. Please try again in 29 minutes and 59 seconds.", resp.Message)
	assert.Equal(t, "1799", w.Header().Get("Retry-After"))

	// The OAuth2 endpoint shares the same guard
	w = g.post("/token", "alice", "Correct-Horse1", 42*time.Second)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = g.post("/login", "alice", "Correct-Horse1", 1841*time.Second)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogin_UsernamesAreIndependent(t *testing.T) {
	g := newGuardedLogin(t)

	for i := 0; i < 5; i++ {
		g.post("/token", "alice", "wrong", time.Duration(i)*time.Second)
	}

	w := g.post("/login", "alice", "Correct-Horse1", 10*time.Second)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = g.post("/login", "bob", "Correct-Horse1", 10*time.Second)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogin_UnknownUsernameSameMessage(t *testing.T) {
	g := newGuardedLogin(t)

	unknown := g.post("/login", "ghost", "wrong", 0)
	known := g.post("/login", "alice", "wrong", time.Second)

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}
