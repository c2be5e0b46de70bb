package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/expense-tracker/internal/auth"
	"github.com/BradenHooton/expense-tracker/internal/models"
	pkgauth "github.com/BradenHooton/expense-tracker/pkg/auth"
	pkglogger "github.com/BradenHooton/expense-tracker/pkg/logger"
)

// LoginAttemptGuard is the slice of LoginGuard the login flow depends on
type LoginAttemptGuard interface {
	Check(ctx context.Context, username string) error
	RecordAttempt(ctx context.Context, username, ipAddress string, success bool) error
}

type TokenIssuer interface {
	GenerateAccessToken(userID, username string) (string, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) bool
	CompareDummy(password string)
}

// AuthService runs the login and signup flows
type AuthService struct {
	users       UserRepository
	guard       LoginAttemptGuard
	tokens      TokenIssuer
	hasher      PasswordHasher
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewAuthService(
	users UserRepository,
	guard LoginAttemptGuard,
	tokens TokenIssuer,
	hasher PasswordHasher,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		users:       users,
		guard:       guard,
		tokens:      tokens,
		hasher:      hasher,
		timing:      timing,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// LoginRequest carries the submitted credentials plus request metadata for the attempt log
type LoginRequest struct {
	Username  string
	Password  string
	IPAddress string
	Endpoint  string
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login checks the guard, verifies credentials, records the outcome and issues a token.
//
// Errors: *models.RateLimitError when blocked, models.ErrUnauthorized on bad
// credentials, models.ErrStorageUnavailable when the attempt log cannot be read
// or a failure cannot be recorded, models.ErrInternalServer otherwise.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	if err := s.guard.Check(ctx, req.Username); err != nil {
		var rateErr *models.RateLimitError
		if errors.As(err, &rateErr) {
			s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventLoginBlocked,
				Endpoint:      req.Endpoint,
				Username:      req.Username,
				IPAddress:     req.IPAddress,
				FailureReason: "account_blocked",
				RetryAfter:    rateErr.RetryAfterSeconds(),
			})
			return nil, err
		}
		s.logger.Error("login guard check failed", slog.String("endpoint", req.Endpoint), slog.Any("error", err))
		return nil, err
	}

	start := time.Now()
	user, err := s.users.GetByUsername(ctx, req.Username)
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.hasher.CompareDummy(req.Password)
		return nil, s.rejectLogin(ctx, req, start, "")
	case err != nil:
		s.logger.Error("failed to get user by username", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !s.hasher.Compare(user.PasswordHash, req.Password) {
		return nil, s.rejectLogin(ctx, req, start, user.ID)
	}

	if err := s.guard.RecordAttempt(ctx, req.Username, req.IPAddress, true); err != nil {
		// The credentials were valid; a lost success record cannot affect blocking
		s.logger.Error("failed to record successful login", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	accessToken, err := s.tokens.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID), slog.String("endpoint", req.Endpoint))
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLogin,
		Endpoint:  req.Endpoint,
		UserID:    user.ID,
		IPAddress: req.IPAddress,
		Success:   true,
	})

	return &TokenResponse{AccessToken: accessToken, TokenType: "bearer"}, nil
}

// rejectLogin records the failure and pads the response time. Unknown usernames are recorded too.
func (s *AuthService) rejectLogin(ctx context.Context, req LoginRequest, start time.Time, userID string) error {
	if err := s.guard.RecordAttempt(ctx, req.Username, req.IPAddress, false); err != nil {
		s.logger.Error("failed to record failed login", slog.Any("error", err))
		return err
	}

	s.timing.WaitFrom(start, false)

	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventLogin,
		Endpoint:      req.Endpoint,
		Username:      req.Username,
		UserID:        userID,
		IPAddress:     req.IPAddress,
		FailureReason: "invalid_credentials",
	})
	return models.ErrUnauthorized
}

type SignupRequest struct {
	Username string
	Email    string
	Password string
}

// Signup registers a user. Email and username must both be unused.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := pkgauth.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		s.logger.Info("signup rejected: email already registered", slog.String("email", pkglogger.SanitizedEmail(email)))
		return nil, models.ErrEmailTaken
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		s.logger.Info("signup rejected: username already taken", slog.String("username", pkglogger.SanitizedUsername(username)))
		return nil, models.ErrUsernameTaken
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check username", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	created, err := s.users.Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		// Concurrent signups lose on the unique constraints
		if errors.Is(err, models.ErrEmailTaken) || errors.Is(err, models.ErrUsernameTaken) {
			return nil, err
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered", slog.String("user_id", created.ID))
	s.auditLogger.LogAccountAction(ctx, pkglogger.EventSignup, created.ID, "", map[string]string{
		"username": pkglogger.SanitizedUsername(created.Username),
		"email":    pkglogger.SanitizedEmail(created.Email),
	})

	return created, nil
}
