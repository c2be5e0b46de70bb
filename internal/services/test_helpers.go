package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/expense-tracker/internal/models"
)

// NewTestLogger returns a logger that discards output
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// FakeClock is a settable time source for the login guard
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc       func(ctx context.Context, id string) (*models.User, error)
	GetByUsernameFunc func(ctx context.Context, username string) (*models.User, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*models.User, error)
	CreateFunc        func(ctx context.Context, user *models.User) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	user.ID = "user_" + user.Username
	return user, nil
}

// MockLoginAttemptRepository implements LoginAttemptRepository for testing
type MockLoginAttemptRepository struct {
	RecordAttemptFunc                func(ctx context.Context, attempt *models.LoginAttempt) error
	GetFailedAttemptTimesFunc        func(ctx context.Context, username string, since time.Time) ([]time.Time, error)
	GetFailedAttemptTimesBetweenFunc func(ctx context.Context, username string, since, before time.Time) ([]time.Time, error)
}

func (m *MockLoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	return nil
}

func (m *MockLoginAttemptRepository) GetFailedAttemptTimes(ctx context.Context, username string, since time.Time) ([]time.Time, error) {
	if m.GetFailedAttemptTimesFunc != nil {
		return m.GetFailedAttemptTimesFunc(ctx, username, since)
	}
	return []time.Time{}, nil
}

func (m *MockLoginAttemptRepository) GetFailedAttemptTimesBetween(ctx context.Context, username string, since, before time.Time) ([]time.Time, error) {
	if m.GetFailedAttemptTimesBetweenFunc != nil {
		return m.GetFailedAttemptTimesBetweenFunc(ctx, username, since, before)
	}
	return []time.Time{}, nil
}

// MockBlockCache implements BlockCache for testing
type MockBlockCache struct {
	GetBlockedUntilFunc func(ctx context.Context, username string) (*time.Time, error)
	SetBlockedUntilFunc func(ctx context.Context, username string, until time.Time, ttl time.Duration) error
}

func (m *MockBlockCache) GetBlockedUntil(ctx context.Context, username string) (*time.Time, error) {
	if m.GetBlockedUntilFunc != nil {
		return m.GetBlockedUntilFunc(ctx, username)
	}
	return nil, nil
}

func (m *MockBlockCache) SetBlockedUntil(ctx context.Context, username string, until time.Time, ttl time.Duration) error {
	if m.SetBlockedUntilFunc != nil {
		return m.SetBlockedUntilFunc(ctx, username, until, ttl)
	}
	return nil
}

// RecordedAttempt is one call captured by MockLoginAttemptGuard
type RecordedAttempt struct {
	Username  string
	IPAddress string
	Success   bool
}

// MockLoginAttemptGuard implements LoginAttemptGuard and captures recorded attempts
type MockLoginAttemptGuard struct {
	CheckFunc         func(ctx context.Context, username string) error
	RecordAttemptFunc func(ctx context.Context, username, ipAddress string, success bool) error

	mu       sync.Mutex
	Recorded []RecordedAttempt
}

func (m *MockLoginAttemptGuard) Check(ctx context.Context, username string) error {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, username)
	}
	return nil
}

func (m *MockLoginAttemptGuard) RecordAttempt(ctx context.Context, username, ipAddress string, success bool) error {
	m.mu.Lock()
	m.Recorded = append(m.Recorded, RecordedAttempt{Username: username, IPAddress: ipAddress, Success: success})
	m.mu.Unlock()

	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, username, ipAddress, success)
	}
	return nil
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	GenerateAccessTokenFunc func(userID, username string) (string, error)
}

func (m *MockTokenIssuer) GenerateAccessToken(userID, username string) (string, error) {
	if m.GenerateAccessTokenFunc != nil {
		return m.GenerateAccessTokenFunc(userID, username)
	}
	return "access_token_" + userID, nil
}

// MockCategoryRepository implements CategoryRepository for testing
type MockCategoryRepository struct {
	CreateFunc      func(ctx context.Context, category *models.Category) (*models.Category, error)
	GetByIDFunc     func(ctx context.Context, id string) (*models.Category, error)
	ListByOwnerFunc func(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Category, error)
}

func (m *MockCategoryRepository) Create(ctx context.Context, category *models.Category) (*models.Category, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, category)
	}
	category.ID = "category_" + category.Name
	return category, nil
}

func (m *MockCategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockCategoryRepository) ListByOwner(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Category, error) {
	if m.ListByOwnerFunc != nil {
		return m.ListByOwnerFunc(ctx, ownerID, page)
	}
	return []*models.Category{}, nil
}

// MockExpenseRepository implements ExpenseRepository for testing
type MockExpenseRepository struct {
	CreateFunc      func(ctx context.Context, expense *models.Expense) (*models.Expense, error)
	GetByIDFunc     func(ctx context.Context, id string) (*models.Expense, error)
	ListByOwnerFunc func(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Expense, error)
	UpdateFunc      func(ctx context.Context, id string, expense *models.Expense) (*models.Expense, error)
	DeleteFunc      func(ctx context.Context, id string) error
}

func (m *MockExpenseRepository) Create(ctx context.Context, expense *models.Expense) (*models.Expense, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, expense)
	}
	expense.ID = "expense_1"
	return expense, nil
}

func (m *MockExpenseRepository) GetByID(ctx context.Context, id string) (*models.Expense, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockExpenseRepository) ListByOwner(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Expense, error) {
	if m.ListByOwnerFunc != nil {
		return m.ListByOwnerFunc(ctx, ownerID, page)
	}
	return []*models.Expense{}, nil
}

func (m *MockExpenseRepository) Update(ctx context.Context, id string, expense *models.Expense) (*models.Expense, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, expense)
	}
	return expense, nil
}

func (m *MockExpenseRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// InMemoryAttemptStore is a concurrency-safe attempt log for guard and handler tests
type InMemoryAttemptStore struct {
	mu       sync.Mutex
	attempts []models.LoginAttempt
}

func NewInMemoryAttemptStore() *InMemoryAttemptStore {
	return &InMemoryAttemptStore{}
}

func (s *InMemoryAttemptStore) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt.ID = fmt.Sprintf("attempt-%d", len(s.attempts)+1)
	s.attempts = append(s.attempts, *attempt)
	return nil
}

func (s *InMemoryAttemptStore) GetFailedAttemptTimes(ctx context.Context, username string, since time.Time) ([]time.Time, error) {
	return s.failedTimes(username, func(t time.Time) bool { return !t.Before(since) }), nil
}

func (s *InMemoryAttemptStore) GetFailedAttemptTimesBetween(ctx context.Context, username string, since, before time.Time) ([]time.Time, error) {
	return s.failedTimes(username, func(t time.Time) bool { return !t.Before(since) && t.Before(before) }), nil
}

func (s *InMemoryAttemptStore) failedTimes(username string, keep func(time.Time) bool) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	times := make([]time.Time, 0)
	for _, a := range s.attempts {
		if a.Username == username && !a.Success && keep(a.AttemptedAt) {
			times = append(times, a.AttemptedAt)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times
}

func (s *InMemoryAttemptStore) Attempts(username string) []models.LoginAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.LoginAttempt, 0)
	for _, a := range s.attempts {
		if a.Username == username {
			out = append(out, a)
		}
	}
	return out
}

// NewTestUser builds a user with the given bcrypt hash
func NewTestUser(id, username, passwordHash string) *models.User {
	now := time.Now()
	return &models.User{
		ID:           id,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
