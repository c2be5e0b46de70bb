package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/expense-tracker/internal/models"
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) (*models.Category, error)
	GetByID(ctx context.Context, id string) (*models.Category, error)
	ListByOwner(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Category, error)
}

type ExpenseRepository interface {
	Create(ctx context.Context, expense *models.Expense) (*models.Expense, error)
	GetByID(ctx context.Context, id string) (*models.Expense, error)
	ListByOwner(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Expense, error)
	Update(ctx context.Context, id string, expense *models.Expense) (*models.Expense, error)
	Delete(ctx context.Context, id string) error
}

// NormalizePagination applies the default limit and clamps out-of-range values
func NormalizePagination(page models.Pagination) models.Pagination {
	if page.Skip < 0 {
		page.Skip = 0
	}
	if page.Limit <= 0 {
		page.Limit = DefaultPageLimit
	}
	if page.Limit > MaxPageLimit {
		page.Limit = MaxPageLimit
	}
	return page
}

type CategoryService struct {
	repo   CategoryRepository
	logger *slog.Logger
}

func NewCategoryService(repo CategoryRepository, logger *slog.Logger) *CategoryService {
	return &CategoryService{repo: repo, logger: logger}
}

func (s *CategoryService) Create(ctx context.Context, ownerID, name string, description *string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.ErrBadRequest
	}

	category, err := s.repo.Create(ctx, &models.Category{
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
	})
	if err != nil {
		s.logger.Error("failed to create category", slog.String("user_id", ownerID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return category, nil
}

func (s *CategoryService) List(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Category, error) {
	categories, err := s.repo.ListByOwner(ctx, ownerID, NormalizePagination(page))
	if err != nil {
		s.logger.Error("failed to list categories", slog.String("user_id", ownerID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return categories, nil
}

// ExpenseInput holds the client-settable fields of an expense
type ExpenseInput struct {
	Amount      float64
	Description *string
	Date        time.Time
	CategoryID  *string
}

// ExpenseService enforces that callers only see and change their own expenses
type ExpenseService struct {
	expenses   ExpenseRepository
	categories CategoryRepository
	logger     *slog.Logger
}

func NewExpenseService(expenses ExpenseRepository, categories CategoryRepository, logger *slog.Logger) *ExpenseService {
	return &ExpenseService{expenses: expenses, categories: categories, logger: logger}
}

func (s *ExpenseService) Create(ctx context.Context, ownerID string, input ExpenseInput) (*models.Expense, error) {
	if err := s.checkCategory(ctx, ownerID, input.CategoryID); err != nil {
		return nil, err
	}

	expense, err := s.expenses.Create(ctx, &models.Expense{
		Amount:      input.Amount,
		Description: input.Description,
		Date:        input.Date,
		CategoryID:  input.CategoryID,
		OwnerID:     ownerID,
	})
	if err != nil {
		s.logger.Error("failed to create expense", slog.String("user_id", ownerID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return expense, nil
}

func (s *ExpenseService) List(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Expense, error) {
	expenses, err := s.expenses.ListByOwner(ctx, ownerID, NormalizePagination(page))
	if err != nil {
		s.logger.Error("failed to list expenses", slog.String("user_id", ownerID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return expenses, nil
}

// Get returns models.ErrNotFound for a missing expense and models.ErrForbidden for another user's
func (s *ExpenseService) Get(ctx context.Context, ownerID, id string) (*models.Expense, error) {
	expense, err := s.expenses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get expense", slog.String("expense_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if expense.OwnerID != ownerID {
		s.logger.Warn("expense access denied",
			slog.String("expense_id", id),
			slog.String("user_id", ownerID))
		return nil, models.ErrForbidden
	}

	return expense, nil
}

func (s *ExpenseService) Update(ctx context.Context, ownerID, id string, input ExpenseInput) (*models.Expense, error) {
	existing, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkCategory(ctx, ownerID, input.CategoryID); err != nil {
		return nil, err
	}

	existing.Amount = input.Amount
	existing.Description = input.Description
	existing.Date = input.Date
	existing.CategoryID = input.CategoryID

	updated, err := s.expenses.Update(ctx, id, existing)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update expense", slog.String("expense_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("expense updated", slog.String("expense_id", id), slog.String("user_id", ownerID))
	return updated, nil
}

func (s *ExpenseService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}

	if err := s.expenses.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete expense", slog.String("expense_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("expense deleted", slog.String("expense_id", id), slog.String("user_id", ownerID))
	return nil
}

// checkCategory rejects categories that are missing or owned by someone else
func (s *ExpenseService) checkCategory(ctx context.Context, ownerID string, categoryID *string) error {
	if categoryID == nil {
		return nil
	}

	category, err := s.categories.GetByID(ctx, *categoryID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidCategory
		}
		s.logger.Error("failed to get category", slog.String("category_id", *categoryID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if category.OwnerID != ownerID {
		return models.ErrInvalidCategory
	}
	return nil
}
