package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/expense-tracker/internal/database"
	"github.com/BradenHooton/expense-tracker/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ExpenseRepository struct {
	pool *pgxpool.Pool
}

func NewExpenseRepository(db *database.DB) *ExpenseRepository {
	return &ExpenseRepository{pool: db.Pool}
}

const expenseColumns = `id, amount, description, date, category_id, owner_id, created_at, updated_at`

func scanExpenseRow(scanner rowScanner) (*models.Expense, error) {
	var expense models.Expense
	err := scanner.Scan(
		&expense.ID, &expense.Amount, &expense.Description, &expense.Date,
		&expense.CategoryID, &expense.OwnerID, &expense.CreatedAt, &expense.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &expense, nil
}

func (r *ExpenseRepository) Create(ctx context.Context, expense *models.Expense) (*models.Expense, error) {
	expense.ID = uuid.New().String()

	now := time.Now()
	expense.CreatedAt = now
	expense.UpdatedAt = now

	query := `
		INSERT INTO expenses (id, amount, description, date, category_id, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + expenseColumns

	return scanExpenseRow(r.pool.QueryRow(ctx, query,
		expense.ID, expense.Amount, expense.Description, expense.Date,
		expense.CategoryID, expense.OwnerID, expense.CreatedAt, expense.UpdatedAt,
	))
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`
	return scanExpenseRow(r.pool.QueryRow(ctx, query, id))
}

func (r *ExpenseRepository) ListByOwner(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Expense, error) {
	query := `
		SELECT ` + expenseColumns + ` FROM expenses
		WHERE owner_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, ownerID, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]*models.Expense, 0)
	for rows.Next() {
		expense, err := scanExpenseRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return expenses, nil
}

// Update replaces the mutable fields of an expense
func (r *ExpenseRepository) Update(ctx context.Context, id string, expense *models.Expense) (*models.Expense, error) {
	expense.UpdatedAt = time.Now()

	query := `
		UPDATE expenses SET amount = $1, description = $2, date = $3, category_id = $4, updated_at = $5
		WHERE id = $6
		RETURNING ` + expenseColumns

	return scanExpenseRow(r.pool.QueryRow(ctx, query,
		expense.Amount, expense.Description, expense.Date, expense.CategoryID, expense.UpdatedAt, id,
	))
}

func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
