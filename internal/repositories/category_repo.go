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

type CategoryRepository struct {
	pool *pgxpool.Pool
}

func NewCategoryRepository(db *database.DB) *CategoryRepository {
	return &CategoryRepository{pool: db.Pool}
}

const categoryColumns = `id, name, description, owner_id, created_at`

func scanCategoryRow(scanner rowScanner) (*models.Category, error) {
	var category models.Category
	err := scanner.Scan(&category.ID, &category.Name, &category.Description, &category.OwnerID, &category.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &category, nil
}

func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) (*models.Category, error) {
	category.ID = uuid.New().String()
	category.CreatedAt = time.Now()

	query := `
		INSERT INTO categories (id, name, description, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + categoryColumns

	return scanCategoryRow(r.pool.QueryRow(ctx, query,
		category.ID, category.Name, category.Description, category.OwnerID, category.CreatedAt,
	))
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	return scanCategoryRow(r.pool.QueryRow(ctx, query, id))
}

func (r *CategoryRepository) ListByOwner(ctx context.Context, ownerID string, page models.Pagination) ([]*models.Category, error) {
	query := `
		SELECT ` + categoryColumns + ` FROM categories
		WHERE owner_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, ownerID, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*models.Category, 0)
	for rows.Next() {
		category, err := scanCategoryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return categories, nil
}
