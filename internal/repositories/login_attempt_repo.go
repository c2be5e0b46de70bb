package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/expense-tracker/internal/database"
	"github.com/BradenHooton/expense-tracker/internal/models"
	"github.com/google/uuid"
)

// LoginAttemptRepository is the append-only store behind the login guard
type LoginAttemptRepository struct {
	db *database.DB
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// RecordAttempt appends one attempt. ID is generated when empty; AttemptedAt must be set by the caller.
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}

	query := `
		INSERT INTO login_attempts (id, username, ip_address, success, attempted_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.ID,
		attempt.Username,
		attempt.IPAddress,
		attempt.Success,
		attempt.AttemptedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// GetFailedAttemptTimes returns failed attempt timestamps for username at or after since, oldest first
func (r *LoginAttemptRepository) GetFailedAttemptTimes(ctx context.Context, username string, since time.Time) ([]time.Time, error) {
	query := `
		SELECT attempted_at FROM login_attempts
		WHERE username = $1 AND success = false AND attempted_at >= $2
		ORDER BY attempted_at ASC
	`
	return r.queryAttemptTimes(ctx, query, username, since)
}

// GetFailedAttemptTimesBetween returns failed attempt timestamps in [since, before), oldest first
func (r *LoginAttemptRepository) GetFailedAttemptTimesBetween(ctx context.Context, username string, since, before time.Time) ([]time.Time, error) {
	query := `
		SELECT attempted_at FROM login_attempts
		WHERE username = $1 AND success = false AND attempted_at >= $2 AND attempted_at < $3
		ORDER BY attempted_at ASC
	`
	return r.queryAttemptTimes(ctx, query, username, since, before)
}

func (r *LoginAttemptRepository) queryAttemptTimes(ctx context.Context, query string, args ...any) ([]time.Time, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", err)
	}
	defer rows.Close()

	times := make([]time.Time, 0)
	for rows.Next() {
		var attemptedAt time.Time
		if err := rows.Scan(&attemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		times = append(times, attemptedAt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return times, nil
}

// DeleteOlderThan prunes attempts recorded before cutoff and reports how many were removed
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM login_attempts WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
