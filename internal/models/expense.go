package models

import "time"

// Category groups expenses for a single owner
type Category struct {
	ID          string
	Name        string
	Description *string
	OwnerID     string
	CreatedAt   time.Time
}

// Expense is a single spending record. Date carries no time-of-day component.
type Expense struct {
	ID          string
	Amount      float64
	Description *string
	Date        time.Time
	CategoryID  *string
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Pagination mirrors the skip/limit query parameters of the list endpoints
type Pagination struct {
	Skip  int
	Limit int
}
