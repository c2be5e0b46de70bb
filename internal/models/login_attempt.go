package models

import "time"

// LoginAttempt is one immutable entry of the login attempt log
type LoginAttempt struct {
	ID          string    `db:"id"`
	Username    string    `db:"username"`
	IPAddress   *string   `db:"ip_address"` // advisory only, never used for blocking
	Success     bool      `db:"success"`
	AttemptedAt time.Time `db:"attempted_at"`
}

// BlockState is derived from the attempt log on every query and never stored.
type BlockState struct {
	Username          string
	Blocked           bool
	AnchorAt          *time.Time // failure that tripped the threshold
	BlockedUntil      *time.Time
	RetryAfterSeconds int
}

// RetryAfter returns the remaining block as a duration.
func (b *BlockState) RetryAfter() time.Duration {
	return time.Duration(b.RetryAfterSeconds) * time.Second
}
