package middleware

import (
	"net/http"
	"time"

	"github.com/BradenHooton/expense-tracker/internal/auth"
	pkghttp "github.com/BradenHooton/expense-tracker/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitByUser throttles authenticated API traffic per user, falling back to the client IP.
// It is unrelated to the login guard, which blocks by username on failed logins.
func RateLimitByUser(requestsPerMinute int) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(userKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, 0, "Rate limit exceeded")
		}),
	)
}

func userKey(r *http.Request) (string, error) {
	if claims := auth.GetUserFromContext(r); claims != nil && claims.UserID != "" {
		return "user:" + claims.UserID, nil
	}
	ip, err := httprate.KeyByRealIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}
