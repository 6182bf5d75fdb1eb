package access

import (
	"fmt"
	"time"

	"captioner/internal/services"
)

// InvalidTokenError reports a link that is incomplete, malformed or forged.
type InvalidTokenError struct {
	Reason string
}

func (e *InvalidTokenError) Error() string {
	return "invalid token: " + e.Reason
}

func (e *InvalidTokenError) Unwrap() error { return services.ErrValidation }

// ExpiredTokenError reports a genuine link used after its expiry.
type ExpiredTokenError struct {
	ExpiresAt time.Time
}

func (e *ExpiredTokenError) Error() string {
	return fmt.Sprintf("token expired at %s", e.ExpiresAt.UTC().Format(time.RFC3339Nano))
}

func (e *ExpiredTokenError) Unwrap() error { return services.ErrValidation }
