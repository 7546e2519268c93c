package health

import (
	"context"
	"time"
)

// WithTimeout bounds check to d. A non-positive d leaves check unchanged.
func WithTimeout(check Check, d time.Duration) Check {
	if d <= 0 {
		return check
	}
	return func(ctx context.Context) error {
		ctx2, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return check(ctx2)
	}
}
