package service

import (
	"context"
	"time"
)

// referenceChecker is the capability each manager exposes so others can
// verify a stored identifier without depending on the full manager.
type referenceChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// boundContext derives a deadline-bound context so no manager operation
// blocks indefinitely when the storage engine is unreachable.
func boundContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
