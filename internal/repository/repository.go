package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
)

// queryTimeout bounds every single store call; callers may impose a tighter deadline.
const queryTimeout = 5 * time.Second

var (
	// ErrNoMatch is returned by conditional writes whose filter matched nothing.
	ErrNoMatch = errors.New("no matching document")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate key")
)

// classify wraps a driver error with op, marking timeouts and network failures as transient.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNoMatch) || errors.Is(err, ErrDuplicate) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return apperrors.Transient(err, "%s", op)
	}
	return pkgerrors.Wrap(err, op)
}

func checkContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return classify(err, op)
	}
	return nil
}
