package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/mehrbod2002/masjidmap/internal/api/respond"
	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimit throttles callers by client ip. rate uses the limiter format, e.g. "60-M".
func RateLimit(rate string) (gin.HandlerFunc, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	instance := limiter.New(memory.NewStore(), r)
	return mgin.NewMiddleware(instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			respond.Abort(c, apperrors.New(apperrors.KindRateLimited, "too many requests, retry later"))
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			respond.Abort(c, apperrors.Wrap(apperrors.KindInternal, err, "rate limiter"))
		}),
	), nil
}
