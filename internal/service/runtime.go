package service

import (
	"context"
	"errors"
	"time"

	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultTimeout = 5 * time.Second

// Runtime carries the collaborators every service shares.
type Runtime struct {
	Logger  logrus.FieldLogger
	Metrics *Metrics
	Audit   LogService
	Events  EventPublisher
	Timeout time.Duration
}

func (rt Runtime) withDefaults() Runtime {
	if rt.Logger == nil {
		logger := logrus.New()
		logger.SetLevel(logrus.WarnLevel)
		rt.Logger = logger
	}
	if rt.Metrics == nil {
		rt.Metrics = NopMetrics()
	}
	if rt.Events == nil {
		rt.Events = NopPublisher{}
	}
	if rt.Timeout <= 0 {
		rt.Timeout = defaultTimeout
	}
	return rt
}

// bounded applies the operation deadline to ctx.
func (rt Runtime) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, rt.Timeout)
}

// audit records an action in the audit trail. Failures are logged, never returned.
func (rt Runtime) audit(ctx context.Context, actor primitive.ObjectID, action, description string, metadata map[string]interface{}) {
	if rt.Audit == nil {
		return
	}
	// the audit write must not inherit an expired operation deadline
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rt.Timeout)
	defer cancel()
	if err := rt.Audit.LogAction(ctx, actor, action, description, metadata); err != nil {
		rt.Logger.WithError(err).WithField("action", action).Warn("audit write failed")
	}
}

// expired converts a blown operation deadline into a transient error.
func expired(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && apperrors.KindOf(err) != apperrors.KindTransient {
		return apperrors.Transient(err, "%s", op)
	}
	return err
}

func requireCaller(caller *models.Caller) error {
	if caller == nil || caller.AccountID.IsZero() {
		return apperrors.AuthenticationRequired()
	}
	return nil
}

func parseID(id, what string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperrors.Validation("invalid %s id", what).WithField("id", "malformed")
	}
	return objID, nil
}

type clientIPKey struct{}

// WithClientIP stores the caller's address for the audit trail.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
