package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mehrbod2002/masjidmap/internal/api/respond"
	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxAuthLen = 4096
	callerKey  = "caller"
	issuer     = "masjidmap"
)

// GenerateJWT issues a token whose subject is the account id. Roles are not
// embedded: they are re-read on every request because approvals change them.
func GenerateJWT(accountID primitive.ObjectID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   accountID.Hex(),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString([]byte(secret))
}

// ParseJWT validates tokenStr and returns the account id it was issued for.
func ParseJWT(tokenStr, secret string) (primitive.ObjectID, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return primitive.NilObjectID, apperrors.New(apperrors.KindAuthenticationRequired, "invalid or expired token")
	}
	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return primitive.NilObjectID, apperrors.New(apperrors.KindAuthenticationRequired, "invalid token subject")
	}
	return id, nil
}

func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > maxAuthLen {
		return "", apperrors.New(apperrors.KindAuthenticationRequired, "authorization header too long")
	}
	if authHeader == "" {
		return "", apperrors.New(apperrors.KindAuthenticationRequired, "authorization header required")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.New(apperrors.KindAuthenticationRequired, "invalid authorization header; expected Bearer token")
	}
	return parts[1], nil
}

// AuthMiddleware authenticates the bearer token and attaches the caller with
// its current role.
func AuthMiddleware(accounts service.AccountService, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := bearerToken(c)
		if err != nil {
			respond.Abort(c, err)
			return
		}
		accountID, err := ParseJWT(tokenStr, secret)
		if err != nil {
			respond.Abort(c, err)
			return
		}
		caller, err := accounts.ResolveCaller(c.Request.Context(), accountID)
		if err != nil {
			respond.Abort(c, err)
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

// RequireRole rejects authenticated callers whose role is not listed.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CallerFrom(c)
		if caller == nil {
			respond.Abort(c, apperrors.AuthenticationRequired())
			return
		}
		for _, r := range roles {
			if caller.Role == r {
				c.Next()
				return
			}
		}
		respond.Abort(c, apperrors.Permission("role %s may not access this resource", caller.Role))
	}
}

// CallerFrom returns the authenticated caller, or nil.
func CallerFrom(c *gin.Context) *models.Caller {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil
	}
	caller, _ := v.(*models.Caller)
	return caller
}
