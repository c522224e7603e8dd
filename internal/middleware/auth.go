package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/models"
	"github.com/songer666/jobs-ai/internal/utils"
)

const callerKey contextKey = "caller"

var (
	ErrMissingAuthHeader = errors.New("missing or malformed Authorization header")
	ErrInvalidToken      = errors.New("invalid token")
	ErrInvalidClaims     = errors.New("invalid token claims")
)

// CallerClaims are the claims carried by caller access tokens.
type CallerClaims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticate resolves the bearer token into a models.Caller and stores it in
// the request context. Requests without a valid token are rejected with 401.
func Authenticate(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := VerifyCaller(r.Header.Get("Authorization"), secret)
			if err != nil {
				logger.Debug("Rejected unauthenticated request", zap.String("path", r.URL.Path), zap.Error(err))
				utils.JSON(w, http.StatusUnauthorized, models.ErrorResponse{
					Code:    "unauthorized",
					Message: "Please sign in to continue",
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// VerifyCaller validates an "Authorization: Bearer" header value.
func VerifyCaller(authz, secret string) (models.Caller, error) {
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return models.Caller{}, ErrMissingAuthHeader
	}
	tokenStr := strings.TrimPrefix(authz, "Bearer ")

	claims := &CallerClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return models.Caller{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return models.Caller{}, ErrInvalidClaims
	}
	return models.Caller{ID: claims.Subject, Name: claims.Name, Role: claims.Role}, nil
}

// IssueCallerToken signs a caller token, used by the operator CLI and tests.
func IssueCallerToken(secret string, caller models.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := CallerClaims{
		Name: caller.Name,
		Role: caller.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign caller token: %w", err)
	}
	return signed, nil
}

// CallerFromContext returns the authenticated caller.
func CallerFromContext(ctx context.Context) (models.Caller, bool) {
	caller, ok := ctx.Value(callerKey).(models.Caller)
	return caller, ok
}

// WithCaller stores caller in ctx.
func WithCaller(ctx context.Context, caller models.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}
