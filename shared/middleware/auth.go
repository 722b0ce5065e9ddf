package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/itchan-dev/threads/shared/domain"
	jwt_internal "github.com/itchan-dev/threads/shared/jwt"
	"github.com/itchan-dev/threads/shared/logger"
	"github.com/itchan-dev/threads/shared/utils"
)

// Key to store the caller id in the request context
type key int

const UserIdKey key = 0

// Auth verifies bearer tokens issued by the identity provider.
// It never issues or refreshes sessions.
type Auth struct {
	jwtService jwt_internal.JwtService
}

func NewAuth(jwtService jwt_internal.JwtService) *Auth {
	return &Auth{jwtService: jwtService}
}

// Sentinel errors for extractUserId
var (
	errNoToken       = errorString("no token")
	errInvalidClaims = errorString("invalid claims")
)

type errorString string

func (e errorString) Error() string { return string(e) }

func (a *Auth) extractUserId(r *http.Request) (domain.UserId, error) {
	tokenString, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || tokenString == "" {
		return "", errNoToken
	}

	token, err := a.jwtService.DecodeToken(tokenString)
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errInvalidClaims
	}
	uid, ok := claims["uid"].(string)
	if !ok || uid == "" {
		return "", errInvalidClaims
	}
	return uid, nil
}

// NeedAuth returns middleware that rejects requests without a valid token
func (a *Auth) NeedAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, err := a.extractUserId(r)
			if err != nil {
				switch err {
				case errNoToken:
					http.Error(w, "Please sign-in", http.StatusUnauthorized)
				case errInvalidClaims:
					logger.Log.Warn("invalid jwt claims")
					http.Error(w, "Invalid token", http.StatusUnauthorized)
				default:
					utils.WriteErrorAndStatusCode(w, err)
				}
				return
			}

			ctx := context.WithValue(r.Context(), UserIdKey, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIdFromContext returns the authenticated caller id, "" if there is none
func GetUserIdFromContext(r *http.Request) domain.UserId {
	uid, _ := r.Context().Value(UserIdKey).(domain.UserId)
	return uid
}

// WithUserId is used by tests and internal callers that already know the user
func WithUserId(ctx context.Context, uid domain.UserId) context.Context {
	return context.WithValue(ctx, UserIdKey, uid)
}
