package middleware

import (
	"errors"
	"net"
	"net/http"

	"github.com/itchan-dev/threads/shared/middleware/ratelimiter"
	"github.com/itchan-dev/threads/shared/utils"
)

func RateLimit(rl *ratelimiter.UserRateLimiter, getIdentity func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := getIdentity(r)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			if !rl.Allow(identity) {
				http.Error(w, "Rate limit exceeded, try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Possible if user was authorized with previous middleware
func GetUserIdentity(r *http.Request) (string, error) {
	uid := GetUserIdFromContext(r)
	if uid == "" {
		return "", errors.New("Can't get user id")
	}
	return "user_" + uid, nil
}

// GetIP extracts the client IP from RemoteAddr, proxy headers are not trusted
func GetIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) == nil {
		return "", errors.New("invalid IP address: " + ip)
	}
	return ip, nil
}
