package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jwt_internal "github.com/itchan-dev/threads/shared/jwt"
	"github.com/stretchr/testify/assert"
)

func TestNeedAuth(t *testing.T) {
	jwtService := jwt_internal.New("test_secret", time.Hour)
	token, _ := jwtService.NewToken("user_1")
	expired, _ := jwt_internal.New("test_secret", -time.Hour).NewToken("user_1")
	noUid, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user_1"}).SignedString([]byte("test_secret"))

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedUser   string
	}{
		{
			name:           "Valid token",
			header:         "Bearer " + token,
			expectedStatus: http.StatusOK,
			expectedUser:   "user_1",
		},
		{
			name:           "No token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong scheme",
			header:         "Basic " + token,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid token",
			header:         "Bearer invalid_token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Expired token",
			header:         "Bearer " + expired,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Token without uid",
			header:         "Bearer " + noUid,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "http://example.com", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			var gotUser string
			handler := NewAuth(jwtService).NeedAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = GetUserIdFromContext(r)
				w.WriteHeader(http.StatusOK)
			}))
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, tt.expectedUser, gotUser)
		})
	}
}

func TestGetUserIdFromContext(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, "", GetUserIdFromContext(req))

	req = req.WithContext(WithUserId(req.Context(), "user_9"))
	assert.Equal(t, "user_9", GetUserIdFromContext(req))
}
