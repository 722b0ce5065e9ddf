package middleware

import (
	"net/http"
)

// JSON API only, nothing to load or frame
const apiCSP = "default-src 'none'; frame-ancestors 'none'"

var securityHeaders = map[string]string{
	"X-Frame-Options":         "DENY",
	"X-Content-Type-Options":  "nosniff",
	"Referrer-Policy":         "strict-origin-when-cross-origin",
	"Permissions-Policy":      "camera=(), microphone=(), geolocation=(), payment=()",
	"Content-Security-Policy": apiCSP,
}

// SecurityHeaders sets the API response headers, HSTS only when served over HTTPS
func SecurityHeaders(isHTTPS bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers := w.Header()
			for k, v := range securityHeaders {
				headers.Set(k, v)
			}
			if isHTTPS {
				headers.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
