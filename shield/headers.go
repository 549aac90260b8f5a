package shield

import "net/http"

// apiHeaders locks the responses down for a JSON API that serves no HTML
// of its own: no scripts, no frames, no embeds, no referrer leakage.
// The serve mode has exactly one surface, so these are not configurable.
var apiHeaders = map[string]string{
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	"X-Frame-Options":         "DENY",
	"X-Content-Type-Options":  "nosniff",
	"Referrer-Policy":         "no-referrer",
	"Permissions-Policy":      "camera=(), microphone=(), geolocation=()",
}

// SecurityHeaders returns middleware that sets the API security headers
// on every response.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for name, value := range apiHeaders {
				w.Header().Set(name, value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
