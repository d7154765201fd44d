package middleware

import "net/http"

// ContentTypeText sets the Content-Type header to text/plain.
// Handlers that send JSON or files override it.
func ContentTypeText(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		next.ServeHTTP(w, r)
	})
}
