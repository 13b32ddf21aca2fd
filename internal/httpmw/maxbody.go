package httpmw

import "net/http"

// MaxBody caps the request body at the given size. Handlers reading past the
// cap get an error from MaxBytesReader and the client receives 413.
func MaxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
