package httpmw

import (
	"net/http"

	"github.com/clarus-app/clarus-web/internal/log"
	"github.com/clarus-app/clarus-web/internal/xerrors"
)

// Recover converts handler panics into 500 responses instead of letting
// net/http kill the connection. The panic value is logged with the request
// method and path; onPanic, when non-nil, is called after logging (used to
// increment the panic counter).
//
// If the handler already wrote headers the 500 cannot be sent; the log entry
// still happens.
func Recover(l log.Logger, onPanic func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				var err error
				switch v := rec.(type) {
				case error:
					err = xerrors.Wrap(v, "panic")
				default:
					err = xerrors.Newf("panic: %v", v)
				}

				l.With(
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
				).Error(r.Context(), err, "httpserver panic recovered")

				if onPanic != nil {
					onPanic()
				}

				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
