package http

import (
	"net/http"
	"runtime/debug"

	"github.com/lltxwdk/minimars-server/internal/service"

	"go.uber.org/zap"
)

// NewRecoveryMiddleware turns a panicking handler into a 500 response.
func NewRecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	l := logger.Named("HttpPanic")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					l.Error("Recovered from panic",
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
					)
					service.WriteHttpError(w, http.StatusInternalServerError, "internal_error", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
