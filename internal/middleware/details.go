package middleware

import (
	"context"
	"net/http"
)

type detailsKey struct{}

// ErrorDetails records whether error responses may include internal detail.
// The server enables it outside production.
func ErrorDetails(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), detailsKey{}, enabled)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DetailsEnabled reports the flag set by ErrorDetails. Defaults to false.
func DetailsEnabled(ctx context.Context) bool {
	on, _ := ctx.Value(detailsKey{}).(bool)
	return on
}
