package middleware

import (
	"errors"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/request"
)

// Validate checks the query string against schema before calling next.
// Invalid requests get 400 with the offending fields.
func Validate(schema request.Schema) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := schema.Validate(r.Method, r.URL.Query())
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			var verr *request.ValidationError
			if !errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
		})
	}
}
