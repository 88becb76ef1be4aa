package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"wrapped invalid input", fmt.Errorf("parsing: %w", ErrInvalidInput), http.StatusBadRequest},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"method", ErrMethodNotAllowed, http.StatusMethodNotAllowed},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"timeout", fmt.Errorf("query: %w", ErrTimeout), http.StatusServiceUnavailable},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
		{"app error", New(ErrInvalidInput, http.StatusUnprocessableEntity, "bad range"), http.StatusUnprocessableEntity},
		{"wrapped app error", fmt.Errorf("outer: %w", Newf(ErrUnavailable, http.StatusBadGateway, "upstream %d", 1)), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "endAt %d", 5)
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("expected AppError to unwrap to its sentinel")
	}
	if got, want := err.Error(), "invalid input: endAt 5"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
