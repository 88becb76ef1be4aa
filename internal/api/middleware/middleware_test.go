package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/request"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/config"
)

type fakeAuth map[string]*apikey.User

func (f fakeAuth) Authenticate(_ context.Context, key string) (*apikey.User, error) {
	switch key {
	case "expired":
		return nil, apikey.ErrExpiredKey
	case "broken":
		return nil, errors.New("db down")
	}
	if u, ok := f[key]; ok {
		return u, nil
	}
	return nil, apikey.ErrInvalidKey
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuth(t *testing.T) {
	authn := fakeAuth{"good": {ID: "u1", IsAdmin: true}}
	var seen *apikey.User
	h := Auth(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		target string
		want   int
	}{
		{"missing", func(*http.Request) {}, "/api/websites/pageviews", http.StatusUnauthorized},
		{"invalid", func(r *http.Request) { r.Header.Set("X-API-Key", "nope") }, "/api/websites/pageviews", http.StatusUnauthorized},
		{"expired", func(r *http.Request) { r.Header.Set("X-API-Key", "expired") }, "/api/websites/pageviews", http.StatusUnauthorized},
		{"store error", func(r *http.Request) { r.Header.Set("X-API-Key", "broken") }, "/api/websites/pageviews", http.StatusInternalServerError},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, "/api/websites/pageviews", http.StatusOK},
		{"query param", func(*http.Request) {}, "/api/websites/pageviews?api_key=good", http.StatusOK},
		{"public health", func(*http.Request) {}, "/health/ready", http.StatusOK},
		{"public send", func(*http.Request) {}, "/api/send", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			tt.setup(r)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("X-API-Key", "good")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen == nil || seen.ID != "u1" {
		t.Errorf("user in context = %+v", seen)
	}
}

func TestCORS(t *testing.T) {
	cfg := config.CORSConfig{
		AllowOrigins: []string{"https://app.example.com"},
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Authorization"},
		MaxAge:       600,
	}
	called := false
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	r := httptest.NewRequest(http.MethodOptions, "/api/websites/pageviews", nil)
	r.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusNoContent || called {
		t.Errorf("preflight: status = %d, next called = %v", rec.Code, called)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Errorf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	if rec.Header().Get("Access-Control-Max-Age") != "600" {
		t.Errorf("max age = %q", rec.Header().Get("Access-Control-Max-Age"))
	}

	r = httptest.NewRequest(http.MethodGet, "/api/websites/pageviews", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" || !called {
		t.Error("disallowed origin should get no CORS headers and still reach next")
	}
}

func TestValidate(t *testing.T) {
	called := 0
	h := Validate(request.PageviewsSchema)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called++ }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/websites/pageviews?page=1&startAt=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "validation failed" || body.Fields["pageSize"] == "" || body.Fields["endAt"] == "" {
		t.Errorf("body = %+v", body)
	}
	if called != 0 {
		t.Error("handler reached after validation failure")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/websites/pageviews", nil))
	if called != 1 {
		t.Error("methods without a schema should pass through")
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(time.Minute)
	defer limiter.Stop()
	h := RateLimit(limiter, time.Minute)(okHandler)

	user := &apikey.User{ID: "u1", KeyID: "k1", RateLimit: 2}
	codes := make([]int, 3)
	for i := range codes {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r = r.WithContext(WithUser(r.Context(), user))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		codes[i] = rec.Code
		if rec.Code == http.StatusTooManyRequests {
			if rec.Header().Get("Retry-After") != "60" {
				t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
			}
			var body map[string]string
			json.Unmarshal(rec.Body.Bytes(), &body)
			if body["error"] != "rate limit exceeded" {
				t.Errorf("error = %q", body["error"])
			}
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != 429 {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("anonymous request status = %d", rec.Code)
	}
}
