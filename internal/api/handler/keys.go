package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/api/middleware"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/auth/apikey"
	apperrors "github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/errors"
	"github.com/google/uuid"
)

const maxAdminBody = 4 << 10

// requireAdmin writes 401 and returns false unless the caller is an admin.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	user := middleware.UserFromContext(r.Context())
	if user == nil || !user.IsAdmin {
		h.fail(w, r, apperrors.ErrUnauthorized, "admin check")
		return false
	}
	return true
}

// CreateAPIKey creates a new API key and returns the raw key (shown once).
// The key belongs to user_id, or to the caller when user_id is omitted.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var req struct {
		Name      string `json:"name"`
		UserID    string `json:"user_id,omitempty"`
		RateLimit int    `json:"rate_limit"`
		ExpiresIn string `json:"expires_in,omitempty"` // Go duration, e.g. "720h"
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBody)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.UserID == "" {
		req.UserID = middleware.UserFromContext(r.Context()).ID
	} else if _, err := uuid.Parse(req.UserID); err != nil {
		h.writeError(w, http.StatusBadRequest, "user_id must be a UUID")
		return
	}
	if req.RateLimit <= 0 {
		req.RateLimit = 100
	}

	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid expires_in duration")
			return
		}
		t := h.now().Add(d)
		expiresAt = &t
	}

	key, err := h.keys.CreateKey(r.Context(), req.UserID, req.Name, req.RateLimit, expiresAt)
	if err != nil {
		h.fail(w, r, err, "creating api key")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{
		"api_key": key,
		"name":    req.Name,
		"user_id": req.UserID,
		"message": "store this key securely, it cannot be retrieved again",
	})
}

// ListAPIKeys returns all active API keys (without hashes).
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	keys, err := h.keys.ListKeys(r.Context())
	if err != nil {
		h.fail(w, r, err, "listing api keys")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"keys":  keys,
		"count": len(keys),
	})
}

// RevokeAPIKey deactivates the key given in the body.
func (h *Handler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBody)).Decode(&req); err != nil || req.APIKey == "" {
		h.writeError(w, http.StatusBadRequest, "api_key is required")
		return
	}
	if err := h.keys.RevokeKey(r.Context(), req.APIKey); err != nil {
		if errors.Is(err, apikey.ErrInvalidKey) {
			h.writeError(w, http.StatusNotFound, "api key not found")
			return
		}
		h.fail(w, r, err, "revoking api key")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// FlushStatsCache drops every cached stats series so the next pageviews
// request reads fresh counts.
func (h *Handler) FlushStatsCache(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "stats cache disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.fail(w, r, err, "flushing stats cache")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}
