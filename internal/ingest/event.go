// Package ingest accepts pageview events from tracked websites, buffers them
// onto Kafka, and persists them into the session and website_event tables.
package ingest

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/errors"
	"github.com/google/uuid"
)

const (
	maxURLLength   = 500
	maxTitleLength = 500
	maxFieldLength = 50
)

// PageviewEvent is one page view reported by a tracker.
type PageviewEvent struct {
	EventID   string    `json:"event_id"`
	WebsiteID string    `json:"website_id"`
	SessionID string    `json:"session_id"`
	URL       string    `json:"url"`
	Referrer  string    `json:"referrer,omitempty"`
	Title     string    `json:"title,omitempty"`
	Hostname  string    `json:"hostname,omitempty"`
	Browser   string    `json:"browser,omitempty"`
	OS        string    `json:"os,omitempty"`
	Device    string    `json:"device,omitempty"`
	Country   string    `json:"country,omitempty"`
	Region    string    `json:"region,omitempty"`
	City      string    `json:"city,omitempty"`
	Tag       string    `json:"tag,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate rejects events that cannot be stored.
func (e *PageviewEvent) Validate() error {
	if _, err := uuid.Parse(e.WebsiteID); err != nil {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "website_id must be a UUID")
	}
	if e.SessionID != "" {
		if _, err := uuid.Parse(e.SessionID); err != nil {
			return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "session_id must be a UUID")
		}
	}
	if strings.TrimSpace(e.URL) == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "url is required")
	}
	if len(e.URL) > maxURLLength || len(e.Referrer) > maxURLLength {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "url and referrer must be at most %d bytes", maxURLLength)
	}
	if len(e.Title) > maxTitleLength {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "title must be at most %d bytes", maxTitleLength)
	}
	for name, v := range map[string]string{
		"browser": e.Browser, "os": e.OS, "device": e.Device, "country": e.Country,
		"region": e.Region, "city": e.City, "tag": e.Tag,
	} {
		if len(v) > maxFieldLength {
			return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%s must be at most %d bytes", name, maxFieldLength)
		}
	}
	return nil
}

// Normalize fills server-side fields: the event id, a timestamp when the
// tracker sent none, and a session id derived from the website, the visitor
// fingerprint, and the day.
func (e *PageviewEvent) Normalize(now time.Time, fingerprint string) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.Timestamp.IsZero() || e.Timestamp.After(now) {
		e.Timestamp = now
	}
	e.Timestamp = e.Timestamp.UTC()
	if e.SessionID == "" {
		website := uuid.MustParse(e.WebsiteID)
		seed := fmt.Sprintf("%s|%s", fingerprint, e.Timestamp.Format("2006-01-02"))
		e.SessionID = uuid.NewSHA1(website, []byte(seed)).String()
	}
}

// urlPath returns the path component of a page URL, which may be absolute or
// already a path.
func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return u.Path
}

// hostOf returns the host of an absolute URL, or "".
func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
