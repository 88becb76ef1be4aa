package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/ingest"
)

const maxEventBody = 64 << 10

// Send accepts one pageview event from a tracker and queues it for
// publishing. It answers 202 once the event is buffered.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		h.writeError(w, http.StatusServiceUnavailable, "event collection disabled")
		return
	}

	var event ingest.PageviewEvent
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody))
	if err := dec.Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := event.Validate(); err != nil {
		h.fail(w, r, err, "validating event")
		return
	}
	event.Normalize(h.now(), fingerprint(r))
	h.events.Track(event)

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "accepted",
		"event_id":   event.EventID,
		"session_id": event.SessionID,
	})
}

// fingerprint identifies a visitor without storing their address.
func fingerprint(r *http.Request) string {
	return clientIP(r) + "|" + r.UserAgent()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
