package handler

import "net/http"

// Health reports that the process is serving.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": h.cfg.Service})
}

// Live is the liveness probe.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		h.Health(w, r)
		return
	}
	h.health.LiveHandler()(w, r)
}

// Ready runs the dependency checks.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		h.Health(w, r)
		return
	}
	h.health.ReadyHandler()(w, r)
}
