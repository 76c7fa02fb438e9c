package health

import (
	"encoding/json"
	"net/http"
)

// LivenessHandler always answers 200 while the process is serving.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusOK, c.Liveness())
	}
}

// ReadinessHandler answers 200 when every check passes and 503 otherwise.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.Readiness(r.Context())
		code := http.StatusOK
		if !status.Healthy() {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, r, code, status)
	}
}

func writeStatus(w http.ResponseWriter, r *http.Request, code int, status Status) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(status)
	}
}
