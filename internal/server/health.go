package server

import (
	"context"
	"net/http"
	"time"
)

const checkTimeout = 5 * time.Second

type subsystemStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status     string            `json:"status"`
	Subsystems []subsystemStatus `json:"subsystems"`
}

// handleHealth probes every registered subsystem. Any failure degrades
// the overall status and turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Subsystems: make([]subsystemStatus, 0, len(s.checks))}

	for _, check := range s.checks {
		sub := subsystemStatus{Name: check.Name, Status: "ok"}

		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		if err := check.Ping(ctx); err != nil {
			sub.Status = "unavailable"
			sub.Error = err.Error()
			resp.Status = "degraded"
		}
		cancel()

		resp.Subsystems = append(resp.Subsystems, sub)
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
