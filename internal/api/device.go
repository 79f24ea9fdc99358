package api

import (
	"encoding/json"
	"net/http"

	"github.com/luftujha/luftujha-core/internal/hru"
)

// directiveRequest is the body for POST /api/device.
type directiveRequest struct {
	Mode        any      `json:"mode,omitempty"`
	Power       *float64 `json:"power,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// handleGetDevice reads the current ventilation unit state over Modbus.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	state, err := s.device.ReadState(r.Context())
	if err != nil {
		s.logger.Error("device read failed", "error", err)
		writeBadGateway(w, "ventilation unit unreachable")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleApplyDirective writes a directive to the ventilation unit.
func (s *Server) handleApplyDirective(w http.ResponseWriter, r *http.Request) {
	var req directiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	d := hru.Directive{
		Mode:        req.Mode,
		Power:       req.Power,
		Temperature: req.Temperature,
	}
	if d.IsZero() {
		writeBadRequest(w, "directive must set mode, power, or temperature")
		return
	}
	if req.Power != nil && (*req.Power < 0 || *req.Power > 100) {
		writeBadRequest(w, "power must be between 0 and 100")
		return
	}

	if err := s.device.ApplyDirective(r.Context(), d); err != nil {
		s.logger.Error("directive write failed", "error", err)
		writeBadGateway(w, "ventilation unit write failed")
		return
	}

	// Read back so the caller sees the post-write state.
	state, err := s.device.ReadState(r.Context())
	if err != nil {
		writeJSON(w, http.StatusAccepted, map[string]any{"applied": true})
		return
	}
	writeJSON(w, http.StatusOK, state)
}
