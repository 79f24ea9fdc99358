package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luftujha/luftujha-core/internal/valve"
)

// setValveRequest is the body for POST /api/valves/{entityID}.
type setValveRequest struct {
	Value *float64 `json:"value"`
}

// handleListValves returns all known valve entities.
func (s *Server) handleListValves(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"valves": s.valves.All(),
	})
}

// handleGetValve returns a single valve by entity ID.
func (s *Server) handleGetValve(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")

	snap, ok := s.valves.Get(entityID)
	if !ok {
		writeNotFound(w, "unknown valve entity: "+entityID)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleSetValve commands a valve to a new position.
//
// The response carries the last known snapshot; the authoritative value
// arrives over WebSocket once the upstream confirms the change.
func (s *Server) handleSetValve(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")

	var req setValveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}
	if *req.Value < 0 || *req.Value > 100 {
		writeBadRequest(w, "value must be between 0 and 100")
		return
	}

	if err := s.valves.SetValue(r.Context(), entityID, *req.Value); err != nil {
		if errors.Is(err, valve.ErrUnknownEntity) {
			writeNotFound(w, "unknown valve entity: "+entityID)
			return
		}
		s.logger.Error("valve command failed", "entity_id", entityID, "error", err)
		writeBadGateway(w, "upstream command failed")
		return
	}

	snap, _ := s.valves.Get(entityID)
	writeJSON(w, http.StatusAccepted, snap)
}
