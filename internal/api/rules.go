package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luftujha/luftujha-core/internal/schedule"
)

// handleListRules returns all schedule rules.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		writeNotFound(w, "scheduling is disabled")
		return
	}

	rules, err := s.rules.List(r.Context())
	if err != nil {
		s.logger.Error("rule list failed", "error", err)
		writeInternalError(w, "failed to list rules")
		return
	}
	if rules == nil {
		rules = []*schedule.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// handleGetRule returns a single rule by ID.
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		writeNotFound(w, "scheduling is disabled")
		return
	}
	id := chi.URLParam(r, "id")

	rule, err := s.rules.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, schedule.ErrRuleNotFound) {
			writeNotFound(w, "rule not found: "+id)
			return
		}
		s.logger.Error("rule fetch failed", "rule_id", id, "error", err)
		writeInternalError(w, "failed to fetch rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// handleCreateRule validates and persists a new rule.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		writeNotFound(w, "scheduling is disabled")
		return
	}

	var rule schedule.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	schedule.ApplyDefaults(&rule)
	if err := schedule.ValidateRule(&rule); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if err := s.rules.Create(r.Context(), &rule); err != nil {
		if errors.Is(err, schedule.ErrRuleExists) {
			writeConflict(w, "rule already exists: "+rule.ID)
			return
		}
		s.logger.Error("rule create failed", "rule_id", rule.ID, "error", err)
		writeInternalError(w, "failed to create rule")
		return
	}

	s.logger.Info("rule created", "rule_id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, rule)
}

// handleUpdateRule replaces an existing rule.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		writeNotFound(w, "scheduling is disabled")
		return
	}
	id := chi.URLParam(r, "id")

	var rule schedule.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	// The path is authoritative for the rule identity.
	rule.ID = id

	schedule.ApplyDefaults(&rule)
	if err := schedule.ValidateRule(&rule); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if err := s.rules.Update(r.Context(), &rule); err != nil {
		if errors.Is(err, schedule.ErrRuleNotFound) {
			writeNotFound(w, "rule not found: "+id)
			return
		}
		s.logger.Error("rule update failed", "rule_id", id, "error", err)
		writeInternalError(w, "failed to update rule")
		return
	}

	s.logger.Info("rule updated", "rule_id", id, "name", rule.Name)
	writeJSON(w, http.StatusOK, rule)
}

// handleDeleteRule removes a rule.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		writeNotFound(w, "scheduling is disabled")
		return
	}
	id := chi.URLParam(r, "id")

	if err := s.rules.Delete(r.Context(), id); err != nil {
		if errors.Is(err, schedule.ErrRuleNotFound) {
			writeNotFound(w, "rule not found: "+id)
			return
		}
		s.logger.Error("rule delete failed", "rule_id", id, "error", err)
		writeInternalError(w, "failed to delete rule")
		return
	}

	s.logger.Info("rule deleted", "rule_id", id)
	w.WriteHeader(http.StatusNoContent)
}
