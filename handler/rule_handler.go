package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/arenazl/munify-sub001/models"
	"github.com/arenazl/munify-sub001/service"
	"github.com/gorilla/mux"
)

// RuleHandler handles HTTP requests for escalation rule administration.
// Admin-only; configuration errors are rejected here, before any rule can
// reach the evaluator.
type RuleHandler struct {
	rules *service.RuleService
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(rules *service.RuleService) *RuleHandler {
	return &RuleHandler{rules: rules}
}

// ruleRequest is the JSON payload for creating or updating a rule.
// Thresholds are given in hours; zero disables a trigger.
type ruleRequest struct {
	TenantID             int64              `json:"tenant_id"`
	Name                 string             `json:"name"`
	IsActive             *bool              `json:"is_active,omitempty"`
	UnassignedAfterHours int                `json:"unassigned_after_hours"`
	UnstartedAfterHours  int                `json:"unstarted_after_hours"`
	UnresolvedAfterHours int                `json:"unresolved_after_hours"`
	CategoryID           *int64             `json:"category_id,omitempty"`
	MinUrgency           *int64             `json:"min_urgency,omitempty"`
	Action               models.ActionType  `json:"action"`
	Params               *models.RuleParams `json:"params,omitempty"`
}

// ruleResponse is the JSON shape returned for a rule.
type ruleResponse struct {
	RuleID               int64              `json:"rule_id"`
	TenantID             int64              `json:"tenant_id"`
	Name                 string             `json:"name"`
	IsActive             bool               `json:"is_active"`
	UnassignedAfterHours int                `json:"unassigned_after_hours"`
	UnstartedAfterHours  int                `json:"unstarted_after_hours"`
	UnresolvedAfterHours int                `json:"unresolved_after_hours"`
	CategoryID           *int64             `json:"category_id,omitempty"`
	MinUrgency           *int64             `json:"min_urgency,omitempty"`
	Action               models.ActionType  `json:"action"`
	Params               *models.RuleParams `json:"params,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
}

func (req *ruleRequest) toModel() (*models.EscalationRule, error) {
	rule := &models.EscalationRule{
		TenantID:        req.TenantID,
		Name:            req.Name,
		IsActive:        true,
		UnassignedAfter: time.Duration(req.UnassignedAfterHours) * time.Hour,
		UnstartedAfter:  time.Duration(req.UnstartedAfterHours) * time.Hour,
		UnresolvedAfter: time.Duration(req.UnresolvedAfterHours) * time.Hour,
		Action:          req.Action,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.CategoryID != nil {
		rule.CategoryID = sql.NullInt64{Int64: *req.CategoryID, Valid: true}
	}
	if req.MinUrgency != nil {
		rule.MinUrgency = sql.NullInt64{Int64: *req.MinUrgency, Valid: true}
	}
	params, err := models.EncodeRuleParams(req.Params)
	if err != nil {
		return nil, err
	}
	rule.Params = params
	return rule, nil
}

func toRuleResponse(rule *models.EscalationRule) (*ruleResponse, error) {
	params, err := models.ParseRuleParams(rule.Params)
	if err != nil {
		return nil, err
	}
	resp := &ruleResponse{
		RuleID:               rule.RuleID,
		TenantID:             rule.TenantID,
		Name:                 rule.Name,
		IsActive:             rule.IsActive,
		UnassignedAfterHours: int(rule.UnassignedAfter / time.Hour),
		UnstartedAfterHours:  int(rule.UnstartedAfter / time.Hour),
		UnresolvedAfterHours: int(rule.UnresolvedAfter / time.Hour),
		Action:               rule.Action,
		Params:               params,
		CreatedAt:            rule.CreatedAt,
	}
	if rule.CategoryID.Valid {
		categoryID := rule.CategoryID.Int64
		resp.CategoryID = &categoryID
	}
	if rule.MinUrgency.Valid {
		minUrgency := rule.MinUrgency.Int64
		resp.MinUrgency = &minUrgency
	}
	return resp, nil
}

// CreateRule handles POST /api/v1/escalation/rules
func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Malformed JSON body")
		return
	}

	rule, err := req.toModel()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := h.rules.Create(r.Context(), rule); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid rule", err.Error())
		return
	}

	resp, err := toRuleResponse(rule)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, resp)
}

// ListRules handles GET /api/v1/escalation/rules?tenant_id=N
func (h *RuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "tenant_id is required")
		return
	}

	rules, err := h.rules.List(r.Context(), tenantID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}

	responses := make([]*ruleResponse, 0, len(rules))
	for i := range rules {
		resp, err := toRuleResponse(&rules[i])
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
			return
		}
		responses = append(responses, resp)
	}
	respondWithJSON(w, http.StatusOK, responses)
}

// GetRule handles GET /api/v1/escalation/rules/{id}?tenant_id=N
func (h *RuleHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	tenantID, ruleID, ok := h.tenantAndRuleID(w, r)
	if !ok {
		return
	}

	rule, err := h.rules.Get(r.Context(), tenantID, ruleID)
	if errors.Is(err, service.ErrRuleNotFound) {
		respondWithError(w, http.StatusNotFound, "Not found", "Rule not found")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}

	resp, err := toRuleResponse(rule)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// UpdateRule handles PUT /api/v1/escalation/rules/{id}
func (h *RuleHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || ruleID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Invalid rule ID")
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Malformed JSON body")
		return
	}

	rule, err := req.toModel()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	rule.RuleID = ruleID

	err = h.rules.Update(r.Context(), rule)
	if errors.Is(err, service.ErrRuleNotFound) {
		respondWithError(w, http.StatusNotFound, "Not found", "Rule not found")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid rule", err.Error())
		return
	}

	resp, err := toRuleResponse(rule)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// DeleteRule handles DELETE /api/v1/escalation/rules/{id}?tenant_id=N
// Rules are soft-deactivated, never physically removed.
func (h *RuleHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	tenantID, ruleID, ok := h.tenantAndRuleID(w, r)
	if !ok {
		return
	}

	err := h.rules.Deactivate(r.Context(), tenantID, ruleID)
	if errors.Is(err, service.ErrRuleNotFound) {
		respondWithError(w, http.StatusNotFound, "Not found", "Rule not found")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"rule_id":     ruleID,
		"deactivated": true,
	})
}

// tenantAndRuleID parses tenant_id (query) and rule id (path).
func (h *RuleHandler) tenantAndRuleID(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "tenant_id is required")
		return 0, 0, false
	}
	ruleID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || ruleID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Invalid rule ID")
		return 0, 0, false
	}
	return tenantID, ruleID, true
}
