package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/arenazl/munify-sub001/models"
	"github.com/arenazl/munify-sub001/repository"
	"github.com/arenazl/munify-sub001/service"
)

// EscalationHandler handles HTTP requests for the escalation engine: manual
// pass triggers, the ledger/history join and the pending preview.
type EscalationHandler struct {
	evaluator     *service.Evaluator
	pending       *service.PendingInspector
	ledgerRepo    *repository.LedgerRepository
	historyRepo   *repository.HistoryRepository
	defaultMargin time.Duration
}

// NewEscalationHandler creates a new escalation handler
func NewEscalationHandler(
	evaluator *service.Evaluator,
	pending *service.PendingInspector,
	ledgerRepo *repository.LedgerRepository,
	historyRepo *repository.HistoryRepository,
	defaultMargin time.Duration,
) *EscalationHandler {
	return &EscalationHandler{
		evaluator:     evaluator,
		pending:       pending,
		ledgerRepo:    ledgerRepo,
		historyRepo:   historyRepo,
		defaultMargin: defaultMargin,
	}
}

// RunPass handles POST /api/v1/escalation/run[?tenant_id=N]
// Triggers one evaluation pass, tenant-scoped or global, and returns the
// report. Safe to call repeatedly thanks to the ledger dedup.
func (h *EscalationHandler) RunPass(w http.ResponseWriter, r *http.Request) {
	tenantID, err := optionalTenantID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	report, err := h.evaluator.RunEvaluationPass(r.Context(), tenantID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// GetHistory handles GET /api/v1/escalation/history?work_item_id=N&since_days=D
// Returns the ledger entries and lifecycle history of one work item.
func (h *EscalationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	workItemID, err := strconv.ParseInt(r.URL.Query().Get("work_item_id"), 10, 64)
	if err != nil || workItemID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "work_item_id is required")
		return
	}

	sinceDays := 30
	if raw := r.URL.Query().Get("since_days"); raw != "" {
		sinceDays, err = strconv.Atoi(raw)
		if err != nil || sinceDays <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid request", "since_days must be a positive integer")
			return
		}
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	since := time.Now().UTC().AddDate(0, 0, -sinceDays)
	ledger, err := h.ledgerRepo.ListByWorkItem(r.Context(), workItemID, since, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}
	history, err := h.historyRepo.ListByWorkItem(r.Context(), workItemID, since, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}

	if ledger == nil {
		ledger = []models.EscalationLedgerEntry{}
	}
	if history == nil {
		history = []models.LifecycleHistoryEntry{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"work_item_id": workItemID,
		"since_days":   sinceDays,
		"escalations":  ledger,
		"history":      history,
	})
}

// GetPending handles GET /api/v1/escalation/pending[?tenant_id=N&margin_hours=M]
// Returns items that will breach a threshold within the margin, sorted by
// remaining time ascending.
func (h *EscalationHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	tenantID, err := optionalTenantID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	margin := h.defaultMargin
	if raw := r.URL.Query().Get("margin_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours < 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid request", "margin_hours must be a non-negative integer")
			return
		}
		margin = time.Duration(hours) * time.Hour
	}

	pending, err := h.pending.Pending(r.Context(), tenantID, margin)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}
	if pending == nil {
		pending = []models.PendingEscalation{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"margin_hours": int(margin / time.Hour),
		"pending":      pending,
	})
}

// optionalTenantID parses the tenant_id query parameter; nil means all tenants.
func optionalTenantID(r *http.Request) (*int64, error) {
	raw := r.URL.Query().Get("tenant_id")
	if raw == "" {
		return nil, nil
	}
	tenantID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || tenantID <= 0 {
		return nil, fmt.Errorf("tenant_id must be a positive integer")
	}
	return &tenantID, nil
}
