package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/arenazl/munify-sub001/middleware"
	"github.com/arenazl/munify-sub001/models"
	"github.com/arenazl/munify-sub001/repository"
	"github.com/arenazl/munify-sub001/service"
	"github.com/gorilla/mux"
)

// WorkItemHandler handles HTTP requests for work item intake and lifecycle
// transitions.
type WorkItemHandler struct {
	lifecycle    *service.LifecycleService
	workItemRepo *repository.WorkItemRepository
	historyRepo  *repository.HistoryRepository
}

// NewWorkItemHandler creates a new work item handler
func NewWorkItemHandler(
	lifecycle *service.LifecycleService,
	workItemRepo *repository.WorkItemRepository,
	historyRepo *repository.HistoryRepository,
) *WorkItemHandler {
	return &WorkItemHandler{
		lifecycle:    lifecycle,
		workItemRepo: workItemRepo,
		historyRepo:  historyRepo,
	}
}

type createWorkItemRequest struct {
	TenantID    int64  `json:"tenant_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority,omitempty"`
	CategoryID  *int64 `json:"category_id,omitempty"`
}

// CreateWorkItem handles POST /api/v1/work-items
func (h *WorkItemHandler) CreateWorkItem(w http.ResponseWriter, r *http.Request) {
	var req createWorkItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Malformed JSON body")
		return
	}

	item, err := h.lifecycle.Intake(r.Context(), service.IntakeRequest{
		TenantID:    req.TenantID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, item)
}

// ListWorkItems handles GET /api/v1/work-items?limit=L
// Tenant scope comes from the staff token, never from the request.
func (h *WorkItemHandler) ListWorkItems(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.TenantIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "No tenant scope in request")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	items, err := h.workItemRepo.ListByTenant(r.Context(), tenantID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}
	if items == nil {
		items = []models.WorkItem{}
	}
	respondWithJSON(w, http.StatusOK, items)
}

// GetWorkItem handles GET /api/v1/work-items/{id}
func (h *WorkItemHandler) GetWorkItem(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	item, err := h.workItemRepo.GetByID(r.Context(), workItemID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}
	if item == nil {
		respondWithError(w, http.StatusNotFound, "Not found", "Work item not found")
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

// GetTimeline handles GET /api/v1/work-items/{id}/timeline
func (h *WorkItemHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	since := time.Now().UTC().AddDate(-1, 0, 0)
	history, err := h.historyRepo.ListByWorkItem(r.Context(), workItemID, since, 0)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}
	if history == nil {
		history = []models.LifecycleHistoryEntry{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"work_item_id": workItemID,
		"timeline":     history,
	})
}

type transitionRequest struct {
	AssigneeID int64  `json:"assignee_id,omitempty"`
	Comment    string `json:"comment,omitempty"`
}

// Transition handles POST /api/v1/work-items/{id}/{action} for the lifecycle
// actions: acknowledge, assign, start, complete, resolve, reject.
func (h *WorkItemHandler) Transition(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	action := mux.Vars(r)["action"]

	actorID, _ := middleware.EmployeeIDFromContext(r.Context())

	var req transitionRequest
	if r.Body != nil {
		// Body is optional for most actions.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	var item *models.WorkItem
	var err error
	switch action {
	case "acknowledge":
		item, err = h.lifecycle.Acknowledge(r.Context(), workItemID, actorID)
	case "assign":
		item, err = h.lifecycle.Assign(r.Context(), workItemID, actorID, req.AssigneeID)
	case "start":
		item, err = h.lifecycle.StartWork(r.Context(), workItemID, actorID)
	case "complete":
		item, err = h.lifecycle.Complete(r.Context(), workItemID, actorID, req.Comment)
	case "resolve":
		item, err = h.lifecycle.Resolve(r.Context(), workItemID, actorID, req.Comment)
	case "reject":
		item, err = h.lifecycle.Reject(r.Context(), workItemID, actorID, req.Comment)
	default:
		respondWithError(w, http.StatusNotFound, "Not found", "Unknown lifecycle action")
		return
	}

	switch {
	case errors.Is(err, service.ErrWorkItemNotFound):
		respondWithError(w, http.StatusNotFound, "Not found", "Work item not found")
	case errors.Is(err, service.ErrInvalidTransition):
		respondWithError(w, http.StatusConflict, "Invalid transition", err.Error())
	case errors.Is(err, service.ErrAssigneeRequired):
		respondWithError(w, http.StatusBadRequest, "Invalid request", err.Error())
	case err != nil:
		respondWithError(w, http.StatusInternalServerError, "Internal error", err.Error())
	default:
		respondWithJSON(w, http.StatusOK, item)
	}
}

func (h *WorkItemHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	workItemID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || workItemID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Invalid work item ID")
		return 0, false
	}
	return workItemID, true
}
