package routes

import (
	"net/http"
	"time"

	"github.com/arenazl/munify-sub001/handler"
	"github.com/arenazl/munify-sub001/middleware"
	"github.com/arenazl/munify-sub001/repository"
	"github.com/arenazl/munify-sub001/service"
	"github.com/gorilla/mux"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Evaluator     *service.Evaluator
	Pending       *service.PendingInspector
	Lifecycle     *service.LifecycleService
	Rules         *service.RuleService
	WorkItemRepo  *repository.WorkItemRepository
	LedgerRepo    *repository.LedgerRepository
	HistoryRepo   *repository.HistoryRepository
	EmployeeRepo  *repository.EmployeeRepository
	JWTSecret     string
	TokenTTLHours int
	PendingMargin time.Duration
}

// SetupRoutes configures all API routes
func SetupRoutes(deps Deps) *mux.Router {
	router := mux.NewRouter()

	escalationHandler := handler.NewEscalationHandler(
		deps.Evaluator, deps.Pending, deps.LedgerRepo, deps.HistoryRepo, deps.PendingMargin)
	ruleHandler := handler.NewRuleHandler(deps.Rules)
	workItemHandler := handler.NewWorkItemHandler(deps.Lifecycle, deps.WorkItemRepo, deps.HistoryRepo)
	authHandler := handler.NewAuthHandler(deps.EmployeeRepo, deps.JWTSecret, deps.TokenTTLHours)

	staffAuth := middleware.NewStaffAuthMiddleware(deps.JWTSecret)

	apiV1 := router.PathPrefix("/api/v1").Subrouter()

	// Staff login and identity
	apiV1.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	apiV1.Handle("/auth/me", staffAuth.RequireStaffAuth(http.HandlerFunc(authHandler.Me))).Methods("GET")

	// Escalation engine (admin only; the background worker runs the same pass
	// internally without HTTP)
	escalation := apiV1.PathPrefix("/escalation").Subrouter()
	escalation.Handle("/run", middleware.RequireAdminAuth(http.HandlerFunc(escalationHandler.RunPass))).Methods("POST")
	escalation.Handle("/history", middleware.RequireAdminAuth(http.HandlerFunc(escalationHandler.GetHistory))).Methods("GET")
	escalation.Handle("/pending", middleware.RequireAdminAuth(http.HandlerFunc(escalationHandler.GetPending))).Methods("GET")

	// Escalation rule administration (admin only, tenant-scoped)
	rules := apiV1.PathPrefix("/escalation/rules").Subrouter()
	rules.Use(middleware.RequireAdminAuth)
	rules.HandleFunc("", ruleHandler.CreateRule).Methods("POST")
	rules.HandleFunc("", ruleHandler.ListRules).Methods("GET")
	rules.HandleFunc("/{id}", ruleHandler.GetRule).Methods("GET")
	rules.HandleFunc("/{id}", ruleHandler.UpdateRule).Methods("PUT")
	rules.HandleFunc("/{id}", ruleHandler.DeleteRule).Methods("DELETE")

	// Work item intake (public submission) and reads
	workItems := apiV1.PathPrefix("/work-items").Subrouter()
	workItems.HandleFunc("", workItemHandler.CreateWorkItem).Methods("POST")
	workItems.Handle("", staffAuth.RequireStaffAuth(http.HandlerFunc(workItemHandler.ListWorkItems))).Methods("GET")
	workItems.HandleFunc("/{id}", workItemHandler.GetWorkItem).Methods("GET")
	workItems.HandleFunc("/{id}/timeline", workItemHandler.GetTimeline).Methods("GET")

	// Lifecycle transitions require a staff token
	workItems.Handle("/{id}/{action}", staffAuth.RequireStaffAuth(http.HandlerFunc(workItemHandler.Transition))).Methods("POST")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
