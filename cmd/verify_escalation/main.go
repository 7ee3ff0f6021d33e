// verify_escalation runs one end-to-end verification: seed check, candidate query, one
// evaluation pass, ledger proof, dedup proof.
// Usage: from project root, run: go run ./cmd/verify_escalation
// Requires .env (or env) with DB_* set. Pass -tenant to scope the pass to one tenant.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/arenazl/munify-sub001/config"
	"github.com/arenazl/munify-sub001/repository"
	"github.com/arenazl/munify-sub001/schema"
	"github.com/arenazl/munify-sub001/service"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

func main() {
	tenantFlag := flag.Int64("tenant", 0, "scope the pass to one tenant (0 = all tenants)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env not found")
	}
	cfg := config.LoadConfig()

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.Database.User, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("DB open: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("DB ping: %v", err)
	}
	schema.ValidateRequiredColumns(db, nil)

	var tenantID *int64
	if *tenantFlag > 0 {
		tenantID = tenantFlag
	}

	// --- 1) What the engine will see ---
	var activeRules, openItems int
	if err := db.QueryRow(`SELECT COUNT(*) FROM escalation_rules WHERE is_active = true`).Scan(&activeRules); err != nil {
		log.Fatalf("Rule count query: %v", err)
	}
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM work_items WHERE state NOT IN ('resolved', 'rejected')`,
	).Scan(&openItems); err != nil {
		log.Fatalf("Open item count query: %v", err)
	}
	log.Printf("[VERIFY] active_rules=%d open_work_items=%d", activeRules, openItems)
	if activeRules == 0 {
		log.Fatalf("No active escalation rules - nothing to verify")
	}

	// --- 2) One evaluation pass (same wiring as the worker) ---
	workItemRepo := repository.NewWorkItemRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	notificationService := service.NewNotificationService(notificationRepo, nil, nil)
	evaluator := service.NewEvaluator(
		workItemRepo, ruleRepo, ledgerRepo, historyRepo,
		notificationService, employeeRepo,
		cfg.Engine.DedupWindow(), cfg.Engine.EffectivePoolSize(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	report, err := evaluator.RunEvaluationPass(ctx, tenantID)
	if err != nil {
		log.Fatalf("Evaluation pass: %v", err)
	}
	log.Printf("[VERIFY] pass 1: rules=%d candidates=%d executed=%d deduplicated=%d failures=%d duration=%s",
		report.RulesEvaluated, report.CandidatesChecked, len(report.Executed),
		report.Deduplicated, len(report.Failures), report.FinishedAt.Sub(report.StartedAt))
	for _, ex := range report.Executed {
		log.Printf("[VERIFY]   escalated work_item=%d trigger=%s action=%s rule=%d",
			ex.WorkItemID, ex.TriggerType, ex.Action, ex.RuleID)
	}
	for _, f := range report.Failures {
		log.Printf("[VERIFY]   FAILURE work_item=%d rule=%d: %s", f.WorkItemID, f.RuleID, f.Reason)
	}
	for _, w := range report.Warnings {
		log.Printf("[VERIFY]   warning: %s", w)
	}

	// --- 3) Ledger proof ---
	ledgerRows, err := ledgerRepo.CountSince(ctx, tenantID, report.StartedAt)
	if err != nil {
		log.Fatalf("Ledger proof query: %v", err)
	}
	log.Printf("[VERIFY] ledger rows written this pass: %d (expected %d)", ledgerRows, len(report.Executed))

	// --- 4) Dedup proof: a second immediate pass must execute nothing new ---
	second, err := evaluator.RunEvaluationPass(ctx, tenantID)
	if err != nil {
		log.Fatalf("Second evaluation pass: %v", err)
	}
	log.Printf("[VERIFY] pass 2: executed=%d deduplicated=%d", len(second.Executed), second.Deduplicated)
	if len(second.Executed) > 0 {
		log.Fatalf("[VERIFY] FAILED: second pass executed %d escalations; dedup window not holding", len(second.Executed))
	}
	log.Println("[VERIFY] OK: repeated pass was fully suppressed by the ledger")
}
