package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/arenazl/munify-sub001/config"
	"github.com/arenazl/munify-sub001/repository"
	"github.com/arenazl/munify-sub001/routes"
	"github.com/arenazl/munify-sub001/schema"
	"github.com/arenazl/munify-sub001/service"
	"github.com/arenazl/munify-sub001/worker"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Load configuration
	cfg := config.LoadConfig()
	log.Printf("Escalation worker interval: %s", cfg.Engine.WorkerInterval())
	log.Printf("Escalation dedup window: %s", cfg.Engine.DedupWindow())

	// Initialize database connection (UTC for consistent timestamps)
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
	)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("Failed to open database connection: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Database connection established")

	// Create missing tables, then verify the columns the engine depends on
	schema.InitializeDatabase(db)
	schema.ValidateRequiredColumns(db, nil)

	// Initialize repositories
	workItemRepo := repository.NewWorkItemRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Initialize services
	notificationService := service.NewNotificationService(
		notificationRepo,
		nil, // Default email sender
		nil, // Default retry config
	)
	evaluator := service.NewEvaluator(
		workItemRepo,
		ruleRepo,
		ledgerRepo,
		historyRepo,
		notificationService,
		employeeRepo,
		cfg.Engine.DedupWindow(),
		cfg.Engine.EffectivePoolSize(),
	)
	pendingInspector := service.NewPendingInspector(
		workItemRepo,
		ruleRepo,
		ledgerRepo,
		cfg.Engine.DedupWindow(),
	)
	lifecycleService := service.NewLifecycleService(workItemRepo, historyRepo)
	ruleService := service.NewRuleService(ruleRepo)

	// Background workers
	escalationWorker := worker.NewEscalationWorker(evaluator, cfg.Engine.WorkerInterval())
	escalationWorker.Start()

	notificationWorker := worker.NewNotificationWorker(notificationService, 30*time.Second)
	notificationWorker.Start()

	// Setup routes
	router := routes.SetupRoutes(routes.Deps{
		Evaluator:     evaluator,
		Pending:       pendingInspector,
		Lifecycle:     lifecycleService,
		Rules:         ruleService,
		WorkItemRepo:  workItemRepo,
		LedgerRepo:    ledgerRepo,
		HistoryRepo:   historyRepo,
		EmployeeRepo:  employeeRepo,
		JWTSecret:     cfg.Auth.JWTSecret,
		TokenTTLHours: cfg.Auth.TokenTTLHours,
		PendingMargin: cfg.Engine.PendingMargin(),
	})

	// Add CORS middleware
	corsHandler := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")

			// Handle preflight requests
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}

	// Wrap router with CORS middleware
	handler := corsHandler(router)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	log.Fatal(http.ListenAndServe(addr, handler))
}
