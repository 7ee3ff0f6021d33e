// Package schema: safe database initialization — create only missing tables, never drop or overwrite.

package schema

import (
	"database/sql"
	"log"
)

const (
	tableWorkItems        = "work_items"
	tableEscalationRules  = "escalation_rules"
	tableEscalationLedger = "escalation_ledger"
	tableLifecycleHistory = "lifecycle_history"
	tableEmployees        = "employees"
	tableNotificationsLog = "notifications_log"
)

// InitializeDatabase ensures core tables exist. Checks INFORMATION_SCHEMA.TABLES; creates only
// missing tables in order: work_items → escalation_rules → escalation_ledger → lifecycle_history
// → employees → notifications_log. Does not drop or recreate tables; does not remove data.
func InitializeDatabase(db *sql.DB) {
	ensureTable(db, tableWorkItems, createWorkItemsTable)
	ensureTable(db, tableEscalationRules, createEscalationRulesTable)
	ensureTable(db, tableEscalationLedger, createEscalationLedgerTable)
	ensureTable(db, tableLifecycleHistory, createLifecycleHistoryTable)
	ensureTable(db, tableEmployees, createEmployeesTable)
	ensureTable(db, tableNotificationsLog, createNotificationsLogTable)

	// Fix missing audit columns on databases created before the audit fields landed.
	ensureColumn(db, tableLifecycleHistory, "actor_type", "VARCHAR(50) NULL COMMENT 'Audit: who made the change (system, staff, citizen)'")
	ensureColumn(db, tableLifecycleHistory, "actor_id", "BIGINT NULL COMMENT 'Audit: employee_id; NULL for system or citizen'")
	ensureColumn(db, tableEscalationLedger, "reason", "TEXT NULL COMMENT 'Audit: human-readable trigger explanation'")
}

func ensureTable(db *sql.DB, table string, create func(*sql.DB)) {
	exists, err := tableExists(db, table)
	if err != nil {
		log.Fatalf("[SCHEMA] Failed to check if table %s exists: %v", table, err)
	}
	if exists {
		log.Printf("[SCHEMA] %s table exists", table)
		return
	}
	create(db)
	log.Printf("[SCHEMA] created %s table", table)
}

func createWorkItemsTable(db *sql.DB) {
	q := `
CREATE TABLE IF NOT EXISTS work_items (
    work_item_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    item_number VARCHAR(50) UNIQUE NOT NULL COMMENT 'Public-facing item number',
    tenant_id BIGINT NOT NULL COMMENT 'Owning municipality',
    title VARCHAR(500) NOT NULL COMMENT 'Work item title',
    description TEXT NOT NULL COMMENT 'Detailed description',
    state ENUM('new', 'received', 'assigned', 'in_progress', 'pending_confirmation', 'resolved', 'rejected') NOT NULL DEFAULT 'new' COMMENT 'Current lifecycle state',
    priority INT NOT NULL DEFAULT 3 COMMENT 'Urgency 1 (highest) to 5 (lowest)',
    category_id BIGINT NULL COMMENT 'Service category',
    assignee_id BIGINT NULL COMMENT 'Currently assigned employee',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP COMMENT 'Intake time',
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP COMMENT 'Last state change',
    INDEX idx_item_number (item_number),
    INDEX idx_tenant_id (tenant_id),
    INDEX idx_tenant_state (tenant_id, state),
    INDEX idx_state_created (state, created_at),
    INDEX idx_state_updated (state, updated_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
	if _, err := db.Exec(q); err != nil {
		log.Fatalf("[SCHEMA] Failed to create table %s: %v", tableWorkItems, err)
	}
}

func createEscalationRulesTable(db *sql.DB) {
	q := `
CREATE TABLE IF NOT EXISTS escalation_rules (
    rule_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    tenant_id BIGINT NOT NULL COMMENT 'Owning municipality',
    name VARCHAR(255) NOT NULL COMMENT 'Rule name for operators',
    is_active BOOLEAN NOT NULL DEFAULT TRUE COMMENT 'Soft-delete flag',
    unassigned_after_seconds INT NOT NULL DEFAULT 0 COMMENT 'Threshold for items still unassigned; 0 disables',
    unstarted_after_seconds INT NOT NULL DEFAULT 0 COMMENT 'Threshold for assigned items not started; 0 disables',
    unresolved_after_seconds INT NOT NULL DEFAULT 0 COMMENT 'Threshold for items still in progress; 0 disables',
    category_id BIGINT NULL COMMENT 'Restrict to one category; NULL matches all',
    min_urgency INT NULL COMMENT 'Only items at least this urgent; NULL matches all',
    action VARCHAR(50) NOT NULL COMMENT 'notify, increase_priority or reassign',
    params TEXT NULL COMMENT 'Action parameters (JSON)',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_tenant_active (tenant_id, is_active)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
	if _, err := db.Exec(q); err != nil {
		log.Fatalf("[SCHEMA] Failed to create table %s: %v", tableEscalationRules, err)
	}
}

func createEscalationLedgerTable(db *sql.DB) {
	// The composite index backs the conditional insert that suppresses
	// duplicate escalations inside the dedup window.
	q := `
CREATE TABLE IF NOT EXISTS escalation_ledger (
    entry_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    tenant_id BIGINT NOT NULL COMMENT 'Owning municipality',
    work_item_id BIGINT NOT NULL COMMENT 'Escalated work item',
    rule_id BIGINT NOT NULL COMMENT 'Rule that fired',
    trigger_type VARCHAR(50) NOT NULL COMMENT 'unassigned, unstarted or unresolved',
    action_taken VARCHAR(50) NOT NULL COMMENT 'Action executed',
    priority_before INT NULL COMMENT 'Priority before the action (increase_priority only)',
    priority_after INT NULL COMMENT 'Priority after the action (increase_priority only)',
    reason TEXT NULL COMMENT 'Audit: human-readable trigger explanation',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP COMMENT 'Escalation time',
    INDEX idx_item_trigger_created (work_item_id, trigger_type, created_at),
    INDEX idx_tenant_created (tenant_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
	if _, err := db.Exec(q); err != nil {
		log.Fatalf("[SCHEMA] Failed to create table %s: %v", tableEscalationLedger, err)
	}
}

func createLifecycleHistoryTable(db *sql.DB) {
	q := `
CREATE TABLE IF NOT EXISTS lifecycle_history (
    history_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    work_item_id BIGINT NOT NULL COMMENT 'Related work item',
    actor_type VARCHAR(50) NULL COMMENT 'Audit: who made the change (system, staff, citizen)',
    actor_id BIGINT NULL COMMENT 'Audit: employee_id; NULL for system or citizen',
    state_before VARCHAR(50) NULL COMMENT 'Previous state',
    state_after VARCHAR(50) NOT NULL COMMENT 'New state',
    action VARCHAR(100) NOT NULL COMMENT 'What happened (intake, assign, escalation_notify, ...)',
    comment TEXT NULL COMMENT 'Notes attached to the change',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP COMMENT 'Change timestamp',
    INDEX idx_work_item_id (work_item_id),
    INDEX idx_item_created (work_item_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
	if _, err := db.Exec(q); err != nil {
		log.Fatalf("[SCHEMA] Failed to create table %s: %v", tableLifecycleHistory, err)
	}
}

func createEmployeesTable(db *sql.DB) {
	q := `
CREATE TABLE IF NOT EXISTS employees (
    employee_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    tenant_id BIGINT NOT NULL COMMENT 'Owning municipality',
    full_name VARCHAR(255) NOT NULL COMMENT 'Display name',
    email VARCHAR(255) UNIQUE NOT NULL COMMENT 'Login and notification address',
    role VARCHAR(50) NOT NULL DEFAULT 'operator' COMMENT 'admin, supervisor or operator',
    password_hash VARCHAR(255) NOT NULL COMMENT 'bcrypt hash',
    is_active BOOLEAN NOT NULL DEFAULT TRUE COMMENT 'Account suspension flag',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_email (email),
    INDEX idx_tenant_role (tenant_id, role)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
	if _, err := db.Exec(q); err != nil {
		log.Fatalf("[SCHEMA] Failed to create table %s: %v", tableEmployees, err)
	}
}

func createNotificationsLogTable(db *sql.DB) {
	q := `
CREATE TABLE IF NOT EXISTS notifications_log (
    notification_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    work_item_id BIGINT NOT NULL COMMENT 'Related work item',
    tenant_id BIGINT NOT NULL COMMENT 'Owning municipality',
    recipient VARCHAR(255) NOT NULL COMMENT 'Destination email',
    subject VARCHAR(500) NOT NULL,
    body TEXT NOT NULL,
    status VARCHAR(50) NOT NULL DEFAULT 'pending' COMMENT 'pending, retrying, sent or failed',
    retry_count INT NOT NULL DEFAULT 0,
    max_retries INT NOT NULL DEFAULT 3,
    next_retry_at TIMESTAMP NULL COMMENT 'Earliest next delivery attempt',
    sent_at TIMESTAMP NULL,
    error_message TEXT NULL COMMENT 'Last delivery error',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NULL,
    INDEX idx_status_retry (status, next_retry_at),
    INDEX idx_work_item_id (work_item_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
	if _, err := db.Exec(q); err != nil {
		log.Fatalf("[SCHEMA] Failed to create table %s: %v", tableNotificationsLog, err)
	}
}

func tableExists(db *sql.DB, table string) (bool, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`,
		table,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func ensureColumn(db *sql.DB, table, column, spec string) {
	exists, err := columnExists(db, table, column)
	if err != nil {
		log.Fatalf("[SCHEMA] Failed to check column %s.%s: %v", table, column, err)
	}
	if exists {
		return
	}
	// MySQL does not support ADD COLUMN IF NOT EXISTS; we checked above so safe to add
	query := "ALTER TABLE " + table + " ADD COLUMN " + column + " " + spec
	if _, err := db.Exec(query); err != nil {
		log.Fatalf("[SCHEMA] Failed to add column %s.%s: %v", table, column, err)
	}
	log.Printf("[SCHEMA] Added missing column: %s.%s", table, column)
}
