package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arenazl/munify-sub001/models"
)

// RuleRepository handles database operations for escalation rules
type RuleRepository struct {
	db *sql.DB
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `
	rule_id, tenant_id, name, is_active,
	unassigned_after_seconds, unstarted_after_seconds, unresolved_after_seconds,
	category_id, min_urgency, action, params, created_at, updated_at
`

func scanRule(scanner interface{ Scan(...interface{}) error }) (models.EscalationRule, error) {
	var rule models.EscalationRule
	var unassignedSecs, unstartedSecs, unresolvedSecs int64
	err := scanner.Scan(
		&rule.RuleID,
		&rule.TenantID,
		&rule.Name,
		&rule.IsActive,
		&unassignedSecs,
		&unstartedSecs,
		&unresolvedSecs,
		&rule.CategoryID,
		&rule.MinUrgency,
		&rule.Action,
		&rule.Params,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return rule, err
	}
	rule.UnassignedAfter = time.Duration(unassignedSecs) * time.Second
	rule.UnstartedAfter = time.Duration(unstartedSecs) * time.Second
	rule.UnresolvedAfter = time.Duration(unresolvedSecs) * time.Second
	return rule, nil
}

// ActiveRules retrieves active escalation rules, either for one tenant or for
// all tenants when tenantID is nil.
func (r *RuleRepository) ActiveRules(ctx context.Context, tenantID *int64) ([]models.EscalationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM escalation_rules WHERE is_active = true`
	args := []interface{}{}
	if tenantID != nil {
		query += " AND tenant_id = ?"
		args = append(args, *tenantID)
	}
	query += " ORDER BY tenant_id ASC, rule_id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalation rules: %w", err)
	}
	defer rows.Close()

	var rules []models.EscalationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escalation rules: %w", err)
	}
	return rules, nil
}

// ListByTenant retrieves all rules of a tenant, including inactive ones.
func (r *RuleRepository) ListByTenant(ctx context.Context, tenantID int64) ([]models.EscalationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM escalation_rules WHERE tenant_id = ? ORDER BY rule_id ASC`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalation rules: %w", err)
	}
	defer rows.Close()

	var rules []models.EscalationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escalation rules: %w", err)
	}
	return rules, nil
}

// GetByID retrieves one rule. Returns nil when not found.
func (r *RuleRepository) GetByID(ctx context.Context, ruleID int64) (*models.EscalationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM escalation_rules WHERE rule_id = ?`
	rule, err := scanRule(r.db.QueryRowContext(ctx, query, ruleID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation rule: %w", err)
	}
	return &rule, nil
}

// Create inserts a new escalation rule and fills in its generated ID.
func (r *RuleRepository) Create(ctx context.Context, rule *models.EscalationRule) error {
	rule.CreatedAt = time.Now().UTC()
	query := `
		INSERT INTO escalation_rules (
			tenant_id, name, is_active,
			unassigned_after_seconds, unstarted_after_seconds, unresolved_after_seconds,
			category_id, min_urgency, action, params, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(
		ctx,
		query,
		rule.TenantID,
		rule.Name,
		rule.IsActive,
		int64(rule.UnassignedAfter/time.Second),
		int64(rule.UnstartedAfter/time.Second),
		int64(rule.UnresolvedAfter/time.Second),
		rule.CategoryID,
		rule.MinUrgency,
		rule.Action,
		rule.Params,
		rule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation rule: %w", err)
	}

	ruleID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}
	rule.RuleID = ruleID
	return nil
}

// Update rewrites the mutable fields of a rule.
func (r *RuleRepository) Update(ctx context.Context, rule *models.EscalationRule) error {
	query := `
		UPDATE escalation_rules SET
			name = ?, is_active = ?,
			unassigned_after_seconds = ?, unstarted_after_seconds = ?, unresolved_after_seconds = ?,
			category_id = ?, min_urgency = ?, action = ?, params = ?,
			updated_at = ?
		WHERE rule_id = ? AND tenant_id = ?
	`
	result, err := r.db.ExecContext(
		ctx,
		query,
		rule.Name,
		rule.IsActive,
		int64(rule.UnassignedAfter/time.Second),
		int64(rule.UnstartedAfter/time.Second),
		int64(rule.UnresolvedAfter/time.Second),
		rule.CategoryID,
		rule.MinUrgency,
		rule.Action,
		rule.Params,
		time.Now().UTC(),
		rule.RuleID,
		rule.TenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update escalation rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rule update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d not found for tenant %d", rule.RuleID, rule.TenantID)
	}
	return nil
}

// Deactivate soft-deletes a rule by clearing its active flag. Rules are never
// physically removed so ledger entries keep a valid reference.
func (r *RuleRepository) Deactivate(ctx context.Context, tenantID, ruleID int64) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE escalation_rules SET is_active = false, updated_at = ? WHERE rule_id = ? AND tenant_id = ?`,
		time.Now().UTC(), ruleID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate escalation rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rule deactivation result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d not found for tenant %d", ruleID, tenantID)
	}
	return nil
}
