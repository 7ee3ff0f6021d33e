package service

import (
	"context"
	"errors"

	"github.com/arenazl/munify-sub001/models"
)

// ErrRuleNotFound is returned when a rule does not exist for the tenant.
var ErrRuleNotFound = errors.New("escalation rule not found")

// RuleStore is the persistence surface for rule administration.
type RuleStore interface {
	Create(ctx context.Context, rule *models.EscalationRule) error
	Update(ctx context.Context, rule *models.EscalationRule) error
	GetByID(ctx context.Context, ruleID int64) (*models.EscalationRule, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]models.EscalationRule, error)
	Deactivate(ctx context.Context, tenantID, ruleID int64) error
}

// RuleService owns escalation rule administration. Malformed rules are
// rejected here so they never reach the evaluator.
type RuleService struct {
	rules RuleStore
}

// NewRuleService creates a rule service.
func NewRuleService(rules RuleStore) *RuleService {
	return &RuleService{rules: rules}
}

// Create validates and stores a new rule.
func (s *RuleService) Create(ctx context.Context, rule *models.EscalationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	return s.rules.Create(ctx, rule)
}

// Update validates and rewrites an existing rule of the tenant. The stored
// creation time is carried over so callers see the original value, not the
// zero time of a request-derived model.
func (s *RuleService) Update(ctx context.Context, rule *models.EscalationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	existing, err := s.rules.GetByID(ctx, rule.RuleID)
	if err != nil {
		return err
	}
	if existing == nil || existing.TenantID != rule.TenantID {
		return ErrRuleNotFound
	}
	rule.CreatedAt = existing.CreatedAt
	return s.rules.Update(ctx, rule)
}

// Get retrieves one rule of the tenant.
func (s *RuleService) Get(ctx context.Context, tenantID, ruleID int64) (*models.EscalationRule, error) {
	rule, err := s.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil || rule.TenantID != tenantID {
		return nil, ErrRuleNotFound
	}
	return rule, nil
}

// List retrieves all rules of a tenant, active and inactive.
func (s *RuleService) List(ctx context.Context, tenantID int64) ([]models.EscalationRule, error) {
	return s.rules.ListByTenant(ctx, tenantID)
}

// Deactivate soft-deletes a rule. Ledger entries keep referencing it.
func (s *RuleService) Deactivate(ctx context.Context, tenantID, ruleID int64) error {
	existing, err := s.rules.GetByID(ctx, ruleID)
	if err != nil {
		return err
	}
	if existing == nil || existing.TenantID != tenantID {
		return ErrRuleNotFound
	}
	return s.rules.Deactivate(ctx, tenantID, ruleID)
}
