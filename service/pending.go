package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/arenazl/munify-sub001/models"
	"github.com/arenazl/munify-sub001/repository"
)

// LedgerReader is the read-only ledger surface used to hide items already
// escalated within the dedup window from the pending view.
type LedgerReader interface {
	RecentExists(ctx context.Context, workItemID int64, trigger models.TriggerType, window time.Duration) (bool, error)
}

// PendingInspector previews work items that will breach a trigger threshold
// within a lookahead margin. The margin is a presentation-layer convenience;
// the evaluator itself never uses it.
type PendingInspector struct {
	workItems   WorkItemStore
	rules       RuleCatalog
	ledger      LedgerReader
	dedupWindow time.Duration
	now         func() time.Time
}

// NewPendingInspector creates a pending-escalation inspector.
func NewPendingInspector(workItems WorkItemStore, rules RuleCatalog, ledger LedgerReader, dedupWindow time.Duration) *PendingInspector {
	if dedupWindow <= 0 {
		dedupWindow = 24 * time.Hour
	}
	return &PendingInspector{
		workItems:   workItems,
		rules:       rules,
		ledger:      ledger,
		dedupWindow: dedupWindow,
		now:         time.Now,
	}
}

// Pending returns the work items that will breach a trigger threshold within
// the margin (including ones already breaching), sorted by remaining time
// ascending. Items already escalated for the trigger within the dedup window
// are excluded.
func (p *PendingInspector) Pending(ctx context.Context, tenantID *int64, margin time.Duration) ([]models.PendingEscalation, error) {
	if margin < 0 {
		return nil, fmt.Errorf("lookahead margin must be non-negative")
	}

	rules, err := p.rules.ActiveRules(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load escalation rules: %w", err)
	}

	now := p.now().UTC()
	var pending []models.PendingEscalation
	seen := make(map[string]struct{})

	for i := range rules {
		rule := rules[i]
		for _, trigger := range models.AllTriggerTypes {
			threshold := rule.ThresholdFor(trigger)
			if threshold <= 0 {
				continue
			}

			// Anything older than (threshold - margin) is within the margin
			// of breaching.
			filter := repository.CandidateFilter{
				TenantID:    rule.TenantID,
				State:       trigger.CandidateState(),
				Cutoff:      now.Add(margin - threshold),
				ByCreatedAt: trigger.UsesCreatedAt(),
			}
			if rule.CategoryID.Valid {
				categoryID := rule.CategoryID.Int64
				filter.CategoryID = &categoryID
			}
			if rule.MinUrgency.Valid {
				minUrgency := int(rule.MinUrgency.Int64)
				filter.MinUrgency = &minUrgency
			}

			candidates, err := p.workItems.FindCandidates(ctx, filter)
			if err != nil {
				return nil, fmt.Errorf("failed to query pending candidates: %w", err)
			}

			for _, candidate := range candidates {
				key := fmt.Sprintf("%d/%s", candidate.WorkItemID, trigger)
				if _, ok := seen[key]; ok {
					continue
				}

				escalated, err := p.ledger.RecentExists(ctx, candidate.WorkItemID, trigger, p.dedupWindow)
				if err != nil {
					log.Printf("[ESCALATION] Pending ledger check failed for work item %d: %v", candidate.WorkItemID, err)
					continue
				}
				if escalated {
					continue
				}

				referenceTime := candidate.UpdatedAt
				if trigger.UsesCreatedAt() {
					referenceTime = candidate.CreatedAt
				}
				deadline := referenceTime.Add(threshold)

				seen[key] = struct{}{}
				pending = append(pending, models.PendingEscalation{
					WorkItemID:  candidate.WorkItemID,
					ItemNumber:  candidate.ItemNumber,
					TenantID:    candidate.TenantID,
					RuleID:      rule.RuleID,
					TriggerType: trigger,
					Deadline:    deadline,
					Remaining:   deadline.Sub(now),
				})
			}
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Remaining == pending[j].Remaining {
			return pending[i].WorkItemID < pending[j].WorkItemID
		}
		return pending[i].Remaining < pending[j].Remaining
	})
	return pending, nil
}
