package enginesrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/errx"
)

// RuleService administra reglas de ruteo y de bypass
type RuleService struct {
	routingRules engine.RoutingRuleRepository
	bypassRules  engine.BypassRuleRepository
}

func NewRuleService(routingRules engine.RoutingRuleRepository, bypassRules engine.BypassRuleRepository) *RuleService {
	return &RuleService{routingRules: routingRules, bypassRules: bypassRules}
}

// ============================================================================
// Routing rules
// ============================================================================

// CreateRoutingRule crea una regla de ruteo
func (s *RuleService) CreateRoutingRule(ctx context.Context, req engine.CreateRoutingRuleRequest) (*engine.RoutingRule, error) {
	if err := validate.Struct(req); err != nil {
		return nil, errx.Wrap(err, "invalid create rule request", errx.TypeValidation)
	}
	if req.Condition != nil {
		if err := req.Condition.Validate(); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	rule := engine.RoutingRule{
		ID:        kernel.GenerateRuleID(),
		TenantID:  req.TenantID,
		RuleType:  req.RuleType,
		Condition: req.Condition,
		Action:    req.Action,
		Priority:  req.Priority,
		IsActive:  req.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.routingRules.Save(ctx, rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpdateRoutingRule aplica cambios parciales a una regla
func (s *RuleService) UpdateRoutingRule(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID, req engine.UpdateRoutingRuleRequest) (*engine.RoutingRule, error) {
	rule, err := s.routingRules.FindByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	if req.Condition != nil {
		if err := req.Condition.Validate(); err != nil {
			return nil, err
		}
		rule.Condition = req.Condition
	}
	if req.Action != nil {
		rule.Action = *req.Action
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	rule.UpdatedAt = time.Now()

	if err := s.routingRules.Save(ctx, *rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// GetRoutingRule retorna una regla del tenant
func (s *RuleService) GetRoutingRule(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) (*engine.RoutingRule, error) {
	return s.routingRules.FindByID(ctx, id, tenantID)
}

// ListRoutingRules lista reglas con filtros y paginación
func (s *RuleService) ListRoutingRules(ctx context.Context, req engine.RuleListRequest) (engine.RuleListResponse, error) {
	if err := validate.Struct(req); err != nil {
		return engine.RuleListResponse{}, errx.Wrap(err, "invalid list request", errx.TypeValidation)
	}
	return s.routingRules.List(ctx, req)
}

// DeleteRoutingRule borra una regla
func (s *RuleService) DeleteRoutingRule(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) error {
	return s.routingRules.Delete(ctx, id, tenantID)
}

// ============================================================================
// Bypass rules
// ============================================================================

// CreateBypassRule crea una regla de bypass
func (s *RuleService) CreateBypassRule(ctx context.Context, req engine.CreateBypassRuleRequest) (*engine.BypassRule, error) {
	if err := validate.Struct(req); err != nil {
		return nil, errx.Wrap(err, "invalid create bypass rule request", errx.TypeValidation)
	}

	now := time.Now()
	rule := engine.BypassRule{
		ID:                kernel.GenerateRuleID(),
		TenantID:          req.TenantID,
		MatchType:         req.MatchType,
		Value:             req.Value,
		TargetWorkflowKey: req.TargetWorkflowKey,
		TargetAgent:       req.TargetAgent,
		Priority:          req.Priority,
		IsolatedHistory:   req.IsolatedHistory,
		IsActive:          req.IsActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.bypassRules.Save(ctx, rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpdateBypassRule aplica cambios parciales a una regla de bypass
func (s *RuleService) UpdateBypassRule(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID, req engine.UpdateBypassRuleRequest) (*engine.BypassRule, error) {
	rule, err := s.bypassRules.FindByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	if req.Value != nil {
		rule.Value = *req.Value
	}
	if req.TargetWorkflowKey != nil {
		rule.TargetWorkflowKey = *req.TargetWorkflowKey
	}
	if req.TargetAgent != nil {
		rule.TargetAgent = *req.TargetAgent
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.IsolatedHistory != nil {
		rule.IsolatedHistory = *req.IsolatedHistory
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	rule.UpdatedAt = time.Now()

	if err := s.bypassRules.Save(ctx, *rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// GetBypassRule retorna una regla de bypass del tenant
func (s *RuleService) GetBypassRule(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) (*engine.BypassRule, error) {
	return s.bypassRules.FindByID(ctx, id, tenantID)
}

// ListBypassRules lista las reglas de bypass activas del tenant
func (s *RuleService) ListBypassRules(ctx context.Context, tenantID kernel.TenantID) ([]*engine.BypassRule, error) {
	return s.bypassRules.FindActiveByTenant(ctx, tenantID)
}

// DeleteBypassRule borra una regla de bypass
func (s *RuleService) DeleteBypassRule(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) error {
	return s.bypassRules.Delete(ctx, id, tenantID)
}
