package engineinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/errx"
	"github.com/jmoiron/sqlx"
)

type PostgresBypassRuleRepository struct {
	db *sqlx.DB
}

var _ engine.BypassRuleRepository = (*PostgresBypassRuleRepository)(nil)

func NewPostgresBypassRuleRepository(db *sqlx.DB) *PostgresBypassRuleRepository {
	return &PostgresBypassRuleRepository{db: db}
}

// dbBypassRule is an intermediate struct for database operations
type dbBypassRule struct {
	ID                string         `db:"id"`
	TenantID          string         `db:"tenant_id"`
	MatchType         string         `db:"match_type"`
	Value             string         `db:"value"`
	TargetWorkflowKey string         `db:"target_workflow_key"`
	TargetAgent       sql.NullString `db:"target_agent"`
	Priority          int            `db:"priority"`
	IsolatedHistory   bool           `db:"isolated_history"`
	IsActive          bool           `db:"is_active"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func toDBBypassRule(rule engine.BypassRule) *dbBypassRule {
	return &dbBypassRule{
		ID:                rule.ID.String(),
		TenantID:          rule.TenantID.String(),
		MatchType:         string(rule.MatchType),
		Value:             rule.Value,
		TargetWorkflowKey: rule.TargetWorkflowKey,
		TargetAgent:       sql.NullString{String: rule.TargetAgent, Valid: rule.TargetAgent != ""},
		Priority:          rule.Priority,
		IsolatedHistory:   rule.IsolatedHistory,
		IsActive:          rule.IsActive,
		CreatedAt:         rule.CreatedAt,
		UpdatedAt:         rule.UpdatedAt,
	}
}

func toDomainBypassRule(db *dbBypassRule) *engine.BypassRule {
	return &engine.BypassRule{
		ID:                kernel.RuleID(db.ID),
		TenantID:          kernel.TenantID(db.TenantID),
		MatchType:         engine.BypassMatchType(db.MatchType),
		Value:             db.Value,
		TargetWorkflowKey: db.TargetWorkflowKey,
		TargetAgent:       db.TargetAgent.String,
		Priority:          db.Priority,
		IsolatedHistory:   db.IsolatedHistory,
		IsActive:          db.IsActive,
		CreatedAt:         db.CreatedAt,
		UpdatedAt:         db.UpdatedAt,
	}
}

// Save inserts or updates a bypass rule
func (r *PostgresBypassRuleRepository) Save(ctx context.Context, rule engine.BypassRule) error {
	dbR := toDBBypassRule(rule)

	query := `
		INSERT INTO bypass_rules (
			id, tenant_id, match_type, value, target_workflow_key, target_agent,
			priority, isolated_history, is_active, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :match_type, :value, :target_workflow_key, :target_agent,
			:priority, :isolated_history, :is_active, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			match_type = EXCLUDED.match_type,
			value = EXCLUDED.value,
			target_workflow_key = EXCLUDED.target_workflow_key,
			target_agent = EXCLUDED.target_agent,
			priority = EXCLUDED.priority,
			isolated_history = EXCLUDED.isolated_history,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.NamedExecContext(ctx, query, dbR)
	if err != nil {
		return errx.Wrap(err, "failed to save bypass rule", errx.TypeInternal).
			WithDetail("rule_id", rule.ID.String())
	}

	return nil
}

// FindByID finds a bypass rule by ID and tenant
func (r *PostgresBypassRuleRepository) FindByID(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) (*engine.BypassRule, error) {
	query := `
		SELECT id, tenant_id, match_type, value, target_workflow_key, target_agent,
		       priority, isolated_history, is_active, created_at, updated_at
		FROM bypass_rules
		WHERE id = $1 AND tenant_id = $2
	`

	var dbR dbBypassRule
	err := r.db.GetContext(ctx, &dbR, query, id.String(), tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, engine.ErrBypassRuleNotFound().
				WithDetail("rule_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find bypass rule by id", errx.TypeInternal)
	}

	return toDomainBypassRule(&dbR), nil
}

// FindActiveByTenant lists active bypass rules ordered by ascending priority
func (r *PostgresBypassRuleRepository) FindActiveByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*engine.BypassRule, error) {
	query := `
		SELECT id, tenant_id, match_type, value, target_workflow_key, target_agent,
		       priority, isolated_history, is_active, created_at, updated_at
		FROM bypass_rules
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY priority ASC, created_at ASC
	`

	var dbRules []dbBypassRule
	err := r.db.SelectContext(ctx, &dbRules, query, tenantID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find active bypass rules", errx.TypeInternal)
	}

	rules := make([]*engine.BypassRule, len(dbRules))
	for i := range dbRules {
		rules[i] = toDomainBypassRule(&dbRules[i])
	}
	return rules, nil
}

// Delete deletes a bypass rule
func (r *PostgresBypassRuleRepository) Delete(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) error {
	query := `DELETE FROM bypass_rules WHERE id = $1 AND tenant_id = $2`

	result, err := r.db.ExecContext(ctx, query, id.String(), tenantID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete bypass rule", errx.TypeInternal).
			WithDetail("rule_id", id.String())
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rows == 0 {
		return engine.ErrBypassRuleNotFound().
			WithDetail("rule_id", id.String())
	}

	return nil
}
