package intentinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Abraxas-365/converso/intent"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/errx"
	"github.com/jmoiron/sqlx"
)

type PostgresRuleRepository struct {
	db *sqlx.DB
}

var _ intent.RuleRepository = (*PostgresRuleRepository)(nil)

func NewPostgresRuleRepository(db *sqlx.DB) *PostgresRuleRepository {
	return &PostgresRuleRepository{db: db}
}

// dbIntentRule is an intermediate struct for database operations
type dbIntentRule struct {
	ID        string          `db:"id"`
	TenantID  string          `db:"tenant_id"`
	Intent    string          `db:"intent"`
	Patterns  json.RawMessage `db:"patterns"`
	Priority  int             `db:"priority"`
	IsActive  bool            `db:"is_active"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func toDBRule(rule intent.Rule) (*dbIntentRule, error) {
	patterns, err := json.Marshal(rule.Patterns)
	if err != nil {
		return nil, errx.Wrap(err, "failed to marshal intent patterns", errx.TypeInternal)
	}
	return &dbIntentRule{
		ID:        rule.ID.String(),
		TenantID:  rule.TenantID.String(),
		Intent:    rule.Intent,
		Patterns:  patterns,
		Priority:  rule.Priority,
		IsActive:  rule.IsActive,
		CreatedAt: rule.CreatedAt,
		UpdatedAt: rule.UpdatedAt,
	}, nil
}

func toDomainRule(db *dbIntentRule) (*intent.Rule, error) {
	var patterns []intent.Pattern
	if len(db.Patterns) > 0 {
		if err := json.Unmarshal(db.Patterns, &patterns); err != nil {
			return nil, errx.Wrap(err, "failed to unmarshal intent patterns", errx.TypeInternal)
		}
	}
	return &intent.Rule{
		ID:        kernel.RuleID(db.ID),
		TenantID:  kernel.TenantID(db.TenantID),
		Intent:    db.Intent,
		Patterns:  patterns,
		Priority:  db.Priority,
		IsActive:  db.IsActive,
		CreatedAt: db.CreatedAt,
		UpdatedAt: db.UpdatedAt,
	}, nil
}

// Save inserts or updates an intent rule
func (r *PostgresRuleRepository) Save(ctx context.Context, rule intent.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	dbR, err := toDBRule(rule)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO intent_rules (
			id, tenant_id, intent, patterns, priority, is_active, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :intent, :patterns, :priority, :is_active, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			intent = EXCLUDED.intent,
			patterns = EXCLUDED.patterns,
			priority = EXCLUDED.priority,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.NamedExecContext(ctx, query, dbR)
	if err != nil {
		return errx.Wrap(err, "failed to save intent rule", errx.TypeInternal).
			WithDetail("rule_id", rule.ID.String())
	}

	return nil
}

// FindByID finds an intent rule by ID and tenant
func (r *PostgresRuleRepository) FindByID(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) (*intent.Rule, error) {
	query := `
		SELECT id, tenant_id, intent, patterns, priority, is_active, created_at, updated_at
		FROM intent_rules
		WHERE id = $1 AND tenant_id = $2
	`

	var dbR dbIntentRule
	err := r.db.GetContext(ctx, &dbR, query, id.String(), tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, intent.ErrRuleNotFound().
				WithDetail("rule_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find intent rule by id", errx.TypeInternal)
	}

	return toDomainRule(&dbR)
}

// FindActiveByTenant lists active rules ordered by ascending priority
func (r *PostgresRuleRepository) FindActiveByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*intent.Rule, error) {
	query := `
		SELECT id, tenant_id, intent, patterns, priority, is_active, created_at, updated_at
		FROM intent_rules
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY priority ASC, created_at ASC
	`

	var dbRules []dbIntentRule
	err := r.db.SelectContext(ctx, &dbRules, query, tenantID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find active intent rules", errx.TypeInternal)
	}

	rules := make([]*intent.Rule, 0, len(dbRules))
	for i := range dbRules {
		rule, err := toDomainRule(&dbRules[i])
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Delete deletes an intent rule
func (r *PostgresRuleRepository) Delete(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) error {
	query := `DELETE FROM intent_rules WHERE id = $1 AND tenant_id = $2`

	result, err := r.db.ExecContext(ctx, query, id.String(), tenantID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete intent rule", errx.TypeInternal).
			WithDetail("rule_id", id.String())
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rows == 0 {
		return intent.ErrRuleNotFound().
			WithDetail("rule_id", id.String())
	}

	return nil
}
