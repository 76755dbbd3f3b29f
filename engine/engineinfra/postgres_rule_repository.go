package engineinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/storex"
	"github.com/jmoiron/sqlx"
)

type PostgresRoutingRuleRepository struct {
	db *sqlx.DB
}

var _ engine.RoutingRuleRepository = (*PostgresRoutingRuleRepository)(nil)

func NewPostgresRoutingRuleRepository(db *sqlx.DB) *PostgresRoutingRuleRepository {
	return &PostgresRoutingRuleRepository{db: db}
}

// dbRoutingRule is an intermediate struct for database operations
type dbRoutingRule struct {
	ID        string          `db:"id"`
	TenantID  string          `db:"tenant_id"`
	RuleType  string          `db:"rule_type"`
	Condition json.RawMessage `db:"condition"`
	Action    json.RawMessage `db:"action"`
	Priority  int             `db:"priority"`
	IsActive  bool            `db:"is_active"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func toDBRoutingRule(rule engine.RoutingRule) (*dbRoutingRule, error) {
	var condition json.RawMessage
	if rule.Condition != nil {
		raw, err := json.Marshal(rule.Condition)
		if err != nil {
			return nil, errx.Wrap(err, "failed to marshal rule condition", errx.TypeInternal)
		}
		condition = raw
	}
	action, err := json.Marshal(rule.Action)
	if err != nil {
		return nil, errx.Wrap(err, "failed to marshal rule action", errx.TypeInternal)
	}
	return &dbRoutingRule{
		ID:        rule.ID.String(),
		TenantID:  rule.TenantID.String(),
		RuleType:  string(rule.RuleType),
		Condition: condition,
		Action:    action,
		Priority:  rule.Priority,
		IsActive:  rule.IsActive,
		CreatedAt: rule.CreatedAt,
		UpdatedAt: rule.UpdatedAt,
	}, nil
}

func toDomainRoutingRule(db *dbRoutingRule) (*engine.RoutingRule, error) {
	var condition *engine.Condition
	if len(db.Condition) > 0 && string(db.Condition) != "null" {
		condition = &engine.Condition{}
		if err := json.Unmarshal(db.Condition, condition); err != nil {
			return nil, errx.Wrap(err, "failed to unmarshal rule condition", errx.TypeInternal)
		}
	}
	var action engine.RuleAction
	if len(db.Action) > 0 {
		if err := json.Unmarshal(db.Action, &action); err != nil {
			return nil, errx.Wrap(err, "failed to unmarshal rule action", errx.TypeInternal)
		}
	}
	return &engine.RoutingRule{
		ID:        kernel.RuleID(db.ID),
		TenantID:  kernel.TenantID(db.TenantID),
		RuleType:  engine.RuleType(db.RuleType),
		Condition: condition,
		Action:    action,
		Priority:  db.Priority,
		IsActive:  db.IsActive,
		CreatedAt: db.CreatedAt,
		UpdatedAt: db.UpdatedAt,
	}, nil
}

// Save inserts or updates a routing rule
func (r *PostgresRoutingRuleRepository) Save(ctx context.Context, rule engine.RoutingRule) error {
	dbR, err := toDBRoutingRule(rule)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO routing_rules (
			id, tenant_id, rule_type, condition, action, priority, is_active, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :rule_type, :condition, :action, :priority, :is_active, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			rule_type = EXCLUDED.rule_type,
			condition = EXCLUDED.condition,
			action = EXCLUDED.action,
			priority = EXCLUDED.priority,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.NamedExecContext(ctx, query, dbR)
	if err != nil {
		return errx.Wrap(err, "failed to save routing rule", errx.TypeInternal).
			WithDetail("rule_id", rule.ID.String())
	}

	return nil
}

// FindByID finds a routing rule by ID and tenant
func (r *PostgresRoutingRuleRepository) FindByID(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) (*engine.RoutingRule, error) {
	query := `
		SELECT id, tenant_id, rule_type, condition, action, priority, is_active, created_at, updated_at
		FROM routing_rules
		WHERE id = $1 AND tenant_id = $2
	`

	var dbR dbRoutingRule
	err := r.db.GetContext(ctx, &dbR, query, id.String(), tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, engine.ErrRuleNotFound().
				WithDetail("rule_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find routing rule by id", errx.TypeInternal)
	}

	return toDomainRoutingRule(&dbR)
}

// FindActiveByTenant lists active rules ordered by ascending priority
func (r *PostgresRoutingRuleRepository) FindActiveByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*engine.RoutingRule, error) {
	query := `
		SELECT id, tenant_id, rule_type, condition, action, priority, is_active, created_at, updated_at
		FROM routing_rules
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY priority ASC, created_at ASC
	`

	var dbRules []dbRoutingRule
	err := r.db.SelectContext(ctx, &dbRules, query, tenantID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find active routing rules", errx.TypeInternal)
	}

	rules := make([]*engine.RoutingRule, 0, len(dbRules))
	for i := range dbRules {
		rule, err := toDomainRoutingRule(&dbRules[i])
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Delete deletes a routing rule
func (r *PostgresRoutingRuleRepository) Delete(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) error {
	query := `DELETE FROM routing_rules WHERE id = $1 AND tenant_id = $2`

	result, err := r.db.ExecContext(ctx, query, id.String(), tenantID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete routing rule", errx.TypeInternal).
			WithDetail("rule_id", id.String())
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rows == 0 {
		return engine.ErrRuleNotFound().
			WithDetail("rule_id", id.String())
	}

	return nil
}

// List lists routing rules with filters and pagination
func (r *PostgresRoutingRuleRepository) List(ctx context.Context, req engine.RuleListRequest) (engine.RuleListResponse, error) {
	conditions := []string{"tenant_id = $1"}
	args := []interface{}{req.TenantID.String()}
	argPos := 2

	if req.RuleType != nil {
		conditions = append(conditions, fmt.Sprintf("rule_type = $%d", argPos))
		args = append(args, string(*req.RuleType))
		argPos++
	}

	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM routing_rules %s", whereClause)
	var total int
	err := r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		return engine.RuleListResponse{}, errx.Wrap(err, "failed to count routing rules", errx.TypeInternal)
	}

	query := fmt.Sprintf(`
		SELECT id, tenant_id, rule_type, condition, action, priority, is_active, created_at, updated_at
		FROM routing_rules
		%s
		ORDER BY priority ASC, created_at ASC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)

	args = append(args, req.PageSize, req.GetOffset())

	var dbRules []dbRoutingRule
	err = r.db.SelectContext(ctx, &dbRules, query, args...)
	if err != nil {
		return engine.RuleListResponse{}, errx.Wrap(err, "failed to list routing rules", errx.TypeInternal)
	}

	rules := make([]engine.RoutingRule, 0, len(dbRules))
	for i := range dbRules {
		rule, err := toDomainRoutingRule(&dbRules[i])
		if err != nil {
			return engine.RuleListResponse{}, err
		}
		rules = append(rules, *rule)
	}

	return storex.NewPaginated(rules, req.Page, req.PageSize, total), nil
}
