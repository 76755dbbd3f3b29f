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
	"github.com/Abraxas-365/craftable/logx"
	"github.com/Abraxas-365/craftable/storex"
	"github.com/jmoiron/sqlx"
)

type PostgresWorkflowRepository struct {
	db *sqlx.DB
}

var _ engine.WorkflowRepository = (*PostgresWorkflowRepository)(nil)

func NewPostgresWorkflowRepository(db *sqlx.DB) *PostgresWorkflowRepository {
	return &PostgresWorkflowRepository{db: db}
}

// dbWorkflow is an intermediate struct for database operations.
// Nodos y transiciones viajan como JSONB: el grafo se lee y escribe siempre
// completo, nunca por partes.
type dbWorkflow struct {
	ID          string          `db:"id"`
	TenantID    string          `db:"tenant_id"`
	Key         string          `db:"key"`
	Version     int             `db:"version"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	IsDraft     bool            `db:"is_draft"`
	IsActive    bool            `db:"is_active"`
	Nodes       json.RawMessage `db:"nodes"`
	Transitions json.RawMessage `db:"transitions"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func toDBWorkflow(wf engine.WorkflowDefinition) (*dbWorkflow, error) {
	nodes, err := json.Marshal(wf.Nodes)
	if err != nil {
		return nil, errx.Wrap(err, "failed to marshal workflow nodes", errx.TypeInternal)
	}
	transitions, err := json.Marshal(wf.Transitions)
	if err != nil {
		return nil, errx.Wrap(err, "failed to marshal workflow transitions", errx.TypeInternal)
	}
	return &dbWorkflow{
		ID:          wf.ID.String(),
		TenantID:    wf.TenantID.String(),
		Key:         wf.Key,
		Version:     wf.Version,
		Name:        wf.Name,
		Description: wf.Description,
		IsDraft:     wf.IsDraft,
		IsActive:    wf.IsActive,
		Nodes:       nodes,
		Transitions: transitions,
		CreatedAt:   wf.CreatedAt,
		UpdatedAt:   wf.UpdatedAt,
	}, nil
}

func toDomainWorkflow(db *dbWorkflow) (*engine.WorkflowDefinition, error) {
	var nodes []engine.NodeInstance
	if len(db.Nodes) > 0 {
		if err := json.Unmarshal(db.Nodes, &nodes); err != nil {
			logx.Error("Error unmarshaling workflow nodes for %s: %v", db.ID, err)
			return nil, errx.Wrap(err, "failed to unmarshal workflow nodes", errx.TypeInternal)
		}
	}
	var transitions []engine.Transition
	if len(db.Transitions) > 0 {
		if err := json.Unmarshal(db.Transitions, &transitions); err != nil {
			logx.Error("Error unmarshaling workflow transitions for %s: %v", db.ID, err)
			return nil, errx.Wrap(err, "failed to unmarshal workflow transitions", errx.TypeInternal)
		}
	}
	return &engine.WorkflowDefinition{
		ID:          kernel.WorkflowID(db.ID),
		TenantID:    kernel.TenantID(db.TenantID),
		Key:         db.Key,
		Version:     db.Version,
		Name:        db.Name,
		Description: db.Description,
		IsDraft:     db.IsDraft,
		IsActive:    db.IsActive,
		Nodes:       nodes,
		Transitions: transitions,
		CreatedAt:   db.CreatedAt,
		UpdatedAt:   db.UpdatedAt,
	}, nil
}

// Save inserts or updates a workflow definition
func (r *PostgresWorkflowRepository) Save(ctx context.Context, wf engine.WorkflowDefinition) error {
	dbWf, err := toDBWorkflow(wf)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflows (
			id, tenant_id, key, version, name, description, is_draft, is_active, nodes, transitions, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :key, :version, :name, :description, :is_draft, :is_active, :nodes, :transitions, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			version = EXCLUDED.version,
			is_draft = EXCLUDED.is_draft,
			is_active = EXCLUDED.is_active,
			nodes = EXCLUDED.nodes,
			transitions = EXCLUDED.transitions,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.NamedExecContext(ctx, query, dbWf)
	if err != nil {
		return errx.Wrap(err, "failed to save workflow", errx.TypeInternal).
			WithDetail("workflow_id", wf.ID.String())
	}

	return nil
}

// FindByID finds a workflow by ID
func (r *PostgresWorkflowRepository) FindByID(ctx context.Context, id kernel.WorkflowID) (*engine.WorkflowDefinition, error) {
	query := `
		SELECT id, tenant_id, key, version, name, description, is_draft, is_active, nodes, transitions, created_at, updated_at
		FROM workflows
		WHERE id = $1
	`

	var dbWf dbWorkflow
	err := r.db.GetContext(ctx, &dbWf, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, engine.ErrWorkflowNotFound().
				WithDetail("workflow_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find workflow by id", errx.TypeInternal)
	}

	return toDomainWorkflow(&dbWf)
}

// FindActiveByKey finds the single active version for a (tenant, key)
func (r *PostgresWorkflowRepository) FindActiveByKey(ctx context.Context, key string, tenantID kernel.TenantID) (*engine.WorkflowDefinition, error) {
	query := `
		SELECT id, tenant_id, key, version, name, description, is_draft, is_active, nodes, transitions, created_at, updated_at
		FROM workflows
		WHERE key = $1 AND tenant_id = $2 AND is_active = true
	`

	var dbWf dbWorkflow
	err := r.db.GetContext(ctx, &dbWf, query, key, tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, engine.ErrWorkflowNotFound().
				WithDetail("key", key).
				WithDetail("tenant_id", tenantID.String())
		}
		return nil, errx.Wrap(err, "failed to find active workflow by key", errx.TypeInternal)
	}

	return toDomainWorkflow(&dbWf)
}

// FindByTenant lists all workflows for a tenant
func (r *PostgresWorkflowRepository) FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*engine.WorkflowDefinition, error) {
	query := `
		SELECT id, tenant_id, key, version, name, description, is_draft, is_active, nodes, transitions, created_at, updated_at
		FROM workflows
		WHERE tenant_id = $1
		ORDER BY key ASC, version DESC
	`

	var dbWfs []dbWorkflow
	err := r.db.SelectContext(ctx, &dbWfs, query, tenantID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find workflows by tenant", errx.TypeInternal)
	}

	return toDomainWorkflows(dbWfs)
}

// FindVersions lists all versions of a workflow key, newest first
func (r *PostgresWorkflowRepository) FindVersions(ctx context.Context, key string, tenantID kernel.TenantID) ([]*engine.WorkflowDefinition, error) {
	query := `
		SELECT id, tenant_id, key, version, name, description, is_draft, is_active, nodes, transitions, created_at, updated_at
		FROM workflows
		WHERE key = $1 AND tenant_id = $2
		ORDER BY version DESC
	`

	var dbWfs []dbWorkflow
	err := r.db.SelectContext(ctx, &dbWfs, query, key, tenantID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find workflow versions", errx.TypeInternal)
	}

	return toDomainWorkflows(dbWfs)
}

// ExistsByKey checks if any version exists for a (tenant, key)
func (r *PostgresWorkflowRepository) ExistsByKey(ctx context.Context, key string, tenantID kernel.TenantID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM workflows WHERE key = $1 AND tenant_id = $2)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, key, tenantID.String())
	if err != nil {
		return false, errx.Wrap(err, "failed to check workflow existence", errx.TypeInternal)
	}

	return exists, nil
}

// Delete deletes a workflow version
func (r *PostgresWorkflowRepository) Delete(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) error {
	query := `DELETE FROM workflows WHERE id = $1 AND tenant_id = $2`

	result, err := r.db.ExecContext(ctx, query, id.String(), tenantID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete workflow", errx.TypeInternal).
			WithDetail("workflow_id", id.String())
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rows == 0 {
		return engine.ErrWorkflowNotFound().
			WithDetail("workflow_id", id.String())
	}

	return nil
}

// List lists workflows with filters and pagination
func (r *PostgresWorkflowRepository) List(ctx context.Context, req engine.WorkflowListRequest) (engine.WorkflowListResponse, error) {
	conditions := []string{"tenant_id = $1"}
	args := []interface{}{req.TenantID.String()}
	argPos := 2

	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}

	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR key ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM workflows %s", whereClause)
	var total int
	err := r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		return engine.WorkflowListResponse{}, errx.Wrap(err, "failed to count workflows", errx.TypeInternal)
	}

	query := fmt.Sprintf(`
		SELECT id, tenant_id, key, version, name, description, is_draft, is_active, nodes, transitions, created_at, updated_at
		FROM workflows
		%s
		ORDER BY key ASC, version DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)

	args = append(args, req.PageSize, req.GetOffset())

	var dbWfs []dbWorkflow
	err = r.db.SelectContext(ctx, &dbWfs, query, args...)
	if err != nil {
		return engine.WorkflowListResponse{}, errx.Wrap(err, "failed to list workflows", errx.TypeInternal)
	}

	workflows := make([]engine.WorkflowDefinition, 0, len(dbWfs))
	for i := range dbWfs {
		wf, err := toDomainWorkflow(&dbWfs[i])
		if err != nil {
			return engine.WorkflowListResponse{}, err
		}
		workflows = append(workflows, *wf)
	}

	return storex.NewPaginated(workflows, req.Page, req.PageSize, total), nil
}

// Activate publica una versión y desactiva las demás del mismo (tenant, key)
// en una sola transacción: nunca hay dos versiones activas a la vez.
func (r *PostgresWorkflowRepository) Activate(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	var key string
	err = tx.GetContext(ctx, &key, `SELECT key FROM workflows WHERE id = $1 AND tenant_id = $2`, id.String(), tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return engine.ErrWorkflowNotFound().
				WithDetail("workflow_id", id.String())
		}
		return errx.Wrap(err, "failed to find workflow for activation", errx.TypeInternal)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE workflows SET is_active = false, updated_at = NOW()
		WHERE tenant_id = $1 AND key = $2 AND id != $3
	`, tenantID.String(), key, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to deactivate previous versions", errx.TypeInternal)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE workflows SET is_active = true, is_draft = false, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
	`, id.String(), tenantID.String())
	if err != nil {
		return errx.Wrap(err, "failed to activate workflow", errx.TypeInternal)
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit activation", errx.TypeInternal)
	}

	return nil
}

func toDomainWorkflows(dbWfs []dbWorkflow) ([]*engine.WorkflowDefinition, error) {
	workflows := make([]*engine.WorkflowDefinition, 0, len(dbWfs))
	for i := range dbWfs {
		wf, err := toDomainWorkflow(&dbWfs[i])
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}
