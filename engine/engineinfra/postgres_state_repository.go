package engineinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/logx"
	"github.com/jmoiron/sqlx"
)

type PostgresStateRepository struct {
	db *sqlx.DB
}

var _ engine.ConversationStateRepository = (*PostgresStateRepository)(nil)

func NewPostgresStateRepository(db *sqlx.DB) *PostgresStateRepository {
	return &PostgresStateRepository{db: db}
}

// dbConversationState is an intermediate struct for database operations
type dbConversationState struct {
	ID                    string          `db:"id"`
	TenantID              string          `db:"tenant_id"`
	ChannelID             string          `db:"channel_id"`
	SenderID              string          `db:"sender_id"`
	HistoryScope          string          `db:"history_scope"`
	WorkflowID            string          `db:"workflow_id"`
	WorkflowVersion       int             `db:"workflow_version"`
	CurrentNodeInstanceID string          `db:"current_node_instance_id"`
	IdentificationStep    string          `db:"identification_step"`
	Fields                json.RawMessage `db:"fields"`
	ErrorCount            int             `db:"error_count"`
	Status                string          `db:"status"`
	History               json.RawMessage `db:"history"`
	ExpiresAt             time.Time       `db:"expires_at"`
	CreatedAt             time.Time       `db:"created_at"`
	LastActivityAt        time.Time       `db:"last_activity_at"`
}

func toDBState(s engine.ConversationState) (*dbConversationState, error) {
	fields, err := json.Marshal(s.Fields)
	if err != nil {
		return nil, errx.Wrap(err, "failed to marshal state fields", errx.TypeInternal)
	}
	history, err := json.Marshal(s.History)
	if err != nil {
		return nil, errx.Wrap(err, "failed to marshal state history", errx.TypeInternal)
	}
	return &dbConversationState{
		ID:                    s.ID.String(),
		TenantID:              s.TenantID.String(),
		ChannelID:             s.ChannelID.String(),
		SenderID:              s.SenderID,
		HistoryScope:          s.HistoryScope,
		WorkflowID:            s.WorkflowID.String(),
		WorkflowVersion:       s.WorkflowVersion,
		CurrentNodeInstanceID: s.CurrentNodeInstanceID.String(),
		IdentificationStep:    s.IdentificationStep,
		Fields:                fields,
		ErrorCount:            s.ErrorCount,
		Status:                string(s.Status),
		History:               history,
		ExpiresAt:             s.ExpiresAt,
		CreatedAt:             s.CreatedAt,
		LastActivityAt:        s.LastActivityAt,
	}, nil
}

func toDomainState(db *dbConversationState) (*engine.ConversationState, error) {
	var fields map[string]any
	if len(db.Fields) > 0 {
		if err := json.Unmarshal(db.Fields, &fields); err != nil {
			logx.Error("Error unmarshaling state fields for %s: %v", db.ID, err)
			return nil, errx.Wrap(err, "failed to unmarshal state fields", errx.TypeInternal)
		}
	}
	var history []engine.MessageRef
	if len(db.History) > 0 {
		if err := json.Unmarshal(db.History, &history); err != nil {
			logx.Error("Error unmarshaling state history for %s: %v", db.ID, err)
			return nil, errx.Wrap(err, "failed to unmarshal state history", errx.TypeInternal)
		}
	}
	return &engine.ConversationState{
		ID:                    kernel.ConversationID(db.ID),
		TenantID:              kernel.TenantID(db.TenantID),
		ChannelID:             kernel.ChannelID(db.ChannelID),
		SenderID:              db.SenderID,
		HistoryScope:          db.HistoryScope,
		WorkflowID:            kernel.WorkflowID(db.WorkflowID),
		WorkflowVersion:       db.WorkflowVersion,
		CurrentNodeInstanceID: kernel.NodeInstanceID(db.CurrentNodeInstanceID),
		IdentificationStep:    db.IdentificationStep,
		Fields:                fields,
		ErrorCount:            db.ErrorCount,
		Status:                engine.ConversationStatus(db.Status),
		History:               history,
		ExpiresAt:             db.ExpiresAt,
		CreatedAt:             db.CreatedAt,
		LastActivityAt:        db.LastActivityAt,
	}, nil
}

// Save inserts or updates the full state snapshot
func (r *PostgresStateRepository) Save(ctx context.Context, state engine.ConversationState) error {
	dbS, err := toDBState(state)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO conversation_states (
			id, tenant_id, channel_id, sender_id, history_scope, workflow_id, workflow_version,
			current_node_instance_id, identification_step, fields, error_count, status, history,
			expires_at, created_at, last_activity_at
		) VALUES (
			:id, :tenant_id, :channel_id, :sender_id, :history_scope, :workflow_id, :workflow_version,
			:current_node_instance_id, :identification_step, :fields, :error_count, :status, :history,
			:expires_at, :created_at, :last_activity_at
		)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			workflow_version = EXCLUDED.workflow_version,
			current_node_instance_id = EXCLUDED.current_node_instance_id,
			identification_step = EXCLUDED.identification_step,
			fields = EXCLUDED.fields,
			error_count = EXCLUDED.error_count,
			status = EXCLUDED.status,
			history = EXCLUDED.history,
			expires_at = EXCLUDED.expires_at,
			last_activity_at = EXCLUDED.last_activity_at
	`

	_, err = r.db.NamedExecContext(ctx, query, dbS)
	if err != nil {
		return errx.Wrap(err, "failed to save conversation state", errx.TypeInternal).
			WithDetail("conversation_id", state.ID.String())
	}

	return nil
}

// FindByID restores the full state snapshot by conversation id
func (r *PostgresStateRepository) FindByID(ctx context.Context, id kernel.ConversationID) (*engine.ConversationState, error) {
	query := `
		SELECT id, tenant_id, channel_id, sender_id, history_scope, workflow_id, workflow_version,
		       current_node_instance_id, identification_step, fields, error_count, status, history,
		       expires_at, created_at, last_activity_at
		FROM conversation_states
		WHERE id = $1
	`

	var dbS dbConversationState
	err := r.db.GetContext(ctx, &dbS, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, engine.ErrConversationNotFound().
				WithDetail("conversation_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find conversation state", errx.TypeInternal)
	}

	return toDomainState(&dbS)
}

// FindByThread finds the most recent non-terminal state for a thread.
// El scope de historial separa conversaciones de bypass con historial
// aislado de la conversación principal del mismo remitente.
func (r *PostgresStateRepository) FindByThread(ctx context.Context, channelID kernel.ChannelID, senderID, historyScope string) (*engine.ConversationState, error) {
	query := `
		SELECT id, tenant_id, channel_id, sender_id, history_scope, workflow_id, workflow_version,
		       current_node_instance_id, identification_step, fields, error_count, status, history,
		       expires_at, created_at, last_activity_at
		FROM conversation_states
		WHERE channel_id = $1 AND sender_id = $2 AND history_scope = $3
		ORDER BY last_activity_at DESC
		LIMIT 1
	`

	var dbS dbConversationState
	err := r.db.GetContext(ctx, &dbS, query, channelID.String(), senderID, historyScope)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, engine.ErrConversationNotFound().
				WithDetail("channel_id", channelID.String()).
				WithDetail("sender_id", senderID)
		}
		return nil, errx.Wrap(err, "failed to find conversation by thread", errx.TypeInternal)
	}

	return toDomainState(&dbS)
}

// FindExpired lists active states whose expiration already passed
func (r *PostgresStateRepository) FindExpired(ctx context.Context, limit int) ([]*engine.ConversationState, error) {
	query := `
		SELECT id, tenant_id, channel_id, sender_id, history_scope, workflow_id, workflow_version,
		       current_node_instance_id, identification_step, fields, error_count, status, history,
		       expires_at, created_at, last_activity_at
		FROM conversation_states
		WHERE status = $1 AND expires_at < NOW()
		ORDER BY expires_at ASC
		LIMIT $2
	`

	var dbStates []dbConversationState
	err := r.db.SelectContext(ctx, &dbStates, query, string(engine.ConversationStatusActive), limit)
	if err != nil {
		return nil, errx.Wrap(err, "failed to find expired conversations", errx.TypeInternal)
	}

	states := make([]*engine.ConversationState, 0, len(dbStates))
	for i := range dbStates {
		s, err := toDomainState(&dbStates[i])
		if err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, nil
}

// MarkExpired marks a conversation as expired
func (r *PostgresStateRepository) MarkExpired(ctx context.Context, id kernel.ConversationID) error {
	query := `
		UPDATE conversation_states
		SET status = $1, last_activity_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, string(engine.ConversationStatusExpired), id.String())
	if err != nil {
		return errx.Wrap(err, "failed to mark conversation expired", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rows == 0 {
		return engine.ErrConversationNotFound().
			WithDetail("conversation_id", id.String())
	}

	return nil
}

// CountActive counts active conversations for a tenant
func (r *PostgresStateRepository) CountActive(ctx context.Context, tenantID kernel.TenantID) (int, error) {
	query := `SELECT COUNT(*) FROM conversation_states WHERE tenant_id = $1 AND status = $2`

	var count int
	err := r.db.GetContext(ctx, &count, query, tenantID.String(), string(engine.ConversationStatusActive))
	if err != nil {
		return 0, errx.Wrap(err, "failed to count active conversations", errx.TypeInternal)
	}

	return count, nil
}
