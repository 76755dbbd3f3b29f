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

type PostgresMessageRepository struct {
	db *sqlx.DB
}

var _ engine.MessageRepository = (*PostgresMessageRepository)(nil)

func NewPostgresMessageRepository(db *sqlx.DB) *PostgresMessageRepository {
	return &PostgresMessageRepository{db: db}
}

// dbMessage is an intermediate struct for database operations
type dbMessage struct {
	ID             string          `db:"id"`
	TenantID       string          `db:"tenant_id"`
	ChannelID      string          `db:"channel_id"`
	ConversationID string          `db:"conversation_id"`
	SenderID       string          `db:"sender_id"`
	Content        json.RawMessage `db:"content"`
	Status         string          `db:"status"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func toDBMessage(msg engine.Message) (*dbMessage, error) {
	content, err := json.Marshal(msg.Content)
	if err != nil {
		return nil, errx.Wrap(err, "failed to marshal message content", errx.TypeInternal)
	}
	return &dbMessage{
		ID:             msg.ID.String(),
		TenantID:       msg.TenantID.String(),
		ChannelID:      msg.ChannelID.String(),
		ConversationID: msg.ConversationID.String(),
		SenderID:       msg.SenderID,
		Content:        content,
		Status:         string(msg.Status),
		CreatedAt:      msg.CreatedAt,
		UpdatedAt:      msg.UpdatedAt,
	}, nil
}

func toDomainMessage(db *dbMessage) (*engine.Message, error) {
	var content engine.MessageContent
	if len(db.Content) > 0 {
		if err := json.Unmarshal(db.Content, &content); err != nil {
			return nil, errx.Wrap(err, "failed to unmarshal message content", errx.TypeInternal)
		}
	}
	return &engine.Message{
		ID:             kernel.MessageID(db.ID),
		TenantID:       kernel.TenantID(db.TenantID),
		ChannelID:      kernel.ChannelID(db.ChannelID),
		ConversationID: kernel.ConversationID(db.ConversationID),
		SenderID:       db.SenderID,
		Content:        content,
		Status:         engine.MessageStatus(db.Status),
		CreatedAt:      db.CreatedAt,
		UpdatedAt:      db.UpdatedAt,
	}, nil
}

// Save inserts or updates a message
func (r *PostgresMessageRepository) Save(ctx context.Context, msg engine.Message) error {
	dbM, err := toDBMessage(msg)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO messages (
			id, tenant_id, channel_id, conversation_id, sender_id, content, status, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :channel_id, :conversation_id, :sender_id, :content, :status, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.NamedExecContext(ctx, query, dbM)
	if err != nil {
		return errx.Wrap(err, "failed to save message", errx.TypeInternal).
			WithDetail("message_id", msg.ID.String())
	}

	return nil
}

// FindByID finds a message by ID
func (r *PostgresMessageRepository) FindByID(ctx context.Context, id kernel.MessageID) (*engine.Message, error) {
	query := `
		SELECT id, tenant_id, channel_id, conversation_id, sender_id, content, status, created_at, updated_at
		FROM messages
		WHERE id = $1
	`

	var dbM dbMessage
	err := r.db.GetContext(ctx, &dbM, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errx.New("message not found", errx.TypeNotFound).
				WithDetail("message_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find message by id", errx.TypeInternal)
	}

	return toDomainMessage(&dbM)
}

// FindByConversation lists messages of a conversation in chronological order
func (r *PostgresMessageRepository) FindByConversation(ctx context.Context, conversationID kernel.ConversationID) ([]*engine.Message, error) {
	query := `
		SELECT id, tenant_id, channel_id, conversation_id, sender_id, content, status, created_at, updated_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`

	var dbMsgs []dbMessage
	err := r.db.SelectContext(ctx, &dbMsgs, query, conversationID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find messages by conversation", errx.TypeInternal)
	}

	msgs := make([]*engine.Message, 0, len(dbMsgs))
	for i := range dbMsgs {
		msg, err := toDomainMessage(&dbMsgs[i])
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// List lists messages with filters and pagination
func (r *PostgresMessageRepository) List(ctx context.Context, req engine.MessageListRequest) (engine.MessageListResponse, error) {
	conditions := []string{"tenant_id = $1"}
	args := []interface{}{req.TenantID.String()}
	argPos := 2

	if req.ConversationID != nil {
		conditions = append(conditions, fmt.Sprintf("conversation_id = $%d", argPos))
		args = append(args, req.ConversationID.String())
		argPos++
	}

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*req.Status))
		argPos++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM messages %s", whereClause)
	var total int
	err := r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		return engine.MessageListResponse{}, errx.Wrap(err, "failed to count messages", errx.TypeInternal)
	}

	query := fmt.Sprintf(`
		SELECT id, tenant_id, channel_id, conversation_id, sender_id, content, status, created_at, updated_at
		FROM messages
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)

	args = append(args, req.PageSize, req.GetOffset())

	var dbMsgs []dbMessage
	err = r.db.SelectContext(ctx, &dbMsgs, query, args...)
	if err != nil {
		return engine.MessageListResponse{}, errx.Wrap(err, "failed to list messages", errx.TypeInternal)
	}

	msgs := make([]engine.Message, 0, len(dbMsgs))
	for i := range dbMsgs {
		msg, err := toDomainMessage(&dbMsgs[i])
		if err != nil {
			return engine.MessageListResponse{}, err
		}
		msgs = append(msgs, *msg)
	}

	return storex.NewPaginated(msgs, req.Page, req.PageSize, total), nil
}
