package channelsinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Abraxas-365/converso/channels"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/errx"
	"github.com/jmoiron/sqlx"
)

type PostgresChannelRepository struct {
	db *sqlx.DB
}

var _ channels.ChannelRepository = (*PostgresChannelRepository)(nil)

func NewPostgresChannelRepository(db *sqlx.DB) *PostgresChannelRepository {
	return &PostgresChannelRepository{db: db}
}

// dbChannel is an intermediate struct for database operations
type dbChannel struct {
	ID        string          `db:"id"`
	TenantID  string          `db:"tenant_id"`
	Name      string          `db:"name"`
	Type      string          `db:"type"`
	Config    json.RawMessage `db:"config"`
	IsActive  bool            `db:"is_active"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func toDBChannel(c channels.Channel) (*dbChannel, error) {
	config, err := json.Marshal(c.Config)
	if err != nil {
		return nil, errx.Wrap(err, "failed to marshal channel config", errx.TypeInternal)
	}
	return &dbChannel{
		ID:        c.ID.String(),
		TenantID:  c.TenantID.String(),
		Name:      c.Name,
		Type:      string(c.Type),
		Config:    config,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}, nil
}

func toDomainChannel(db *dbChannel) (*channels.Channel, error) {
	var config channels.ChannelConfig
	if len(db.Config) > 0 {
		if err := json.Unmarshal(db.Config, &config); err != nil {
			return nil, errx.Wrap(err, "failed to unmarshal channel config", errx.TypeInternal)
		}
	}
	return &channels.Channel{
		ID:        kernel.ChannelID(db.ID),
		TenantID:  kernel.TenantID(db.TenantID),
		Name:      db.Name,
		Type:      channels.ChannelType(db.Type),
		Config:    config,
		IsActive:  db.IsActive,
		CreatedAt: db.CreatedAt,
		UpdatedAt: db.UpdatedAt,
	}, nil
}

// Save inserts or updates a channel
func (r *PostgresChannelRepository) Save(ctx context.Context, channel channels.Channel) error {
	dbC, err := toDBChannel(channel)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO channels (
			id, tenant_id, name, type, config, is_active, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :name, :type, :config, :is_active, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			config = EXCLUDED.config,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.NamedExecContext(ctx, query, dbC)
	if err != nil {
		return errx.Wrap(err, "failed to save channel", errx.TypeInternal).
			WithDetail("channel_id", channel.ID.String())
	}

	return nil
}

// FindByID finds a channel by ID and tenant
func (r *PostgresChannelRepository) FindByID(ctx context.Context, id kernel.ChannelID, tenantID kernel.TenantID) (*channels.Channel, error) {
	query := `
		SELECT id, tenant_id, name, type, config, is_active, created_at, updated_at
		FROM channels
		WHERE id = $1 AND tenant_id = $2
	`

	var dbC dbChannel
	err := r.db.GetContext(ctx, &dbC, query, id.String(), tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, channels.ErrChannelNotFound().
				WithDetail("channel_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find channel by id", errx.TypeInternal)
	}

	return toDomainChannel(&dbC)
}

// FindByTenant lists all channels for a tenant
func (r *PostgresChannelRepository) FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*channels.Channel, error) {
	query := `
		SELECT id, tenant_id, name, type, config, is_active, created_at, updated_at
		FROM channels
		WHERE tenant_id = $1
		ORDER BY name ASC
	`
	return r.selectChannels(ctx, query, tenantID.String())
}

// FindActive lists active channels for a tenant
func (r *PostgresChannelRepository) FindActive(ctx context.Context, tenantID kernel.TenantID) ([]*channels.Channel, error) {
	query := `
		SELECT id, tenant_id, name, type, config, is_active, created_at, updated_at
		FROM channels
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY name ASC
	`
	return r.selectChannels(ctx, query, tenantID.String())
}

// Delete deletes a channel
func (r *PostgresChannelRepository) Delete(ctx context.Context, id kernel.ChannelID, tenantID kernel.TenantID) error {
	query := `DELETE FROM channels WHERE id = $1 AND tenant_id = $2`

	result, err := r.db.ExecContext(ctx, query, id.String(), tenantID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete channel", errx.TypeInternal).
			WithDetail("channel_id", id.String())
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rows == 0 {
		return channels.ErrChannelNotFound().
			WithDetail("channel_id", id.String())
	}

	return nil
}

func (r *PostgresChannelRepository) selectChannels(ctx context.Context, query string, args ...interface{}) ([]*channels.Channel, error) {
	var dbChannels []dbChannel
	err := r.db.SelectContext(ctx, &dbChannels, query, args...)
	if err != nil {
		return nil, errx.Wrap(err, "failed to list channels", errx.TypeInternal)
	}

	result := make([]*channels.Channel, 0, len(dbChannels))
	for i := range dbChannels {
		c, err := toDomainChannel(&dbChannels[i])
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}
