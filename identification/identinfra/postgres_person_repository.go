package identinfra

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Abraxas-365/converso/identification"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/errx"
	"github.com/jmoiron/sqlx"
)

type PostgresPersonRepository struct {
	db *sqlx.DB
}

var _ identification.PersonRepository = (*PostgresPersonRepository)(nil)

func NewPostgresPersonRepository(db *sqlx.DB) *PostgresPersonRepository {
	return &PostgresPersonRepository{db: db}
}

// dbPerson is an intermediate struct for database operations
type dbPerson struct {
	ID         string         `db:"id"`
	TenantID   string         `db:"tenant_id"`
	ChannelID  string         `db:"channel_id"`
	SenderID   string         `db:"sender_id"`
	Identifier string         `db:"identifier"`
	FullName   string         `db:"full_name"`
	AccountID  sql.NullString `db:"account_id"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func toDBPerson(p *identification.Person) *dbPerson {
	return &dbPerson{
		ID:         p.ID.String(),
		TenantID:   p.TenantID.String(),
		ChannelID:  p.ChannelID.String(),
		SenderID:   p.SenderID,
		Identifier: p.Identifier,
		FullName:   p.FullName,
		AccountID:  sql.NullString{String: p.AccountID, Valid: p.AccountID != ""},
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func toDomainPerson(db *dbPerson) *identification.Person {
	return &identification.Person{
		ID:         kernel.PersonID(db.ID),
		TenantID:   kernel.TenantID(db.TenantID),
		ChannelID:  kernel.ChannelID(db.ChannelID),
		SenderID:   db.SenderID,
		Identifier: db.Identifier,
		FullName:   db.FullName,
		AccountID:  db.AccountID.String,
		CreatedAt:  db.CreatedAt,
		UpdatedAt:  db.UpdatedAt,
	}
}

// Save inserts a person registration. El índice único (channel_id,
// identifier) hace la registración exactamente-una-vez; la violación se
// traduce a conflicto para que el registrador reutilice el registro previo.
func (r *PostgresPersonRepository) Save(ctx context.Context, person *identification.Person) error {
	dbP := toDBPerson(person)

	query := `
		INSERT INTO persons (
			id, tenant_id, channel_id, sender_id, identifier, full_name, account_id, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :channel_id, :sender_id, :identifier, :full_name, :account_id, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			sender_id = EXCLUDED.sender_id,
			full_name = EXCLUDED.full_name,
			account_id = EXCLUDED.account_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.NamedExecContext(ctx, query, dbP)
	if err != nil {
		if isUniqueViolation(err) {
			return identification.NewPersonAlreadyRegisteredError(person.Identifier)
		}
		return errx.Wrap(err, "failed to save person", errx.TypeInternal).
			WithDetail("person_id", person.ID.String())
	}

	return nil
}

// FindByChannelAndSender finds the registration for a sender on a channel
func (r *PostgresPersonRepository) FindByChannelAndSender(ctx context.Context, channelID kernel.ChannelID, senderID string) (*identification.Person, error) {
	query := `
		SELECT id, tenant_id, channel_id, sender_id, identifier, full_name, account_id, created_at, updated_at
		FROM persons
		WHERE channel_id = $1 AND sender_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	var dbP dbPerson
	err := r.db.GetContext(ctx, &dbP, query, channelID.String(), senderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, identification.NewPersonNotFoundError(senderID)
		}
		return nil, errx.Wrap(err, "failed to find person by sender", errx.TypeInternal)
	}

	return toDomainPerson(&dbP), nil
}

// FindByChannelAndIdentifier finds the registration for an identifier on a channel
func (r *PostgresPersonRepository) FindByChannelAndIdentifier(ctx context.Context, channelID kernel.ChannelID, identifier string) (*identification.Person, error) {
	query := `
		SELECT id, tenant_id, channel_id, sender_id, identifier, full_name, account_id, created_at, updated_at
		FROM persons
		WHERE channel_id = $1 AND identifier = $2
	`

	var dbP dbPerson
	err := r.db.GetContext(ctx, &dbP, query, channelID.String(), identifier)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, identification.NewPersonNotFoundError(identifier)
		}
		return nil, errx.Wrap(err, "failed to find person by identifier", errx.TypeInternal)
	}

	return toDomainPerson(&dbP), nil
}

// FindByTenant lists all registrations for a tenant
func (r *PostgresPersonRepository) FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*identification.Person, error) {
	query := `
		SELECT id, tenant_id, channel_id, sender_id, identifier, full_name, account_id, created_at, updated_at
		FROM persons
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`

	var dbPersons []dbPerson
	err := r.db.SelectContext(ctx, &dbPersons, query, tenantID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find persons by tenant", errx.TypeInternal)
	}

	persons := make([]*identification.Person, len(dbPersons))
	for i := range dbPersons {
		persons[i] = toDomainPerson(&dbPersons[i])
	}
	return persons, nil
}

// Delete deletes a registration
func (r *PostgresPersonRepository) Delete(ctx context.Context, id kernel.PersonID) error {
	query := `DELETE FROM persons WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete person", errx.TypeInternal).
			WithDetail("person_id", id.String())
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rows == 0 {
		return identification.NewPersonNotFoundError(id.String())
	}

	return nil
}

// isUniqueViolation detecta violaciones del índice único de lib/pq
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value")
}
