package identification

import (
	"context"
	"log"

	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/errx"
)

// Registrar persiste la registración local de un cliente identificado.
// La registración es exactamente-una-vez por (canal, identificador): si el
// flujo se re-ejecuta para el mismo cliente, se reutiliza el registro previo.
type Registrar struct {
	persons PersonRepository
}

func NewRegistrar(persons PersonRepository) *Registrar {
	return &Registrar{persons: persons}
}

// RegisterIfAbsent busca una registración existente y solo crea una nueva si
// no hay. Devuelve la persona efectiva y si fue creada en esta llamada.
func (r *Registrar) RegisterIfAbsent(ctx context.Context, tenantID kernel.TenantID, channelID kernel.ChannelID, senderID string, identity *Identity, accountID string) (*Person, bool, error) {
	existing, err := r.persons.FindByChannelAndIdentifier(ctx, channelID, identity.Identifier)
	if err != nil && !errx.IsType(err, errx.TypeNotFound) {
		return nil, false, errx.Wrap(err, "failed to check existing registration", errx.TypeInternal)
	}
	if existing != nil {
		return existing, false, nil
	}

	person := NewPerson(tenantID, channelID, senderID, identity, accountID)
	if err := r.persons.Save(ctx, person); err != nil {
		// Carrera entre dos turnos del mismo cliente: el índice único gana y
		// el registro previo es el válido.
		if errx.IsType(err, errx.TypeConflict) {
			if existing, findErr := r.persons.FindByChannelAndIdentifier(ctx, channelID, identity.Identifier); findErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, errx.Wrap(err, "failed to register person", errx.TypeInternal)
	}

	log.Printf("✅ Registered person %s for channel %s", person.ID, channelID)
	return person, true, nil
}
