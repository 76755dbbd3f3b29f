package identification

import (
	"context"

	"github.com/Abraxas-365/converso/pkg/kernel"
)

// ============================================================================
// Ports
// ============================================================================

// UpstreamDirectory resuelve identidades contra el sistema del cliente
// (CRM, core bancario, padrón). Lookup devuelve (nil, nil) cuando el
// identificador no existe; un error solo cuando el upstream falló.
type UpstreamDirectory interface {
	// LookupByIdentifier busca por documento o identificador nacional.
	LookupByIdentifier(ctx context.Context, tenantID kernel.TenantID, identifier string) (*Identity, error)

	// LookupByPhone busca por el número de teléfono del remitente. Permite
	// reconocer a un cliente en el primer mensaje sin pedirle nada.
	LookupByPhone(ctx context.Context, tenantID kernel.TenantID, phone string) (*Identity, error)
}

// PersonRepository persiste las registraciones locales de clientes.
type PersonRepository interface {
	Save(ctx context.Context, person *Person) error
	FindByChannelAndSender(ctx context.Context, channelID kernel.ChannelID, senderID string) (*Person, error)
	FindByChannelAndIdentifier(ctx context.Context, channelID kernel.ChannelID, identifier string) (*Person, error)
	FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*Person, error)
	Delete(ctx context.Context, id kernel.PersonID) error
}
