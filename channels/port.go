package channels

import (
	"context"

	"github.com/Abraxas-365/converso/pkg/kernel"
)

// ============================================================================
// Repository Interfaces
// ============================================================================

// ChannelRepository define el contrato para persistencia de canales
type ChannelRepository interface {
	Save(ctx context.Context, channel Channel) error
	FindByID(ctx context.Context, id kernel.ChannelID, tenantID kernel.TenantID) (*Channel, error)
	FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*Channel, error)
	FindActive(ctx context.Context, tenantID kernel.TenantID) ([]*Channel, error)
	Delete(ctx context.Context, id kernel.ChannelID, tenantID kernel.TenantID) error
}

// ============================================================================
// Adapter Interfaces
// ============================================================================

// ChannelAdapter interfaz para adaptadores de canal específicos
type ChannelAdapter interface {
	// GetType retorna el tipo de canal que maneja
	GetType() ChannelType

	// SendMessage envía un mensaje a través del canal
	SendMessage(ctx context.Context, channel Channel, msg OutgoingMessage) error

	// ProcessWebhook normaliza un webhook entrante del proveedor
	ProcessWebhook(ctx context.Context, channel Channel, payload []byte, headers map[string]string) (*IncomingMessage, error)

	// ValidateConfig valida la configuración del canal
	ValidateConfig(config ChannelConfig) error
}

// ChannelManager enruta mensajes salientes al adaptador correcto
type ChannelManager interface {
	Send(ctx context.Context, msg OutgoingMessage) error
}

// MediaStore almacena adjuntos de mensajes (audios, imágenes, documentos)
type MediaStore interface {
	Upload(ctx context.Context, tenantID kernel.TenantID, key string, contentType string, data []byte) (string, error)
	PresignedURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}
