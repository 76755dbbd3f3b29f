package channels

import (
	"time"

	"github.com/Abraxas-365/converso/pkg/kernel"
)

// ============================================================================
// Channel Types
// ============================================================================

// ChannelType tipo de canal de mensajería
type ChannelType string

const (
	ChannelTypeWhatsApp ChannelType = "whatsapp"
	ChannelTypeWebchat  ChannelType = "webchat"
)

// Channel es un canal de entrada configurado por un tenant
type Channel struct {
	ID        kernel.ChannelID `db:"id" json:"id"`
	TenantID  kernel.TenantID  `db:"tenant_id" json:"tenant_id"`
	Name      string           `db:"name" json:"name"`
	Type      ChannelType      `db:"type" json:"type"`
	Config    ChannelConfig    `db:"config" json:"config"`
	IsActive  bool             `db:"is_active" json:"is_active"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// ChannelConfig configuración específica del proveedor
type ChannelConfig struct {
	// WhatsApp Business API
	PhoneNumberID string `json:"phone_number_id,omitempty"`
	AccessToken   string `json:"access_token,omitempty"`
	VerifyToken   string `json:"verify_token,omitempty"`
	APIVersion    string `json:"api_version,omitempty"`

	// Webchat
	WidgetKey string `json:"widget_key,omitempty"`
}

// IsValid valida que el canal tenga lo mínimo para operar
func (c *Channel) IsValid() bool {
	if c.ID.IsEmpty() || c.TenantID.IsEmpty() || c.Name == "" {
		return false
	}
	switch c.Type {
	case ChannelTypeWhatsApp:
		return c.Config.PhoneNumberID != "" && c.Config.AccessToken != ""
	case ChannelTypeWebchat:
		return c.Config.WidgetKey != ""
	}
	return false
}
