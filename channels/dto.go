package channels

import (
	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/pkg/kernel"
)

// OutgoingMessage mensaje saliente listo para un adaptador
type OutgoingMessage struct {
	ChannelID   kernel.ChannelID `json:"channel_id"`
	TenantID    kernel.TenantID  `json:"tenant_id"`
	RecipientID string           `json:"recipient_id"`
	Response    engine.Response  `json:"response"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

// IncomingMessage mensaje crudo normalizado desde un webhook de proveedor
type IncomingMessage struct {
	ChannelID       kernel.ChannelID `json:"channel_id"`
	ChannelNumberID string           `json:"channel_number_id,omitempty"`
	SenderID        string           `json:"sender_id"`
	Text            string           `json:"text"`
	ButtonID        string           `json:"button_id,omitempty"`
	ListItemID      string           `json:"list_item_id,omitempty"`
	Attachments     []string         `json:"attachments,omitempty"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}
