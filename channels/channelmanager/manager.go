package channelmanager

import (
	"context"
	"log"
	"sync"

	"github.com/Abraxas-365/converso/channels"
	"github.com/Abraxas-365/craftable/errx"
)

// Manager resuelve el canal y despacha al adaptador registrado para su tipo
type Manager struct {
	repo     channels.ChannelRepository
	mu       sync.RWMutex
	adapters map[channels.ChannelType]channels.ChannelAdapter
}

var _ channels.ChannelManager = (*Manager)(nil)

func NewManager(repo channels.ChannelRepository) *Manager {
	return &Manager{
		repo:     repo,
		adapters: make(map[channels.ChannelType]channels.ChannelAdapter),
	}
}

// RegisterAdapter registra un adaptador para un tipo de canal
func (m *Manager) RegisterAdapter(adapter channels.ChannelAdapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapters[adapter.GetType()] = adapter
	log.Printf("✅ Registered channel adapter: %s", adapter.GetType())
}

// Send entrega un mensaje saliente por el canal indicado
func (m *Manager) Send(ctx context.Context, msg channels.OutgoingMessage) error {
	channel, err := m.repo.FindByID(ctx, msg.ChannelID, msg.TenantID)
	if err != nil {
		return errx.Wrap(err, "failed to resolve channel for send", errx.TypeInternal).
			WithDetail("channel_id", msg.ChannelID.String())
	}
	if !channel.IsActive {
		return channels.ErrChannelNotFound().
			WithDetail("channel_id", msg.ChannelID.String()).
			WithDetail("reason", "channel is inactive")
	}

	adapter, err := m.adapterFor(channel.Type)
	if err != nil {
		return err
	}

	if err := adapter.SendMessage(ctx, *channel, msg); err != nil {
		return channels.ErrSendFailed().
			WithDetail("channel_id", msg.ChannelID.String()).
			WithDetail("cause", err.Error())
	}
	return nil
}

// ProcessWebhook normaliza un webhook entrante usando el adaptador del canal
func (m *Manager) ProcessWebhook(ctx context.Context, channel channels.Channel, payload []byte, headers map[string]string) (*channels.IncomingMessage, error) {
	adapter, err := m.adapterFor(channel.Type)
	if err != nil {
		return nil, err
	}
	return adapter.ProcessWebhook(ctx, channel, payload, headers)
}

func (m *Manager) adapterFor(channelType channels.ChannelType) (channels.ChannelAdapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	adapter, ok := m.adapters[channelType]
	if !ok {
		return nil, channels.ErrAdapterNotFound().
			WithDetail("channel_type", string(channelType))
	}
	return adapter, nil
}
