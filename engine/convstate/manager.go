package convstate

import (
	"context"
	"time"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/errx"
)

// ThreadKey identifica el hilo lógico de un sender en un canal. Es la
// clave de serialización de turnos: el lock se toma sobre ella, no sobre
// el ConversationID, que todavía no existe en el primer mensaje.
func ThreadKey(channelID kernel.ChannelID, senderID, historyScope string) string {
	return channelID.String() + "|" + senderID + "|" + historyScope
}

// Manager maneja el ciclo de vida del ConversationState: se crea con el
// primer mensaje del hilo, se extiende con cada turno y nunca se borra,
// solo se marca completo o expirado.
type Manager struct {
	repo           engine.ConversationStateRepository
	defaultTTL     time.Duration
	maxHistorySize int
}

// ManagerConfig configuración del manager
type ManagerConfig struct {
	DefaultTTL     time.Duration // default: 24 horas
	MaxHistorySize int           // default: 100 mensajes
}

// NewManager crea un manager de estado de conversación
func NewManager(repo engine.ConversationStateRepository, config *ManagerConfig) *Manager {
	if config == nil {
		config = &ManagerConfig{}
	}
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 24 * time.Hour
	}
	if config.MaxHistorySize == 0 {
		config.MaxHistorySize = 100
	}
	return &Manager{
		repo:           repo,
		defaultTTL:     config.DefaultTTL,
		maxHistorySize: config.MaxHistorySize,
	}
}

// GetOrCreate obtiene el estado del hilo (channel+sender+scope) o crea uno
// nuevo. Un estado expirado o terminado no se reutiliza: arranca un hilo
// nuevo con estado limpio.
func (m *Manager) GetOrCreate(
	ctx context.Context,
	tenantID kernel.TenantID,
	channelID kernel.ChannelID,
	senderID string,
	historyScope string,
) (*engine.ConversationState, error) {
	state, err := m.repo.FindByThread(ctx, channelID, senderID, historyScope)
	if err == nil {
		if state.IsExpired() || state.Status == engine.ConversationStatusComplete || state.Status == engine.ConversationStatusExpired {
			if state.IsExpired() && state.Status == engine.ConversationStatusActive {
				_ = m.repo.MarkExpired(ctx, state.ID)
			}
			return m.createNew(ctx, tenantID, channelID, senderID, historyScope)
		}

		state.UpdateActivity()
		if err := m.repo.Save(ctx, *state); err != nil {
			return nil, errx.Wrap(err, "failed to update conversation activity", errx.TypeInternal).
				WithDetail("conversation_id", state.ID.String())
		}
		return state, nil
	}

	if errx.IsType(err, errx.TypeNotFound) {
		return m.createNew(ctx, tenantID, channelID, senderID, historyScope)
	}

	return nil, errx.Wrap(err, "failed to find conversation state", errx.TypeInternal)
}

func (m *Manager) createNew(
	ctx context.Context,
	tenantID kernel.TenantID,
	channelID kernel.ChannelID,
	senderID string,
	historyScope string,
) (*engine.ConversationState, error) {
	now := time.Now()
	state := &engine.ConversationState{
		ID:             kernel.GenerateConversationID(),
		TenantID:       tenantID,
		ChannelID:      channelID,
		SenderID:       senderID,
		HistoryScope:   historyScope,
		Fields:         make(map[string]any),
		History:        []engine.MessageRef{},
		Status:         engine.ConversationStatusActive,
		ExpiresAt:      now.Add(m.defaultTTL),
		CreatedAt:      now,
		LastActivityAt: now,
	}

	if err := m.repo.Save(ctx, *state); err != nil {
		return nil, errx.Wrap(err, "failed to create conversation state", errx.TypeInternal).
			WithDetail("channel_id", channelID.String()).
			WithDetail("sender_id", senderID)
	}

	return state, nil
}

// Save persiste el snapshot completo del estado para poder restaurarlo tras
// un reinicio del proceso. Recorta el historial al tope configurado.
func (m *Manager) Save(ctx context.Context, state *engine.ConversationState) error {
	if !state.IsValid() {
		return errx.New("invalid conversation state", errx.TypeValidation).
			WithDetail("conversation_id", state.ID.String())
	}

	if len(state.History) > m.maxHistorySize {
		state.History = state.History[len(state.History)-m.maxHistorySize:]
	}
	state.ExtendExpiration(m.defaultTTL)

	if err := m.repo.Save(ctx, *state); err != nil {
		return errx.Wrap(err, "failed to save conversation state", errx.TypeInternal).
			WithDetail("conversation_id", state.ID.String())
	}
	return nil
}

// Get restaura un snapshot por id de conversación
func (m *Manager) Get(ctx context.Context, id kernel.ConversationID) (*engine.ConversationState, error) {
	state, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errx.Wrap(err, "failed to get conversation state", errx.TypeInternal).
			WithDetail("conversation_id", id.String())
	}
	return state, nil
}

// ExpireStale marca como expirados los estados vencidos. Lo invoca el
// cleaner periódico, nunca borra registros.
func (m *Manager) ExpireStale(ctx context.Context, batchSize int) (int, error) {
	stale, err := m.repo.FindExpired(ctx, batchSize)
	if err != nil {
		return 0, errx.Wrap(err, "failed to list expired conversations", errx.TypeInternal)
	}

	expired := 0
	for _, state := range stale {
		if err := m.repo.MarkExpired(ctx, state.ID); err != nil {
			return expired, errx.Wrap(err, "failed to mark conversation expired", errx.TypeInternal).
				WithDetail("conversation_id", state.ID.String())
		}
		expired++
	}
	return expired, nil
}
