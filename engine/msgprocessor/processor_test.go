package msgprocessor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/converso/channels"
	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/engine/bypass"
	"github.com/Abraxas-365/converso/engine/convstate"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Doubles
// ============================================================================

// safeStateRepo repositorio en memoria apto para llamadas concurrentes
type safeStateRepo struct {
	engine.ConversationStateRepository

	mu       sync.Mutex
	byID     map[kernel.ConversationID]engine.ConversationState
	byThread map[string]kernel.ConversationID
}

func newSafeStateRepo() *safeStateRepo {
	return &safeStateRepo{
		byID:     make(map[kernel.ConversationID]engine.ConversationState),
		byThread: make(map[string]kernel.ConversationID),
	}
}

func (r *safeStateRepo) Save(ctx context.Context, state engine.ConversationState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[state.ID] = state
	r.byThread[convstate.ThreadKey(state.ChannelID, state.SenderID, state.HistoryScope)] = state.ID
	return nil
}

func (r *safeStateRepo) FindByID(ctx context.Context, id kernel.ConversationID) (*engine.ConversationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.byID[id]
	if !ok {
		return nil, engine.ErrConversationNotFound()
	}
	return &state, nil
}

func (r *safeStateRepo) FindByThread(ctx context.Context, channelID kernel.ChannelID, senderID, historyScope string) (*engine.ConversationState, error) {
	r.mu.Lock()
	id, ok := r.byThread[convstate.ThreadKey(channelID, senderID, historyScope)]
	r.mu.Unlock()
	if !ok {
		return nil, engine.ErrConversationNotFound()
	}
	return r.FindByID(ctx, id)
}

func (r *safeStateRepo) conversations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// recordingExecutor registra qué conversación ejecuta cada turno y cuántos
// turnos corren a la vez
type recordingExecutor struct {
	mu          sync.Mutex
	convIDs     []kernel.ConversationID
	inFlight    int
	maxInFlight int
}

func (e *recordingExecutor) ExecuteTurn(ctx context.Context, wf *engine.WorkflowDefinition, state *engine.ConversationState, msg engine.Message, intent *engine.IntentResult, rules []*engine.RoutingRule) (*engine.TurnResult, error) {
	e.mu.Lock()
	e.inFlight++
	if e.inFlight > e.maxInFlight {
		e.maxInFlight = e.inFlight
	}
	e.convIDs = append(e.convIDs, state.ID)
	e.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	e.mu.Lock()
	e.inFlight--
	e.mu.Unlock()
	return &engine.TurnResult{Response: &engine.Response{Text: "ok"}, Status: engine.ConversationStatusActive}, nil
}

type stubMessageRepo struct {
	engine.MessageRepository
}

func (r *stubMessageRepo) Save(ctx context.Context, msg engine.Message) error { return nil }

type stubWorkflowRepo struct {
	engine.WorkflowRepository
	wf *engine.WorkflowDefinition
}

func (r *stubWorkflowRepo) FindActiveByKey(ctx context.Context, key string, tenantID kernel.TenantID) (*engine.WorkflowDefinition, error) {
	return r.wf, nil
}

type stubWorkflowCache struct {
	engine.WorkflowCache
}

func (c *stubWorkflowCache) Get(ctx context.Context, tenantID kernel.TenantID, key string) (*engine.WorkflowDefinition, error) {
	return nil, engine.ErrWorkflowNotFound()
}

func (c *stubWorkflowCache) Set(ctx context.Context, wf *engine.WorkflowDefinition) error {
	return nil
}

type stubRuleRepo struct {
	engine.RoutingRuleRepository
}

func (r *stubRuleRepo) FindActiveByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*engine.RoutingRule, error) {
	return nil, nil
}

type stubBypassRepo struct {
	engine.BypassRuleRepository
}

func (r *stubBypassRepo) FindActiveByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*engine.BypassRule, error) {
	return nil, nil
}

type sinkChannelManager struct{}

func (m *sinkChannelManager) Send(ctx context.Context, msg channels.OutgoingMessage) error {
	return nil
}

func newTestProcessor(stateRepo *safeStateRepo, exec *recordingExecutor) *Processor {
	wf := &engine.WorkflowDefinition{
		ID:       "wf-1",
		TenantID: "tenant-1",
		Key:      "main",
		Version:  1,
		Nodes: []engine.NodeInstance{{
			ID:                "greet",
			WorkflowID:        "wf-1",
			NodeDefinitionKey: "message",
			InstanceKey:       "greet",
			IsEntryPoint:      true,
		}},
	}
	return NewProcessor(
		Config{},
		&stubMessageRepo{},
		&stubWorkflowRepo{wf: wf},
		&stubWorkflowCache{},
		&stubRuleRepo{},
		convstate.NewManager(stateRepo, nil),
		bypass.NewRouter(&stubBypassRepo{}),
		exec,
		nil,
		convstate.NewLocalLocker(),
		&sinkChannelManager{},
	)
}

// ============================================================================
// Tests
// ============================================================================

func TestProcessConcurrentFirstMessagesShareConversation(t *testing.T) {
	stateRepo := newSafeStateRepo()
	exec := &recordingExecutor{}
	proc := newTestProcessor(stateRepo, exec)

	inbound := engine.InboundMessage{
		TenantID:  "tenant-1",
		ChannelID: "ch-1",
		SenderID:  "51999888777",
		Text:      "hola",
	}

	// cuatro primeros mensajes simultáneos del mismo sender: el lock por
	// hilo hace que solo el primero cree la conversación y el resto la reuse
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, proc.Process(context.Background(), inbound))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, stateRepo.conversations())
	assert.Equal(t, 1, exec.maxInFlight)

	require.Len(t, exec.convIDs, 4)
	for _, id := range exec.convIDs {
		assert.Equal(t, exec.convIDs[0], id)
	}
}

func TestProcessDistinctSendersGetDistinctConversations(t *testing.T) {
	stateRepo := newSafeStateRepo()
	exec := &recordingExecutor{}
	proc := newTestProcessor(stateRepo, exec)

	first := engine.InboundMessage{TenantID: "tenant-1", ChannelID: "ch-1", SenderID: "51999888777", Text: "hola"}
	second := engine.InboundMessage{TenantID: "tenant-1", ChannelID: "ch-1", SenderID: "51988777666", Text: "buenas"}

	require.NoError(t, proc.Process(context.Background(), first))
	require.NoError(t, proc.Process(context.Background(), second))

	assert.Equal(t, 2, stateRepo.conversations())
	require.Len(t, exec.convIDs, 2)
	assert.NotEqual(t, exec.convIDs[0], exec.convIDs[1])
}
