package convstate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStateRepo repositorio en memoria indexado por hilo (channel+sender+scope)
type memStateRepo struct {
	byID     map[kernel.ConversationID]engine.ConversationState
	byThread map[string]kernel.ConversationID
	saves    int
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{
		byID:     make(map[kernel.ConversationID]engine.ConversationState),
		byThread: make(map[string]kernel.ConversationID),
	}
}

func threadKey(channelID kernel.ChannelID, senderID, historyScope string) string {
	return fmt.Sprintf("%s|%s|%s", channelID, senderID, historyScope)
}

func (r *memStateRepo) Save(ctx context.Context, state engine.ConversationState) error {
	r.saves++
	r.byID[state.ID] = state
	r.byThread[threadKey(state.ChannelID, state.SenderID, state.HistoryScope)] = state.ID
	return nil
}

func (r *memStateRepo) FindByID(ctx context.Context, id kernel.ConversationID) (*engine.ConversationState, error) {
	state, ok := r.byID[id]
	if !ok {
		return nil, engine.ErrConversationNotFound()
	}
	return &state, nil
}

func (r *memStateRepo) FindByThread(ctx context.Context, channelID kernel.ChannelID, senderID, historyScope string) (*engine.ConversationState, error) {
	id, ok := r.byThread[threadKey(channelID, senderID, historyScope)]
	if !ok {
		return nil, engine.ErrConversationNotFound()
	}
	return r.FindByID(ctx, id)
}

func (r *memStateRepo) FindExpired(ctx context.Context, limit int) ([]*engine.ConversationState, error) {
	var out []*engine.ConversationState
	for id := range r.byID {
		state := r.byID[id]
		if state.IsExpired() && state.Status == engine.ConversationStatusActive {
			out = append(out, &state)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memStateRepo) MarkExpired(ctx context.Context, id kernel.ConversationID) error {
	state, ok := r.byID[id]
	if !ok {
		return engine.ErrConversationNotFound()
	}
	state.MarkExpired()
	r.byID[id] = state
	return nil
}

func (r *memStateRepo) CountActive(ctx context.Context, tenantID kernel.TenantID) (int, error) {
	count := 0
	for _, state := range r.byID {
		if state.TenantID == tenantID && state.Status == engine.ConversationStatusActive {
			count++
		}
	}
	return count, nil
}

func TestManagerGetOrCreateNewThread(t *testing.T) {
	repo := newMemStateRepo()
	mgr := NewManager(repo, nil)

	state, err := mgr.GetOrCreate(context.Background(), "tenant-1", "ch-1", "51999888777", "")
	require.NoError(t, err)

	assert.False(t, state.ID.IsEmpty())
	assert.Equal(t, kernel.TenantID("tenant-1"), state.TenantID)
	assert.Equal(t, engine.ConversationStatusActive, state.Status)
	assert.NotNil(t, state.Fields)
	assert.True(t, state.ExpiresAt.After(time.Now()))
	// quedó persistido al crearse
	assert.Equal(t, 1, repo.saves)
}

func TestManagerGetOrCreateReusesActiveThread(t *testing.T) {
	repo := newMemStateRepo()
	mgr := NewManager(repo, nil)

	first, err := mgr.GetOrCreate(context.Background(), "tenant-1", "ch-1", "519", "")
	require.NoError(t, err)

	second, err := mgr.GetOrCreate(context.Background(), "tenant-1", "ch-1", "519", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestManagerHistoryScopeIsolatesThreads(t *testing.T) {
	repo := newMemStateRepo()
	mgr := NewManager(repo, nil)

	shared, err := mgr.GetOrCreate(context.Background(), "tenant-1", "ch-1", "519", "")
	require.NoError(t, err)
	isolated, err := mgr.GetOrCreate(context.Background(), "tenant-1", "ch-1", "519", "bypass:r1")
	require.NoError(t, err)

	// mismo remitente, scopes distintos: hilos independientes
	assert.NotEqual(t, shared.ID, isolated.ID)

	again, err := mgr.GetOrCreate(context.Background(), "tenant-1", "ch-1", "519", "bypass:r1")
	require.NoError(t, err)
	assert.Equal(t, isolated.ID, again.ID)
}

func TestManagerExpiredThreadStartsFresh(t *testing.T) {
	repo := newMemStateRepo()
	mgr := NewManager(repo, &ManagerConfig{DefaultTTL: time.Hour})

	old, err := mgr.GetOrCreate(context.Background(), "tenant-1", "ch-1", "519", "")
	require.NoError(t, err)
	old.SetField("customer_identified", true)
	old.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Save(context.Background(), *old))

	fresh, err := mgr.GetOrCreate(context.Background(), "tenant-1", "ch-1", "519", "")
	require.NoError(t, err)

	assert.NotEqual(t, old.ID, fresh.ID)
	_, identified := fresh.GetField("customer_identified")
	assert.False(t, identified)

	// el hilo viejo quedó marcado, no borrado
	stale, err := repo.FindByID(context.Background(), old.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.ConversationStatusExpired, stale.Status)
}

func TestManagerCompletedThreadStartsFresh(t *testing.T) {
	repo := newMemStateRepo()
	mgr := NewManager(repo, nil)

	done, err := mgr.GetOrCreate(context.Background(), "tenant-1", "ch-1", "519", "")
	require.NoError(t, err)
	done.MarkComplete()
	require.NoError(t, repo.Save(context.Background(), *done))

	next, err := mgr.GetOrCreate(context.Background(), "tenant-1", "ch-1", "519", "")
	require.NoError(t, err)
	assert.NotEqual(t, done.ID, next.ID)
	assert.Equal(t, engine.ConversationStatusActive, next.Status)
}

func TestManagerSaveTrimsHistoryAndExtendsTTL(t *testing.T) {
	repo := newMemStateRepo()
	mgr := NewManager(repo, &ManagerConfig{DefaultTTL: time.Hour, MaxHistorySize: 5})

	state, err := mgr.GetOrCreate(context.Background(), "tenant-1", "ch-1", "519", "")
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		state.AddMessage(kernel.MessageID(fmt.Sprintf("m-%d", i)), "user")
	}
	before := time.Now()

	require.NoError(t, mgr.Save(context.Background(), state))

	require.Len(t, state.History, 5)
	// sobreviven los más recientes
	assert.Equal(t, kernel.MessageID("m-7"), state.History[4].MessageID)
	assert.True(t, state.ExpiresAt.After(before.Add(59*time.Minute)))

	restored, err := mgr.Get(context.Background(), state.ID)
	require.NoError(t, err)
	assert.Len(t, restored.History, 5)
}

func TestManagerSaveRejectsInvalidState(t *testing.T) {
	mgr := NewManager(newMemStateRepo(), nil)
	err := mgr.Save(context.Background(), &engine.ConversationState{})
	require.Error(t, err)
}

func TestManagerExpireStale(t *testing.T) {
	repo := newMemStateRepo()
	mgr := NewManager(repo, nil)

	for i := 0; i < 3; i++ {
		state, err := mgr.GetOrCreate(context.Background(), "tenant-1", "ch-1", fmt.Sprintf("sender-%d", i), "")
		require.NoError(t, err)
		state.ExpiresAt = time.Now().Add(-time.Minute)
		require.NoError(t, repo.Save(context.Background(), *state))
	}
	live, err := mgr.GetOrCreate(context.Background(), "tenant-1", "ch-1", "vivo", "")
	require.NoError(t, err)

	expired, err := mgr.ExpireStale(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, expired)

	count, err := repo.CountActive(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	current, err := repo.FindByID(context.Background(), live.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.ConversationStatusActive, current.Status)
}
