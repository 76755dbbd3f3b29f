package enginesrv

import (
	"context"
	"errors"
	"testing"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/ptrx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Doubles
// ============================================================================

type memWorkflowRepo struct {
	workflows map[kernel.WorkflowID]engine.WorkflowDefinition
	activated []kernel.WorkflowID
}

func newMemWorkflowRepo() *memWorkflowRepo {
	return &memWorkflowRepo{workflows: make(map[kernel.WorkflowID]engine.WorkflowDefinition)}
}

func (r *memWorkflowRepo) Save(ctx context.Context, wf engine.WorkflowDefinition) error {
	r.workflows[wf.ID] = wf
	return nil
}

func (r *memWorkflowRepo) FindByID(ctx context.Context, id kernel.WorkflowID) (*engine.WorkflowDefinition, error) {
	wf, ok := r.workflows[id]
	if !ok {
		return nil, engine.ErrWorkflowNotFound()
	}
	return &wf, nil
}

func (r *memWorkflowRepo) Delete(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) error {
	delete(r.workflows, id)
	return nil
}

func (r *memWorkflowRepo) ExistsByKey(ctx context.Context, key string, tenantID kernel.TenantID) (bool, error) {
	for _, wf := range r.workflows {
		if wf.Key == key && wf.TenantID == tenantID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memWorkflowRepo) FindActiveByKey(ctx context.Context, key string, tenantID kernel.TenantID) (*engine.WorkflowDefinition, error) {
	for _, wf := range r.workflows {
		if wf.Key == key && wf.TenantID == tenantID && wf.IsActive {
			found := wf
			return &found, nil
		}
	}
	return nil, engine.ErrWorkflowNotFound()
}

func (r *memWorkflowRepo) FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*engine.WorkflowDefinition, error) {
	return nil, nil
}

func (r *memWorkflowRepo) FindVersions(ctx context.Context, key string, tenantID kernel.TenantID) ([]*engine.WorkflowDefinition, error) {
	var out []*engine.WorkflowDefinition
	for id := range r.workflows {
		wf := r.workflows[id]
		if wf.Key == key && wf.TenantID == tenantID {
			out = append(out, &wf)
		}
	}
	return out, nil
}

func (r *memWorkflowRepo) List(ctx context.Context, req engine.WorkflowListRequest) (engine.WorkflowListResponse, error) {
	return engine.WorkflowListResponse{}, nil
}

func (r *memWorkflowRepo) Activate(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) error {
	wf, ok := r.workflows[id]
	if !ok {
		return engine.ErrWorkflowNotFound()
	}
	for otherID, other := range r.workflows {
		if other.Key == wf.Key && other.TenantID == wf.TenantID && otherID != id {
			other.Deactivate()
			r.workflows[otherID] = other
		}
	}
	wf.Publish()
	r.workflows[id] = wf
	r.activated = append(r.activated, id)
	return nil
}

type memWorkflowCache struct {
	invalidated []string
}

func (c *memWorkflowCache) Get(ctx context.Context, tenantID kernel.TenantID, key string) (*engine.WorkflowDefinition, error) {
	return nil, engine.ErrWorkflowNotFound()
}

func (c *memWorkflowCache) Set(ctx context.Context, wf *engine.WorkflowDefinition) error { return nil }

func (c *memWorkflowCache) Invalidate(ctx context.Context, tenantID kernel.TenantID, key string) error {
	c.invalidated = append(c.invalidated, key)
	return nil
}

type staticBehavior struct {
	key       string
	configErr error
}

func (b *staticBehavior) Definition() engine.NodeDefinition {
	return engine.NodeDefinition{Key: b.key, BehaviorRef: b.key}
}

func (b *staticBehavior) Execute(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
	return &engine.ExecOutput{}, nil
}

func (b *staticBehavior) ValidateConfig(config map[string]any) error { return b.configErr }

type staticCatalog struct {
	behaviors map[string]engine.NodeBehavior
}

func (c *staticCatalog) Register(b engine.NodeBehavior) {
	c.behaviors[b.Definition().Key] = b
}

func (c *staticCatalog) Resolve(key string) (engine.NodeBehavior, error) {
	b, ok := c.behaviors[key]
	if !ok {
		return nil, errors.New("unknown node type " + key)
	}
	return b, nil
}

func (c *staticCatalog) Definitions() []engine.NodeDefinition { return nil }

func newStaticCatalog(keys ...string) *staticCatalog {
	c := &staticCatalog{behaviors: make(map[string]engine.NodeBehavior)}
	for _, k := range keys {
		c.Register(&staticBehavior{key: k})
	}
	return c
}

// ============================================================================
// Helpers
// ============================================================================

func newService(catalog engine.Catalog) (*WorkflowService, *memWorkflowRepo, *memWorkflowCache) {
	repo := newMemWorkflowRepo()
	cache := &memWorkflowCache{}
	return NewWorkflowService(repo, cache, catalog), repo, cache
}

func validCreateRequest() engine.CreateWorkflowRequest {
	entry := engine.NodeInstance{
		NodeDefinitionKey: "message",
		InstanceKey:       "greet",
		IsEntryPoint:      true,
	}
	return engine.CreateWorkflowRequest{
		TenantID: "tenant-1",
		Key:      "atencion",
		Name:     "Atención al cliente",
		Nodes:    []engine.NodeInstance{entry},
	}
}

// ============================================================================
// Tests
// ============================================================================

func TestWorkflowServiceCreateDraft(t *testing.T) {
	svc, _, _ := newService(newStaticCatalog("message"))

	wf, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.False(t, wf.ID.IsEmpty())
	assert.Equal(t, 1, wf.Version)
	assert.True(t, wf.IsDraft)
	assert.False(t, wf.IsActive)
	// ids generados y workflow id propagado a los nodos
	assert.False(t, wf.Nodes[0].ID.IsEmpty())
	assert.Equal(t, wf.ID, wf.Nodes[0].WorkflowID)
}

func TestWorkflowServiceCreateDuplicateKey(t *testing.T) {
	svc, _, _ := newService(newStaticCatalog("message"))

	_, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), validCreateRequest())
	require.Error(t, err)
}

func TestWorkflowServiceCreateInvalidRequest(t *testing.T) {
	svc, _, _ := newService(newStaticCatalog("message"))

	req := validCreateRequest()
	req.Name = ""
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)

	req = validCreateRequest()
	req.Nodes = nil
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
}

func TestWorkflowServiceCreateUnknownNodeType(t *testing.T) {
	svc, _, _ := newService(newStaticCatalog("message"))

	req := validCreateRequest()
	req.Nodes[0].NodeDefinitionKey = "inexistente"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
}

func TestWorkflowServiceCreateRejectsBadNodeConfig(t *testing.T) {
	catalog := newStaticCatalog()
	catalog.Register(&staticBehavior{key: "message", configErr: errors.New("text is required")})
	svc, _, _ := newService(catalog)

	_, err := svc.Create(context.Background(), validCreateRequest())
	require.Error(t, err)
}

func TestWorkflowServiceUpdateStructuralBumpsVersion(t *testing.T) {
	svc, _, _ := newService(newStaticCatalog("message"))
	wf, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	nodes := append(wf.Nodes, engine.NodeInstance{
		NodeDefinitionKey: "message",
		InstanceKey:       "bye",
	})
	updated, err := svc.Update(context.Background(), wf.ID, wf.TenantID, engine.UpdateWorkflowRequest{Nodes: &nodes})
	require.NoError(t, err)

	assert.Equal(t, 2, updated.Version)
	assert.True(t, updated.IsDraft)
	assert.False(t, updated.Nodes[1].ID.IsEmpty())
}

func TestWorkflowServiceUpdateMetadataKeepsVersion(t *testing.T) {
	svc, _, _ := newService(newStaticCatalog("message"))
	wf, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), wf.ID, wf.TenantID, engine.UpdateWorkflowRequest{Name: ptrx.String("Atención v2")})
	require.NoError(t, err)

	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, "Atención v2", updated.Name)
}

func TestWorkflowServicePublishValid(t *testing.T) {
	svc, repo, cache := newService(newStaticCatalog("message"))
	wf, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	resp, err := svc.Publish(context.Background(), wf.ID, wf.TenantID)
	require.NoError(t, err)

	assert.True(t, resp.Published)
	assert.Empty(t, resp.Report.Errors)
	assert.Contains(t, repo.activated, wf.ID)
	// las conversaciones nuevas deben ver la versión publicada
	assert.Contains(t, cache.invalidated, wf.Key)
}

func TestWorkflowServicePublishRejectedWithReport(t *testing.T) {
	svc, repo, _ := newService(newStaticCatalog("message"))

	req := validCreateRequest()
	req.Nodes[0].IsEntryPoint = false
	wf, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	resp, err := svc.Publish(context.Background(), wf.ID, wf.TenantID)
	require.NoError(t, err)

	// el rechazo no es un error de transporte: viaja en el reporte
	assert.False(t, resp.Published)
	assert.NotEmpty(t, resp.Report.Errors)
	assert.Empty(t, repo.activated)
}

func TestWorkflowServiceDeleteActiveRefused(t *testing.T) {
	svc, _, _ := newService(newStaticCatalog("message"))
	wf, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = svc.Publish(context.Background(), wf.ID, wf.TenantID)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), wf.ID, wf.TenantID)
	require.Error(t, err)
}

func TestWorkflowServiceDeleteDraft(t *testing.T) {
	svc, repo, _ := newService(newStaticCatalog("message"))
	wf, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), wf.ID, wf.TenantID))
	_, err = repo.FindByID(context.Background(), wf.ID)
	require.Error(t, err)
}

func TestWorkflowServiceTenantIsolation(t *testing.T) {
	svc, _, _ := newService(newStaticCatalog("message"))
	wf, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), wf.ID, "otro-tenant")
	require.Error(t, err)

	err = svc.Delete(context.Background(), wf.ID, "otro-tenant")
	require.Error(t, err)
}
