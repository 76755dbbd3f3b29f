package enginesrv

import (
	"context"
	"log"
	"time"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/errx"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// WorkflowService administra el ciclo de vida de los workflows: creación en
// borrador, edición, publicación validada y versionado.
type WorkflowService struct {
	repo    engine.WorkflowRepository
	cache   engine.WorkflowCache
	catalog engine.Catalog
}

func NewWorkflowService(repo engine.WorkflowRepository, cache engine.WorkflowCache, catalog engine.Catalog) *WorkflowService {
	return &WorkflowService{repo: repo, cache: cache, catalog: catalog}
}

// Create crea un workflow nuevo en borrador, versión 1
func (s *WorkflowService) Create(ctx context.Context, req engine.CreateWorkflowRequest) (*engine.WorkflowDefinition, error) {
	if err := validate.Struct(req); err != nil {
		return nil, errx.Wrap(err, "invalid create workflow request", errx.TypeValidation)
	}

	exists, err := s.repo.ExistsByKey(ctx, req.Key, req.TenantID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, engine.ErrWorkflowAlreadyExists().
			WithDetail("key", req.Key)
	}

	now := time.Now()
	wf := engine.WorkflowDefinition{
		ID:          kernel.GenerateWorkflowID(),
		TenantID:    req.TenantID,
		Key:         req.Key,
		Version:     1,
		Name:        req.Name,
		Description: req.Description,
		IsDraft:     true,
		IsActive:    false,
		Nodes:       req.Nodes,
		Transitions: req.Transitions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.assignNodeIdentity(&wf)

	if err := s.validateNodeConfigs(&wf); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, wf); err != nil {
		return nil, err
	}

	log.Printf("✅ Created workflow %s (key=%s) for tenant %s", wf.ID, wf.Key, wf.TenantID)
	return &wf, nil
}

// Update aplica cambios sobre un borrador. Ediciones estructurales (nodos o
// transiciones) suben la versión; el workflow queda en borrador hasta volver
// a publicar.
func (s *WorkflowService) Update(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID, req engine.UpdateWorkflowRequest) (*engine.WorkflowDefinition, error) {
	wf, err := s.findOwned(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	structural := false
	if req.Name != nil {
		wf.Name = *req.Name
	}
	if req.Description != nil {
		wf.Description = *req.Description
	}
	if req.Nodes != nil {
		wf.Nodes = *req.Nodes
		structural = true
	}
	if req.Transitions != nil {
		wf.Transitions = *req.Transitions
		structural = true
	}

	if structural {
		wf.BumpVersion()
		s.assignNodeIdentity(wf)
		if err := s.validateNodeConfigs(wf); err != nil {
			return nil, err
		}
	} else {
		wf.UpdatedAt = time.Now()
	}

	if err := s.repo.Save(ctx, *wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// Publish valida el grafo completo y activa la versión. Errores de
// validación rechazan la publicación; los warnings van en el reporte pero
// no la bloquean.
func (s *WorkflowService) Publish(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) (*engine.PublishWorkflowResponse, error) {
	wf, err := s.findOwned(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	report := engine.ValidateForPublish(wf)
	if report.HasErrors() {
		log.Printf("❌ Publish rejected for workflow %s: %d errors", wf.ID, len(report.Errors))
		return &engine.PublishWorkflowResponse{
			WorkflowID: wf.ID,
			Published:  false,
			Report:     *report,
		}, nil
	}

	if err := s.repo.Activate(ctx, wf.ID, tenantID); err != nil {
		return nil, err
	}

	// Conversaciones en curso siguen el cache hasta que expire; las nuevas
	// toman la versión publicada de inmediato
	if err := s.cache.Invalidate(ctx, tenantID, wf.Key); err != nil {
		log.Printf("⚠️ Failed to invalidate workflow cache for %s: %v", wf.Key, err)
	}

	log.Printf("🚀 Published workflow %s (key=%s, version=%d)", wf.ID, wf.Key, wf.Version)
	return &engine.PublishWorkflowResponse{
		WorkflowID: wf.ID,
		Published:  true,
		Report:     *report,
	}, nil
}

// Get retorna un workflow del tenant
func (s *WorkflowService) Get(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) (*engine.WorkflowDefinition, error) {
	return s.findOwned(ctx, id, tenantID)
}

// List lista workflows con filtros y paginación
func (s *WorkflowService) List(ctx context.Context, req engine.WorkflowListRequest) (engine.WorkflowListResponse, error) {
	if err := validate.Struct(req); err != nil {
		return engine.WorkflowListResponse{}, errx.Wrap(err, "invalid list request", errx.TypeValidation)
	}
	return s.repo.List(ctx, req)
}

// Versions lista todas las versiones de una key
func (s *WorkflowService) Versions(ctx context.Context, key string, tenantID kernel.TenantID) ([]*engine.WorkflowDefinition, error) {
	return s.repo.FindVersions(ctx, key, tenantID)
}

// Delete borra una versión. La versión activa no se puede borrar.
func (s *WorkflowService) Delete(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) error {
	wf, err := s.findOwned(ctx, id, tenantID)
	if err != nil {
		return err
	}
	if wf.IsActive {
		return engine.ErrWorkflowInactive().
			WithDetail("reason", "cannot delete the active version, publish another first").
			WithDetail("workflow_id", id.String())
	}
	return s.repo.Delete(ctx, id, tenantID)
}

func (s *WorkflowService) findOwned(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) (*engine.WorkflowDefinition, error) {
	wf, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if wf.TenantID != tenantID {
		return nil, engine.ErrWorkflowNotFound().
			WithDetail("workflow_id", id.String())
	}
	return wf, nil
}

// assignNodeIdentity completa ids generados y el workflow id en nodos y
// transiciones que vienen sin ellos desde el API
func (s *WorkflowService) assignNodeIdentity(wf *engine.WorkflowDefinition) {
	for i := range wf.Nodes {
		if wf.Nodes[i].ID.IsEmpty() {
			wf.Nodes[i].ID = kernel.GenerateNodeInstanceID()
		}
		wf.Nodes[i].WorkflowID = wf.ID
	}
	for i := range wf.Transitions {
		if wf.Transitions[i].ID.IsEmpty() {
			wf.Transitions[i].ID = kernel.GenerateTransitionID()
		}
		wf.Transitions[i].WorkflowID = wf.ID
	}
}

// validateNodeConfigs valida la config de cada nodo contra su behavior del
// catálogo. Nodos de tipos desconocidos se rechazan acá, no en runtime.
func (s *WorkflowService) validateNodeConfigs(wf *engine.WorkflowDefinition) error {
	for _, node := range wf.Nodes {
		behavior, err := s.catalog.Resolve(node.NodeDefinitionKey)
		if err != nil {
			return engine.ErrBehaviorNotFound().
				WithDetail("node_definition_key", node.NodeDefinitionKey).
				WithDetail("instance_key", node.InstanceKey)
		}
		merged := engine.MergeNodeConfig(behavior.Definition().DefaultConfig, node.Config)
		if err := behavior.ValidateConfig(merged); err != nil {
			return errx.Wrap(err, "invalid node configuration", errx.TypeValidation).
				WithDetail("instance_key", node.InstanceKey)
		}
	}
	return nil
}
