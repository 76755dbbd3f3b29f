package engineapi

import (
	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/engine/enginesrv"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/storex"
	"github.com/gofiber/fiber/v2"
)

// Handler expone el API administrativo: workflows, reglas de ruteo y
// reglas de bypass. Todas las rutas requieren token y operan sobre el
// tenant del contexto de autenticación.
type Handler struct {
	auth      *AuthService
	workflows *enginesrv.WorkflowService
	rules     *enginesrv.RuleService
}

func NewHandler(auth *AuthService, workflows *enginesrv.WorkflowService, rules *enginesrv.RuleService) *Handler {
	return &Handler{
		auth:      auth,
		workflows: workflows,
		rules:     rules,
	}
}

// ============================================================================
// Auth
// ============================================================================

type loginRequest struct {
	TenantID string `json:"tenant_id"`
	Subject  string `json:"subject"`
	Secret   string `json:"secret"`
}

// Login emite un token administrativo
// POST /api/auth/login
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrInvalidRequest().WithDetail("cause", err.Error())
	}
	if req.TenantID == "" || req.Subject == "" || req.Secret == "" {
		return ErrInvalidRequest().WithDetail("reason", "tenant_id, subject and secret are required")
	}

	token, err := h.auth.Login(kernel.TenantID(req.TenantID), req.Subject, req.Secret)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"token":      token,
		"token_type": "Bearer",
	})
}

// ============================================================================
// Workflows
// ============================================================================

// CreateWorkflow crea un borrador de workflow
// POST /api/workflows
func (h *Handler) CreateWorkflow(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)

	var req engine.CreateWorkflowRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrInvalidRequest().WithDetail("cause", err.Error())
	}
	req.TenantID = adminCtx.TenantID

	wf, err := h.workflows.Create(c.Context(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(wf)
}

// GetWorkflow obtiene un workflow por ID
// GET /api/workflows/:id
func (h *Handler) GetWorkflow(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)
	id := kernel.WorkflowID(c.Params("id"))

	wf, err := h.workflows.Get(c.Context(), id, adminCtx.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(wf)
}

// ListWorkflows lista workflows del tenant con paginación
// GET /api/workflows?page=1&page_size=20&is_active=true&search=cobranza
func (h *Handler) ListWorkflows(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)

	req := engine.WorkflowListRequest{
		PaginationOptions: paginationFromQuery(c),
		TenantID:          adminCtx.TenantID,
		Search:            c.Query("search"),
	}
	if raw := c.Query("is_active"); raw != "" {
		isActive := raw == "true"
		req.IsActive = &isActive
	}

	resp, err := h.workflows.List(c.Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// ListWorkflowVersions lista todas las versiones de un workflow key
// GET /api/workflows/key/:key/versions
func (h *Handler) ListWorkflowVersions(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)

	versions, err := h.workflows.Versions(c.Context(), c.Params("key"), adminCtx.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"versions": versions})
}

// UpdateWorkflow actualiza un workflow; cambios estructurales crean versión nueva
// PUT /api/workflows/:id
func (h *Handler) UpdateWorkflow(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)
	id := kernel.WorkflowID(c.Params("id"))

	var req engine.UpdateWorkflowRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrInvalidRequest().WithDetail("cause", err.Error())
	}

	wf, err := h.workflows.Update(c.Context(), id, adminCtx.TenantID, req)
	if err != nil {
		return err
	}
	return c.JSON(wf)
}

// PublishWorkflow valida y activa una versión de workflow. Si la validación
// falla responde 200 con el reporte, no un error HTTP.
// POST /api/workflows/:id/publish
func (h *Handler) PublishWorkflow(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)
	id := kernel.WorkflowID(c.Params("id"))

	resp, err := h.workflows.Publish(c.Context(), id, adminCtx.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// DeleteWorkflow elimina una versión no activa
// DELETE /api/workflows/:id
func (h *Handler) DeleteWorkflow(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)
	id := kernel.WorkflowID(c.Params("id"))

	if err := h.workflows.Delete(c.Context(), id, adminCtx.TenantID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// ============================================================================
// Routing Rules
// ============================================================================

// CreateRoutingRule crea una regla de ruteo
// POST /api/rules/routing
func (h *Handler) CreateRoutingRule(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)

	var req engine.CreateRoutingRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrInvalidRequest().WithDetail("cause", err.Error())
	}
	req.TenantID = adminCtx.TenantID

	rule, err := h.rules.CreateRoutingRule(c.Context(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rule)
}

// GetRoutingRule obtiene una regla de ruteo
// GET /api/rules/routing/:id
func (h *Handler) GetRoutingRule(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)
	id := kernel.RuleID(c.Params("id"))

	rule, err := h.rules.GetRoutingRule(c.Context(), id, adminCtx.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(rule)
}

// ListRoutingRules lista reglas de ruteo con paginación
// GET /api/rules/routing?page=1&page_size=20
func (h *Handler) ListRoutingRules(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)

	req := engine.RuleListRequest{
		PaginationOptions: paginationFromQuery(c),
		TenantID:          adminCtx.TenantID,
	}
	if raw := c.Query("is_active"); raw != "" {
		isActive := raw == "true"
		req.IsActive = &isActive
	}

	resp, err := h.rules.ListRoutingRules(c.Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// UpdateRoutingRule actualización parcial de una regla de ruteo
// PUT /api/rules/routing/:id
func (h *Handler) UpdateRoutingRule(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)
	id := kernel.RuleID(c.Params("id"))

	var req engine.UpdateRoutingRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrInvalidRequest().WithDetail("cause", err.Error())
	}

	rule, err := h.rules.UpdateRoutingRule(c.Context(), id, adminCtx.TenantID, req)
	if err != nil {
		return err
	}
	return c.JSON(rule)
}

// DeleteRoutingRule elimina una regla de ruteo
// DELETE /api/rules/routing/:id
func (h *Handler) DeleteRoutingRule(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)
	id := kernel.RuleID(c.Params("id"))

	if err := h.rules.DeleteRoutingRule(c.Context(), id, adminCtx.TenantID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// ============================================================================
// Bypass Rules
// ============================================================================

// CreateBypassRule crea una regla de bypass
// POST /api/rules/bypass
func (h *Handler) CreateBypassRule(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)

	var req engine.CreateBypassRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrInvalidRequest().WithDetail("cause", err.Error())
	}
	req.TenantID = adminCtx.TenantID

	rule, err := h.rules.CreateBypassRule(c.Context(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rule)
}

// GetBypassRule obtiene una regla de bypass
// GET /api/rules/bypass/:id
func (h *Handler) GetBypassRule(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)
	id := kernel.RuleID(c.Params("id"))

	rule, err := h.rules.GetBypassRule(c.Context(), id, adminCtx.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(rule)
}

// ListBypassRules lista las reglas de bypass activas del tenant
// GET /api/rules/bypass
func (h *Handler) ListBypassRules(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)

	rules, err := h.rules.ListBypassRules(c.Context(), adminCtx.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"rules": rules})
}

// UpdateBypassRule actualización parcial de una regla de bypass
// PUT /api/rules/bypass/:id
func (h *Handler) UpdateBypassRule(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)
	id := kernel.RuleID(c.Params("id"))

	var req engine.UpdateBypassRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrInvalidRequest().WithDetail("cause", err.Error())
	}

	rule, err := h.rules.UpdateBypassRule(c.Context(), id, adminCtx.TenantID, req)
	if err != nil {
		return err
	}
	return c.JSON(rule)
}

// DeleteBypassRule elimina una regla de bypass
// DELETE /api/rules/bypass/:id
func (h *Handler) DeleteBypassRule(c *fiber.Ctx) error {
	adminCtx := adminFromCtx(c)
	id := kernel.RuleID(c.Params("id"))

	if err := h.rules.DeleteBypassRule(c.Context(), id, adminCtx.TenantID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// ============================================================================
// Helpers
// ============================================================================

func paginationFromQuery(c *fiber.Ctx) storex.PaginationOptions {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := c.QueryInt("page_size", 20)
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return storex.PaginationOptions{
		Page:     page,
		PageSize: pageSize,
	}
}
