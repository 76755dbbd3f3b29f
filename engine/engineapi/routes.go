package engineapi

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes registra el API administrativo. Todo excepto el login
// requiere token Bearer.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")

	api.Post("/auth/login", h.Login)

	protected := api.Group("", h.auth.Authenticate())

	workflows := protected.Group("/workflows")
	workflows.Post("/", h.CreateWorkflow)
	workflows.Get("/", h.ListWorkflows)
	workflows.Get("/key/:key/versions", h.ListWorkflowVersions)
	workflows.Get("/:id", h.GetWorkflow)
	workflows.Put("/:id", h.UpdateWorkflow)
	workflows.Post("/:id/publish", h.PublishWorkflow)
	workflows.Delete("/:id", h.DeleteWorkflow)

	routing := protected.Group("/rules/routing")
	routing.Post("/", h.CreateRoutingRule)
	routing.Get("/", h.ListRoutingRules)
	routing.Get("/:id", h.GetRoutingRule)
	routing.Put("/:id", h.UpdateRoutingRule)
	routing.Delete("/:id", h.DeleteRoutingRule)

	bypassRules := protected.Group("/rules/bypass")
	bypassRules.Post("/", h.CreateBypassRule)
	bypassRules.Get("/", h.ListBypassRules)
	bypassRules.Get("/:id", h.GetBypassRule)
	bypassRules.Put("/:id", h.UpdateBypassRule)
	bypassRules.Delete("/:id", h.DeleteBypassRule)
}
