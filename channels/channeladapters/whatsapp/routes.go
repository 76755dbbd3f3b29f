package whatsapp

import (
	"github.com/gofiber/fiber/v2"
)

// WebhookRoutes registra las rutas de webhook de WhatsApp
type WebhookRoutes struct {
	handler               *WebhookHandler
	messageProcessHandler fiber.Handler // handler genérico de channelapi
}

func NewWebhookRoutes(handler *WebhookHandler, messageProcessHandler fiber.Handler) *WebhookRoutes {
	return &WebhookRoutes{
		handler:               handler,
		messageProcessHandler: messageProcessHandler,
	}
}

func (wr *WebhookRoutes) RegisterRoutes(app *fiber.App) {
	webhooks := app.Group("/webhooks/whatsapp")

	webhooks.Get("/:tenantId/:channelId", wr.handler.VerifyWebhook)

	// POST encadena: parseo específico de WhatsApp → procesamiento genérico
	webhooks.Post("/:tenantId/:channelId",
		wr.handler.ReceiveWebhook,
		wr.messageProcessHandler,
	)
}
