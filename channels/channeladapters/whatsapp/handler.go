package whatsapp

import (
	"log"
	"net/http"

	"github.com/Abraxas-365/converso/channels"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// WebhookHandler maneja la verificación y recepción de webhooks de WhatsApp
type WebhookHandler struct {
	channelRepo channels.ChannelRepository
	adapter     *Adapter
}

func NewWebhookHandler(channelRepo channels.ChannelRepository, adapter *Adapter) *WebhookHandler {
	return &WebhookHandler{
		channelRepo: channelRepo,
		adapter:     adapter,
	}
}

// VerifyWebhook responde el challenge de verificación de Meta
// GET /webhooks/whatsapp/:tenantId/:channelId
func (h *WebhookHandler) VerifyWebhook(c *fiber.Ctx) error {
	tenantID := kernel.TenantID(c.Params("tenantId"))
	channelID := kernel.NewChannelID(c.Params("channelId"))

	log.Printf("🔐 Verifying WhatsApp webhook - Tenant: %s, Channel: %s", tenantID, channelID)

	channel, err := h.channelRepo.FindByID(c.Context(), channelID, tenantID)
	if err != nil {
		log.Printf("❌ Channel not found: %s (tenant: %s)", channelID, tenantID)
		return fiber.NewError(http.StatusNotFound, "Channel not found")
	}

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == channel.Config.VerifyToken {
		log.Printf("✅ Webhook verified successfully for channel: %s", channelID)
		return c.SendString(challenge)
	}

	log.Printf("❌ Webhook verification failed - Invalid token for channel: %s", channelID)
	return fiber.NewError(http.StatusForbidden, "Verification failed")
}

// ReceiveWebhook normaliza el webhook entrante y lo deja en Locals para el
// handler genérico de procesamiento. Siempre responde 200 a Meta para evitar
// reintentos, incluso ante errores.
// POST /webhooks/whatsapp/:tenantId/:channelId
func (h *WebhookHandler) ReceiveWebhook(c *fiber.Ctx) error {
	tenantID := kernel.TenantID(c.Params("tenantId"))
	channelID := kernel.NewChannelID(c.Params("channelId"))

	log.Printf("📥 Received WhatsApp webhook - Tenant: %s, Channel: %s", tenantID, channelID)

	channel, err := h.channelRepo.FindByID(c.Context(), channelID, tenantID)
	if err != nil {
		log.Printf("❌ Channel not found: %s", channelID)
		return c.SendStatus(fiber.StatusOK)
	}

	if !channel.IsActive {
		log.Printf("⚠️ Channel is inactive: %s", channelID)
		return c.SendStatus(fiber.StatusOK)
	}

	headers := make(map[string]string)
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = string(value)
	})

	incomingMsg, err := h.adapter.ProcessWebhook(c.Context(), *channel, c.Body(), headers)
	if err != nil {
		log.Printf("❌ Failed to process webhook: %v", err)
		return c.SendStatus(fiber.StatusOK)
	}

	// nil sin error: evento de estado u otro payload sin mensaje
	if incomingMsg == nil {
		log.Printf("📦 Status update or non-message event for channel: %s", channelID)
		return c.SendStatus(fiber.StatusOK)
	}

	incomingMsg.ChannelID = channel.ID

	c.Locals("incoming_message", incomingMsg)
	c.Locals("channel", channel)

	return c.Next()
}
