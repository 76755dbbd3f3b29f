package channelapi

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/Abraxas-365/converso/channels"
	"github.com/Abraxas-365/converso/engine"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// MessageProcessor procesa un mensaje entrante a través del motor
type MessageProcessor interface {
	Process(ctx context.Context, inbound engine.InboundMessage) error
}

// ChannelHandler procesa mensajes entrantes de CUALQUIER canal. Los handlers
// específicos del proveedor dejan incoming_message y channel en fiber.Locals.
type ChannelHandler struct {
	processor  MessageProcessor
	media      channels.MediaStore // opcional
	httpClient *http.Client
}

func NewChannelHandler(processor MessageProcessor, media channels.MediaStore) *ChannelHandler {
	return &ChannelHandler{
		processor:  processor,
		media:      media,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ProcessIncomingMessage transforma el mensaje normalizado del canal a un
// mensaje del motor y lo procesa en background. Responde al webhook de
// inmediato para no bloquear al proveedor.
func (h *ChannelHandler) ProcessIncomingMessage(c *fiber.Ctx) error {
	incomingMsg, ok := c.Locals("incoming_message").(*channels.IncomingMessage)
	if !ok || incomingMsg == nil {
		log.Printf("❌ No incoming message in context")
		return c.SendStatus(fiber.StatusOK)
	}

	channel, ok := c.Locals("channel").(*channels.Channel)
	if !ok || channel == nil {
		log.Printf("❌ No channel in context")
		return c.SendStatus(fiber.StatusOK)
	}

	log.Printf("📨 Processing incoming message from %s via channel %s", incomingMsg.SenderID, channel.Name)

	inbound := h.transformToInbound(channel, incomingMsg)

	// Procesamiento asíncrono: el webhook del proveedor no espera al motor
	go func() {
		ctx := context.Background()

		// Las URLs de media del proveedor expiran; se archivan antes de procesar
		if len(inbound.Attachments) > 0 && h.media != nil {
			inbound.Attachments = h.archiveAttachments(ctx, channel, inbound.Attachments)
		}

		if err := h.processor.Process(ctx, inbound); err != nil {
			log.Printf("❌ Failed to process message through engine: %v", err)
		} else {
			log.Printf("✅ Message processed successfully from sender: %s", inbound.SenderID)
		}
	}()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "received",
	})
}

// transformToInbound convierte channels.IncomingMessage a engine.InboundMessage
func (h *ChannelHandler) transformToInbound(
	channel *channels.Channel,
	incomingMsg *channels.IncomingMessage,
) engine.InboundMessage {
	metadata := make(map[string]any)
	for k, v := range incomingMsg.Metadata {
		metadata[k] = v
	}
	// Las respuestas interactivas viajan como metadata para los nodos
	if incomingMsg.ButtonID != "" {
		metadata["button_id"] = incomingMsg.ButtonID
	}
	if incomingMsg.ListItemID != "" {
		metadata["list_item_id"] = incomingMsg.ListItemID
	}
	metadata["channel_type"] = string(channel.Type)

	return engine.InboundMessage{
		TenantID:        channel.TenantID,
		ChannelID:       channel.ID,
		ChannelNumberID: incomingMsg.ChannelNumberID,
		SenderID:        incomingMsg.SenderID,
		Text:            incomingMsg.Text,
		Attachments:     incomingMsg.Attachments,
		Metadata:        metadata,
	}
}

// archiveAttachments re-aloja los adjuntos del proveedor en el media store y
// retorna URLs durables. Ante cualquier fallo conserva la URL original.
func (h *ChannelHandler) archiveAttachments(ctx context.Context, channel *channels.Channel, urls []string) []string {
	archived := make([]string, 0, len(urls))
	for _, rawURL := range urls {
		durable, err := h.archiveOne(ctx, channel, rawURL)
		if err != nil {
			log.Printf("⚠️ Failed to archive attachment, keeping original URL: %v", err)
			archived = append(archived, rawURL)
			continue
		}
		archived = append(archived, durable)
	}
	return archived
}

func (h *ChannelHandler) archiveOne(ctx context.Context, channel *channels.Channel, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("attachment download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read attachment body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectKey, err := h.media.Upload(ctx, channel.TenantID, uuid.New().String(), contentType, data)
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment: %w", err)
	}

	return h.media.PresignedURL(ctx, objectKey)
}
