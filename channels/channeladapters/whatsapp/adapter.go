package whatsapp

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Abraxas-365/converso/channels"
	"github.com/Abraxas-365/converso/engine"
)

const (
	apiBaseURL        = "https://graph.facebook.com"
	defaultAPIVersion = "v24.0"
	maxButtons        = 3
	maxListItems      = 10
)

// Adapter implementa ChannelAdapter para WhatsApp Business API. Es stateless:
// la config del canal llega en cada llamada, así un solo adaptador sirve
// todos los canales WhatsApp de todos los tenants.
type Adapter struct {
	httpClient *http.Client
	appSecret  string
}

var _ channels.ChannelAdapter = (*Adapter)(nil)

func NewAdapter(appSecret string) *Adapter {
	return &Adapter{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		appSecret:  appSecret,
	}
}

// GetType retorna el tipo de canal que maneja
func (a *Adapter) GetType() channels.ChannelType {
	return channels.ChannelTypeWhatsApp
}

// SendMessage envía la respuesta por la API de WhatsApp. Botones y listas
// se mapean a mensajes interactivos; el resto sale como texto.
func (a *Adapter) SendMessage(ctx context.Context, channel channels.Channel, msg channels.OutgoingMessage) error {
	payload := buildPayload(msg)

	apiVersion := channel.Config.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	url := fmt.Sprintf("%s/%s/%s/messages", apiBaseURL, apiVersion, channel.Config.PhoneNumberID)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+channel.Config.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Printf("❌ WhatsApp API Error - Status: %d, Body: %s", resp.StatusCode, string(body))
		return fmt.Errorf("whatsapp API error %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// ValidateConfig valida la configuración del canal
func (a *Adapter) ValidateConfig(config channels.ChannelConfig) error {
	if config.PhoneNumberID == "" || config.AccessToken == "" {
		return channels.ErrInvalidChannelConfig().
			WithDetail("reason", "whatsapp requires phone_number_id and access_token")
	}
	return nil
}

// ProcessWebhook procesa webhooks entrantes de WhatsApp
func (a *Adapter) ProcessWebhook(ctx context.Context, channel channels.Channel, payload []byte, headers map[string]string) (*channels.IncomingMessage, error) {
	if err := a.verifySignature(payload, headers); err != nil {
		return nil, err
	}

	var webhook webhookPayload
	if err := json.Unmarshal(payload, &webhook); err != nil {
		return nil, channels.ErrWebhookRejected().
			WithDetail("reason", "malformed payload")
	}

	return extractIncoming(channel, webhook), nil
}

func (a *Adapter) verifySignature(payload []byte, headers map[string]string) error {
	if a.appSecret == "" {
		return nil
	}
	signature := headers["X-Hub-Signature-256"]
	if signature == "" {
		signature = headers["x-hub-signature-256"]
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(a.appSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return channels.ErrWebhookRejected().
			WithDetail("reason", "invalid signature")
	}
	return nil
}

// ============================================================================
// Payload out
// ============================================================================

func buildPayload(msg channels.OutgoingMessage) map[string]any {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                msg.RecipientID,
	}

	response := msg.Response
	switch {
	case len(response.Buttons) > 0:
		payload["type"] = "interactive"
		payload["interactive"] = buildButtonsPayload(response)
	case len(response.ListItems) > 0:
		payload["type"] = "interactive"
		payload["interactive"] = buildListPayload(response)
	default:
		payload["type"] = "text"
		payload["text"] = map[string]any{"body": response.Text}
	}
	return payload
}

func buildButtonsPayload(response engine.Response) map[string]any {
	buttons := response.Buttons
	if len(buttons) > maxButtons {
		buttons = buttons[:maxButtons]
	}
	waButtons := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		waButtons = append(waButtons, map[string]any{
			"type": "reply",
			"reply": map[string]any{
				"id":    b.ID,
				"title": b.Title,
			},
		})
	}
	return map[string]any{
		"type": "button",
		"body": map[string]any{"text": response.Text},
		"action": map[string]any{
			"buttons": waButtons,
		},
	}
}

func buildListPayload(response engine.Response) map[string]any {
	items := response.ListItems
	if len(items) > maxListItems {
		items = items[:maxListItems]
	}
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		row := map[string]any{
			"id":    item.ID,
			"title": item.Title,
		}
		if item.Description != "" {
			row["description"] = item.Description
		}
		rows = append(rows, row)
	}
	return map[string]any{
		"type": "list",
		"body": map[string]any{"text": response.Text},
		"action": map[string]any{
			"button": "Ver opciones",
			"sections": []map[string]any{
				{"rows": rows},
			},
		},
	}
}

// ============================================================================
// Webhook in
// ============================================================================

type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
					Interactive struct {
						Type        string `json:"type"`
						ButtonReply struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"button_reply"`
						ListReply struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"list_reply"`
					} `json:"interactive"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// extractIncoming saca el primer mensaje de usuario del webhook. Updates de
// estado de entrega llegan por el mismo endpoint y se ignoran (nil, nil).
func extractIncoming(channel channels.Channel, webhook webhookPayload) *channels.IncomingMessage {
	for _, entry := range webhook.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				incoming := &channels.IncomingMessage{
					ChannelID:       channel.ID,
					ChannelNumberID: change.Value.Metadata.PhoneNumberID,
					SenderID:        msg.From,
				}
				switch msg.Type {
				case "text":
					incoming.Text = msg.Text.Body
				case "interactive":
					if msg.Interactive.ButtonReply.ID != "" {
						incoming.ButtonID = msg.Interactive.ButtonReply.ID
						incoming.Text = msg.Interactive.ButtonReply.Title
					} else {
						incoming.ListItemID = msg.Interactive.ListReply.ID
						incoming.Text = msg.Interactive.ListReply.Title
					}
				default:
					continue
				}
				return incoming
			}
		}
	}
	return nil
}
