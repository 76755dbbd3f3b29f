package engine

import (
	"time"

	"github.com/Abraxas-365/converso/pkg/kernel"
)

// ============================================================================
// Conversation State Entity
// ============================================================================

// ConversationStatus estado del hilo de conversación
type ConversationStatus string

const (
	ConversationStatusActive    ConversationStatus = "ACTIVE"
	ConversationStatusComplete  ConversationStatus = "COMPLETE"
	ConversationStatusEscalated ConversationStatus = "ESCALATED"
	ConversationStatusExpired   ConversationStatus = "EXPIRED"
)

// Claves de campos de housekeeping dentro de Fields
const (
	FieldLastResponse           = "__last_response"
	FieldPendingFlow            = "pending_flow"
	FieldAwaitingPersonSelect   = "awaiting_person_selection"
	FieldPendingPaymentAmount   = "pending_payment_amount"
	FieldOrganizationID         = "organization_id"
	FieldCustomerIdentified     = "customer_identified"
	FieldCollectedIdentifier    = "collected_identifier"
	FieldSelectedSpecialty      = "specialty"
)

// ConversationState es el estado mutable por hilo de conversación. Se crea en
// el primer mensaje entrante, lo muta cada ejecución de nodo y nunca se borra
// estructuralmente: solo se marca completo o expirado. Un único ejecutor puede
// mutarlo a la vez (exclusión por conversación).
type ConversationState struct {
	ID                    kernel.ConversationID `db:"id" json:"id"`
	TenantID              kernel.TenantID       `db:"tenant_id" json:"tenant_id"`
	ChannelID             kernel.ChannelID      `db:"channel_id" json:"channel_id"`
	SenderID              string                `db:"sender_id" json:"sender_id"`
	HistoryScope          string                `db:"history_scope" json:"history_scope"` // "" = log principal del tenant
	WorkflowID            kernel.WorkflowID     `db:"workflow_id" json:"workflow_id"`
	WorkflowVersion       int                   `db:"workflow_version" json:"workflow_version"`
	CurrentNodeInstanceID kernel.NodeInstanceID `db:"current_node_instance_id" json:"current_node_instance_id"`
	IdentificationStep    string                `db:"identification_step" json:"identification_step,omitempty"`
	Fields                map[string]any        `db:"fields" json:"fields"`
	ErrorCount            int                   `db:"error_count" json:"error_count"`
	Status                ConversationStatus    `db:"status" json:"status"`
	History               []MessageRef          `db:"history" json:"history"`
	ExpiresAt             time.Time             `db:"expires_at" json:"expires_at"`
	CreatedAt             time.Time             `db:"created_at" json:"created_at"`
	LastActivityAt        time.Time             `db:"last_activity_at" json:"last_activity_at"`
}

// MessageRef referencia a un mensaje en el historial
type MessageRef struct {
	MessageID kernel.MessageID `json:"message_id"`
	Role      string           `json:"role"` // user, assistant, system
	Timestamp time.Time        `json:"timestamp"`
}

// IsValid verifica si el estado es válido
func (s *ConversationState) IsValid() bool {
	return !s.ID.IsEmpty() && !s.ChannelID.IsEmpty() && s.SenderID != ""
}

// IsExpired verifica si el estado ha expirado
func (s *ConversationState) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// UpdateActivity actualiza la última actividad
func (s *ConversationState) UpdateActivity() {
	s.LastActivityAt = time.Now()
}

// GetField obtiene un campo de dominio
func (s *ConversationState) GetField(key string) (any, bool) {
	if s.Fields == nil {
		return nil, false
	}
	val, ok := s.Fields[key]
	return val, ok
}

// SetField establece un campo de dominio
func (s *ConversationState) SetField(key string, value any) {
	if s.Fields == nil {
		s.Fields = make(map[string]any)
	}
	s.Fields[key] = value
	s.UpdateActivity()
}

// UnsetField elimina un campo de dominio
func (s *ConversationState) UnsetField(key string) {
	if s.Fields == nil {
		return
	}
	delete(s.Fields, key)
	s.UpdateActivity()
}

// IncrementErrors suma uno al contador de errores y lo retorna
func (s *ConversationState) IncrementErrors() int {
	s.ErrorCount++
	s.UpdateActivity()
	return s.ErrorCount
}

// ResetErrors reinicia el contador. Solo debe llamarse tras una escalación
// por umbral o al completar el flujo; nunca silenciosamente.
func (s *ConversationState) ResetErrors() {
	s.ErrorCount = 0
}

// MarkComplete marca la conversación como completa
func (s *ConversationState) MarkComplete() {
	s.Status = ConversationStatusComplete
	s.ResetErrors()
	s.UpdateActivity()
}

// MarkEscalated marca la conversación como escalada a un humano
func (s *ConversationState) MarkEscalated() {
	s.Status = ConversationStatusEscalated
	s.UpdateActivity()
}

// MarkExpired marca la conversación como expirada
func (s *ConversationState) MarkExpired() {
	s.Status = ConversationStatusExpired
}

// AddMessage añade un mensaje al historial
func (s *ConversationState) AddMessage(messageID kernel.MessageID, role string) {
	s.History = append(s.History, MessageRef{
		MessageID: messageID,
		Role:      role,
		Timestamp: time.Now(),
	})
	s.UpdateActivity()
}

// ExtendExpiration extiende la expiración de la conversación
func (s *ConversationState) ExtendExpiration(duration time.Duration) {
	s.ExpiresAt = time.Now().Add(duration)
	s.UpdateActivity()
}

// ============================================================================
// State Delta
// ============================================================================

// StateDelta es el cambio de estado que devuelve la ejecución de un nodo.
// Los nodos nunca avanzan CurrentNodeInstanceID directamente; solo devuelven
// datos y el ejecutor decide el ruteo.
type StateDelta struct {
	Fields             map[string]any      `json:"fields,omitempty"`
	Unset              []string            `json:"unset,omitempty"`
	IdentificationStep *string             `json:"identification_step,omitempty"`
	Status             *ConversationStatus `json:"status,omitempty"`
}

// Merge combina otro delta sobre este (el otro gana en conflictos)
func (d *StateDelta) Merge(other StateDelta) {
	if other.Fields != nil {
		if d.Fields == nil {
			d.Fields = make(map[string]any)
		}
		for k, v := range other.Fields {
			d.Fields[k] = v
		}
	}
	d.Unset = append(d.Unset, other.Unset...)
	if other.IdentificationStep != nil {
		d.IdentificationStep = other.IdentificationStep
	}
	if other.Status != nil {
		d.Status = other.Status
	}
}

// SetField agrega un campo al delta
func (d *StateDelta) SetField(key string, value any) {
	if d.Fields == nil {
		d.Fields = make(map[string]any)
	}
	d.Fields[key] = value
}

// ApplyDelta aplica un delta devuelto por un nodo sobre el estado
func (s *ConversationState) ApplyDelta(delta StateDelta) {
	for k, v := range delta.Fields {
		s.SetField(k, v)
	}
	for _, k := range delta.Unset {
		s.UnsetField(k)
	}
	if delta.IdentificationStep != nil {
		s.IdentificationStep = *delta.IdentificationStep
	}
	if delta.Status != nil {
		s.Status = *delta.Status
		if *delta.Status == ConversationStatusComplete {
			s.ResetErrors()
		}
	}
	s.UpdateActivity()
}

// ============================================================================
// Evaluation Fields
// ============================================================================

// EvalFields construye el mapa plano sobre el que se evalúan condiciones de
// transiciones y reglas: campos de dominio más los derivados del mensaje y
// del clasificador de intención. Las condiciones nunca mutan este mapa.
func EvalFields(state *ConversationState, msg *Message, intent *IntentResult) map[string]any {
	fields := make(map[string]any)

	if state != nil {
		for k, v := range state.Fields {
			fields[k] = v
		}
		fields["identification_step"] = state.IdentificationStep
		fields["error_count"] = state.ErrorCount
		fields["conversation_status"] = string(state.Status)
		fields["current_node_instance_id"] = state.CurrentNodeInstanceID.String()
	}

	if msg != nil {
		fields["message_text"] = msg.Content.Text
		fields["message_type"] = string(msg.Content.Type)
	}

	if intent != nil {
		fields["intent"] = intent.Intent
		fields["confidence"] = intent.Confidence
		for k, v := range intent.Entities {
			fields["entities."+k] = v
		}
	}

	return fields
}
