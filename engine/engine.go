package engine

import (
	"sort"
	"time"

	"github.com/Abraxas-365/converso/pkg/kernel"
)

// ============================================================================
// Message Entity
// ============================================================================

// Message representa un mensaje normalizado de cualquier canal
type Message struct {
	ID             kernel.MessageID      `db:"id" json:"id"`
	TenantID       kernel.TenantID       `db:"tenant_id" json:"tenant_id"`
	ChannelID      kernel.ChannelID      `db:"channel_id" json:"channel_id"`
	ConversationID kernel.ConversationID `db:"conversation_id" json:"conversation_id"`
	SenderID       string                `db:"sender_id" json:"sender_id"`
	Content        MessageContent        `db:"content" json:"content"`
	Status         MessageStatus         `db:"status" json:"status"`
	CreatedAt      time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time             `db:"updated_at" json:"updated_at"`
}

// MessageType tipo de contenido del mensaje
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeDocument MessageType = "document"
)

// MessageContent contenido del mensaje
type MessageContent struct {
	Type        MessageType    `json:"type"`
	Text        string         `json:"text,omitempty"`
	Attachments []string       `json:"attachments,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// MessageStatus estado del mensaje
type MessageStatus string

const (
	MessageStatusPending    MessageStatus = "PENDING"
	MessageStatusProcessing MessageStatus = "PROCESSING"
	MessageStatusProcessed  MessageStatus = "PROCESSED"
	MessageStatusFailed     MessageStatus = "FAILED"
)

// IsValid verifica si el mensaje es válido
func (m *Message) IsValid() bool {
	return !m.ID.IsEmpty() && !m.ChannelID.IsEmpty() && m.SenderID != ""
}

// HasTextContent verifica si el mensaje tiene contenido de texto
func (m *Message) HasTextContent() bool {
	return m.Content.Type == MessageTypeText && m.Content.Text != ""
}

// MarkAsProcessing marca el mensaje como en procesamiento
func (m *Message) MarkAsProcessing() {
	m.Status = MessageStatusProcessing
	m.UpdatedAt = time.Now()
}

// MarkAsProcessed marca el mensaje como procesado
func (m *Message) MarkAsProcessed() {
	m.Status = MessageStatusProcessed
	m.UpdatedAt = time.Now()
}

// MarkAsFailed marca el mensaje como fallido
func (m *Message) MarkAsFailed() {
	m.Status = MessageStatusFailed
	m.UpdatedAt = time.Now()
}

// ============================================================================
// Node Catalog Entity
// ============================================================================

// NodeDefinition entrada del catálogo de tipos de nodo. Inmutable una vez
// publicada; una nueva versión se crea con otro key o subiendo Version.
type NodeDefinition struct {
	Key             string         `db:"key" json:"key"`
	Version         int            `db:"version" json:"version"`
	BehaviorRef     string         `db:"behavior_ref" json:"behavior_ref"`
	Description     string         `db:"description" json:"description"`
	DefaultConfig   map[string]any `db:"default_config" json:"default_config"`
	DeclaredInputs  []string       `db:"declared_inputs" json:"declared_inputs"`
	DeclaredOutputs []string       `db:"declared_outputs" json:"declared_outputs"`
}

// ============================================================================
// Workflow Definition Entity
// ============================================================================

// WorkflowDefinition es el grafo dirigido persistido del builder visual.
// A lo más una versión activa por (tenant, key).
type WorkflowDefinition struct {
	ID          kernel.WorkflowID `db:"id" json:"id"`
	TenantID    kernel.TenantID   `db:"tenant_id" json:"tenant_id"`
	Key         string            `db:"key" json:"key"`
	Version     int               `db:"version" json:"version"`
	Name        string            `db:"name" json:"name"`
	Description string            `db:"description" json:"description"`
	IsDraft     bool              `db:"is_draft" json:"is_draft"`
	IsActive    bool              `db:"is_active" json:"is_active"`
	Nodes       []NodeInstance    `db:"nodes" json:"nodes"`
	Transitions []Transition      `db:"transitions" json:"transitions"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// NodeInstance ocurrencia configurada de un tipo de nodo dentro de un workflow
type NodeInstance struct {
	ID                kernel.NodeInstanceID `json:"id"`
	WorkflowID        kernel.WorkflowID     `json:"workflow_id"`
	NodeDefinitionKey string                `json:"node_definition_key"`
	InstanceKey       string                `json:"instance_key"`
	Config            map[string]any        `json:"config,omitempty"`
	IsEntryPoint      bool                  `json:"is_entry_point"`
	OnErrorTarget     kernel.NodeInstanceID `json:"on_error_target,omitempty"`
	EndOfFlow         bool                  `json:"end_of_flow,omitempty"`
}

// Transition arista dirigida entre dos instancias de nodo.
// Condition nula significa incondicional. Priority menor se evalúa primero;
// la transición default se evalúa al final y matchea siempre.
type Transition struct {
	ID                   kernel.TransitionID   `json:"id"`
	WorkflowID           kernel.WorkflowID     `json:"workflow_id"`
	SourceNodeInstanceID kernel.NodeInstanceID `json:"source_node_instance_id"`
	TargetNodeInstanceID kernel.NodeInstanceID `json:"target_node_instance_id"`
	Condition            *Condition            `json:"condition,omitempty"`
	Priority             int                   `json:"priority"`
	IsDefault            bool                  `json:"is_default"`
}

// Matches evalúa la condición de la transición contra los campos dados
func (t *Transition) Matches(fields map[string]any) bool {
	if t.Condition == nil {
		return true
	}
	return t.Condition.Evaluate(fields)
}

// ============================================================================
// Domain Methods - WorkflowDefinition
// ============================================================================

// IsValid verifica si el workflow es válido
func (w *WorkflowDefinition) IsValid() bool {
	return w.Key != "" && len(w.Nodes) > 0 && !w.TenantID.IsEmpty()
}

// EntryNode retorna la instancia marcada como punto de entrada
func (w *WorkflowDefinition) EntryNode() *NodeInstance {
	for i := range w.Nodes {
		if w.Nodes[i].IsEntryPoint {
			return &w.Nodes[i]
		}
	}
	return nil
}

// GetNodeByID obtiene una instancia por ID
func (w *WorkflowDefinition) GetNodeByID(id kernel.NodeInstanceID) *NodeInstance {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i]
		}
	}
	return nil
}

// GetNodeByInstanceKey obtiene una instancia por su key dentro del workflow
func (w *WorkflowDefinition) GetNodeByInstanceKey(key string) *NodeInstance {
	for i := range w.Nodes {
		if w.Nodes[i].InstanceKey == key {
			return &w.Nodes[i]
		}
	}
	return nil
}

// FindNodeByDefinitionKey retorna la primera instancia de un tipo de nodo dado
func (w *WorkflowDefinition) FindNodeByDefinitionKey(defKey string) *NodeInstance {
	for i := range w.Nodes {
		if w.Nodes[i].NodeDefinitionKey == defKey {
			return &w.Nodes[i]
		}
	}
	return nil
}

// TransitionsFrom retorna las transiciones salientes de un nodo ordenadas
// por (priority ascendente, condicional antes que incondicional, default al final)
func (w *WorkflowDefinition) TransitionsFrom(sourceID kernel.NodeInstanceID) []Transition {
	var out []Transition
	for _, t := range w.Transitions {
		if t.SourceNodeInstanceID == sourceID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return !out[i].IsDefault
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		// a igual prioridad la condicional se evalúa antes que la incondicional
		return out[i].Condition != nil && out[j].Condition == nil
	})
	return out
}

// IsTerminal indica si un nodo no tiene salidas o está marcado fin de flujo
func (w *WorkflowDefinition) IsTerminal(id kernel.NodeInstanceID) bool {
	node := w.GetNodeByID(id)
	if node == nil {
		return true
	}
	if node.EndOfFlow {
		return true
	}
	return len(w.TransitionsFrom(id)) == 0
}

// Publish marca el workflow como publicado y activo
func (w *WorkflowDefinition) Publish() {
	w.IsDraft = false
	w.IsActive = true
	w.UpdatedAt = time.Now()
}

// Deactivate desactiva el workflow
func (w *WorkflowDefinition) Deactivate() {
	w.IsActive = false
	w.UpdatedAt = time.Now()
}

// BumpVersion incrementa la versión en una edición estructural
func (w *WorkflowDefinition) BumpVersion() {
	w.Version++
	w.IsDraft = true
	w.UpdatedAt = time.Now()
}

// ============================================================================
// Routing Rule Entity
// ============================================================================

// RuleType tipo de regla de ruteo
type RuleType string

const (
	RuleTypeHumanHandoff RuleType = "HUMAN_HANDOFF"
	RuleTypeEscalation   RuleType = "ESCALATION"
	RuleTypeJump         RuleType = "JUMP"
)

// RuleActionType tipo de acción de una regla
type RuleActionType string

const (
	RuleActionGoToNode RuleActionType = "GO_TO_NODE"
	RuleActionHandoff  RuleActionType = "HANDOFF"
)

// RuleAction acción estructurada de una regla de ruteo
type RuleAction struct {
	Type          RuleActionType `json:"type"`
	TargetNodeKey string         `json:"target_node_key,omitempty"` // instance key dentro del workflow activo
	TargetAgent   string         `json:"target_agent,omitempty"`    // cola o agente humano destino
	Params        map[string]any `json:"params,omitempty"`
}

// RoutingRule regla transversal por tenant, evaluada por prioridad sobre
// las transiciones propias del grafo. Un match siempre gana a la transición.
type RoutingRule struct {
	ID        kernel.RuleID   `db:"id" json:"id"`
	TenantID  kernel.TenantID `db:"tenant_id" json:"tenant_id"`
	RuleType  RuleType        `db:"rule_type" json:"rule_type"`
	Condition *Condition      `db:"condition" json:"condition,omitempty"`
	Action    RuleAction      `db:"action" json:"action"`
	Priority  int             `db:"priority" json:"priority"`
	IsActive  bool            `db:"is_active" json:"is_active"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Matches evalúa la condición de la regla
func (r *RoutingRule) Matches(fields map[string]any) bool {
	if !r.IsActive {
		return false
	}
	if r.Condition == nil {
		return true
	}
	return r.Condition.Evaluate(fields)
}

// ============================================================================
// Bypass Rule Entity
// ============================================================================

// BypassMatchType tipo de match de una regla de bypass
type BypassMatchType string

const (
	BypassMatchExactNumber     BypassMatchType = "EXACT_NUMBER"
	BypassMatchNumberPattern   BypassMatchType = "NUMBER_PATTERN"
	BypassMatchChannelNumberID BypassMatchType = "CHANNEL_NUMBER_ID"
)

// BypassRule atajo pre-engine: rutea un identificador de canal directo a un
// workflow o agente, saltando el ejecutor normal
type BypassRule struct {
	ID                kernel.RuleID   `db:"id" json:"id"`
	TenantID          kernel.TenantID `db:"tenant_id" json:"tenant_id"`
	MatchType         BypassMatchType `db:"match_type" json:"match_type"`
	Value             string          `db:"value" json:"value"`
	TargetWorkflowKey string          `db:"target_workflow_key" json:"target_workflow_key"`
	TargetAgent       string          `db:"target_agent" json:"target_agent,omitempty"`
	Priority          int             `db:"priority" json:"priority"`
	IsolatedHistory   bool            `db:"isolated_history" json:"isolated_history"`
	IsActive          bool            `db:"is_active" json:"is_active"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// ============================================================================
// Intent Result (producido por el clasificador externo)
// ============================================================================

// IntentResult resultado de la clasificación de intención de un mensaje
type IntentResult struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities,omitempty"`
}

// ============================================================================
// Response (emitida hacia el adaptador de canal)
// ============================================================================

// ResponseButton botón interactivo de una respuesta
type ResponseButton struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ResponseListItem ítem de una lista interactiva
type ResponseListItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Response respuesta construida por un nodo; el canal decide el formato final
type Response struct {
	Text      string             `json:"text"`
	Buttons   []ResponseButton   `json:"buttons,omitempty"`
	ListItems []ResponseListItem `json:"list_items,omitempty"`
	Metadata  map[string]any     `json:"metadata,omitempty"`
}
