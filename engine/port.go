package engine

import (
	"context"
	"time"

	"github.com/Abraxas-365/converso/pkg/kernel"
)

// ============================================================================
// Repository Interfaces
// ============================================================================

// WorkflowRepository persistencia de definiciones de workflow
type WorkflowRepository interface {
	// CRUD básico
	Save(ctx context.Context, wf WorkflowDefinition) error
	FindByID(ctx context.Context, id kernel.WorkflowID) (*WorkflowDefinition, error)
	Delete(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) error
	ExistsByKey(ctx context.Context, key string, tenantID kernel.TenantID) (bool, error)

	// Búsquedas
	FindActiveByKey(ctx context.Context, key string, tenantID kernel.TenantID) (*WorkflowDefinition, error)
	FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*WorkflowDefinition, error)
	FindVersions(ctx context.Context, key string, tenantID kernel.TenantID) ([]*WorkflowDefinition, error)

	// List con paginación
	List(ctx context.Context, req WorkflowListRequest) (WorkflowListResponse, error)

	// Activate publica una versión y desactiva las demás del mismo
	// (tenant, key) en la misma transacción
	Activate(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) error
}

// ConversationStateRepository persistencia del estado por conversación.
// El snapshot completo debe poder guardarse y restaurarse por id para
// sobrevivir reinicios del proceso.
type ConversationStateRepository interface {
	Save(ctx context.Context, state ConversationState) error
	FindByID(ctx context.Context, id kernel.ConversationID) (*ConversationState, error)
	FindByThread(ctx context.Context, channelID kernel.ChannelID, senderID, historyScope string) (*ConversationState, error)
	FindExpired(ctx context.Context, limit int) ([]*ConversationState, error)
	MarkExpired(ctx context.Context, id kernel.ConversationID) error
	CountActive(ctx context.Context, tenantID kernel.TenantID) (int, error)
}

// RoutingRuleRepository persistencia de reglas de ruteo por tenant
type RoutingRuleRepository interface {
	Save(ctx context.Context, rule RoutingRule) error
	FindByID(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) (*RoutingRule, error)
	Delete(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) error

	// FindActiveByTenant retorna reglas activas ordenadas por prioridad ascendente
	FindActiveByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*RoutingRule, error)
	List(ctx context.Context, req RuleListRequest) (RuleListResponse, error)
}

// BypassRuleRepository persistencia de reglas de bypass
type BypassRuleRepository interface {
	Save(ctx context.Context, rule BypassRule) error
	FindByID(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) (*BypassRule, error)
	Delete(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) error

	// FindActiveByTenant retorna reglas activas ordenadas por prioridad ascendente
	FindActiveByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*BypassRule, error)
}

// MessageRepository persistencia de mensajes
type MessageRepository interface {
	Save(ctx context.Context, msg Message) error
	FindByID(ctx context.Context, id kernel.MessageID) (*Message, error)
	FindByConversation(ctx context.Context, conversationID kernel.ConversationID) ([]*Message, error)
	List(ctx context.Context, req MessageListRequest) (MessageListResponse, error)
}

// ============================================================================
// Node Behavior Interfaces
// ============================================================================

// ExecInput entrada de la ejecución de un nodo
type ExecInput struct {
	State   *ConversationState
	Message Message
	Intent  *IntentResult
	Config  map[string]any // config de catálogo ya mezclada con overrides de la instancia
}

// ExecOutput salida de la ejecución de un nodo. El nodo solo devuelve datos:
// el avance de CurrentNodeInstanceID es responsabilidad del ejecutor.
type ExecOutput struct {
	Delta    StateDelta
	Response *Response

	// Continue indica que el nodo no espera entrada del usuario y el
	// ejecutor puede saltar al siguiente nodo dentro del mismo turno
	Continue bool
}

// NodeBehavior comportamiento polimórfico de un tipo de nodo del catálogo
type NodeBehavior interface {
	// Definition retorna la entrada de catálogo del comportamiento
	Definition() NodeDefinition

	// Execute ejecuta el nodo contra el estado actual
	Execute(ctx context.Context, input ExecInput) (*ExecOutput, error)

	// ValidateConfig valida la configuración de una instancia
	ValidateConfig(config map[string]any) error
}

// MergeNodeConfig mezcla la config default del catálogo con los overrides
// de la instancia (la instancia gana)
func MergeNodeConfig(defaults, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// Catalog registro de comportamientos por key de tipo de nodo. Agregar un
// tipo de nodo es registrar una implementación, no modificar el ejecutor.
type Catalog interface {
	Register(behavior NodeBehavior)
	Resolve(key string) (NodeBehavior, error)
	Definitions() []NodeDefinition
}

// ============================================================================
// Executor Interfaces
// ============================================================================

// TurnResult resultado de procesar un mensaje entrante sobre un workflow
type TurnResult struct {
	Response  *Response          `json:"response,omitempty"`
	Escalated bool               `json:"escalated"`
	Agent     string             `json:"agent,omitempty"` // destino de handoff si Escalated
	Trace     []NodeTrace        `json:"trace,omitempty"`
	Status    ConversationStatus `json:"status"`
}

// NodeTrace traza de un nodo ejecutado dentro de un turno
type NodeTrace struct {
	NodeInstanceID kernel.NodeInstanceID `json:"node_instance_id"`
	InstanceKey    string                `json:"instance_key"`
	Success        bool                  `json:"success"`
	Error          string                `json:"error,omitempty"`
	DurationMs     int64                 `json:"duration_ms"`
	Timestamp      time.Time             `json:"timestamp"`
}

// GraphExecutor interpreta la máquina de estados del workflow activo
type GraphExecutor interface {
	// ExecuteTurn procesa un mensaje entrante: ejecuta el nodo actual,
	// aplica reglas de ruteo y transiciones, y muta el estado recibido.
	// El estado mutado queda listo para persistir por el llamador.
	ExecuteTurn(ctx context.Context, wf *WorkflowDefinition, state *ConversationState, msg Message, intent *IntentResult, rules []*RoutingRule) (*TurnResult, error)
}

// ============================================================================
// Collaborator Ports
// ============================================================================

// IntentClassifier clasificación de intención (colaborador externo)
type IntentClassifier interface {
	Classify(ctx context.Context, text string, context map[string]any) (*IntentResult, error)
}

// Document documento recuperado de la capa de conocimiento
type Document struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// KnowledgeSearcher búsqueda de conocimiento (colaborador externo)
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, filters map[string]any) ([]Document, error)
}

// SchedulingService agenda de citas (colaborador externo del nodo booking)
type SchedulingService interface {
	AvailableSlots(ctx context.Context, specialty string, from time.Time) ([]time.Time, error)
	Book(ctx context.Context, specialty string, slot time.Time, personRef string) (string, error)
}

// ConversationLocker exclusión mutua por hilo lógico (channel+sender+scope):
// a lo más una invocación del ejecutor en vuelo por hilo. La clave va por
// hilo y no por ConversationID para que dos primeros mensajes simultáneos
// del mismo sender no creen dos conversaciones. Reentrante dentro del mismo
// contexto.
type ConversationLocker interface {
	WithLock(ctx context.Context, threadKey string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// WorkflowCache cache read-mostly de definiciones publicadas por
// (tenant, key). Se invalida al publicar, nunca pausando conversaciones.
type WorkflowCache interface {
	Get(ctx context.Context, tenantID kernel.TenantID, key string) (*WorkflowDefinition, error)
	Set(ctx context.Context, wf *WorkflowDefinition) error
	Invalidate(ctx context.Context, tenantID kernel.TenantID, key string) error
}
