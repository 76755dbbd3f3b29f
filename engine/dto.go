package engine

import (
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/storex"
)

// ============================================================================
// Workflow DTOs
// ============================================================================

type CreateWorkflowRequest struct {
	TenantID    kernel.TenantID `json:"tenant_id" validate:"required"`
	Key         string          `json:"key" validate:"required,min=2"`
	Name        string          `json:"name" validate:"required,min=2"`
	Description string          `json:"description,omitempty"`
	Nodes       []NodeInstance  `json:"nodes" validate:"required,min=1"`
	Transitions []Transition    `json:"transitions,omitempty"`
}

type UpdateWorkflowRequest struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Nodes       *[]NodeInstance `json:"nodes,omitempty"`
	Transitions *[]Transition   `json:"transitions,omitempty"`
}

type WorkflowResponse struct {
	Workflow WorkflowDefinition `json:"workflow"`
}

type WorkflowListRequest struct {
	storex.PaginationOptions
	TenantID kernel.TenantID `json:"tenant_id" validate:"required"`
	IsActive *bool           `json:"is_active,omitempty"`
	Search   string          `json:"search,omitempty"`
}

func (wlr WorkflowListRequest) GetOffset() int {
	return (wlr.Page - 1) * wlr.PageSize
}

type WorkflowListResponse = storex.Paginated[WorkflowDefinition]

// PublishWorkflowResponse reporte de publicación: errores rechazan la
// publicación, los warnings (nodos inalcanzables) no.
type PublishWorkflowResponse struct {
	WorkflowID kernel.WorkflowID `json:"workflow_id"`
	Published  bool              `json:"published"`
	Report     ValidationReport  `json:"report"`
}

// ============================================================================
// Routing Rule DTOs
// ============================================================================

type CreateRoutingRuleRequest struct {
	TenantID  kernel.TenantID `json:"tenant_id" validate:"required"`
	RuleType  RuleType        `json:"rule_type" validate:"required"`
	Condition *Condition      `json:"condition,omitempty"`
	Action    RuleAction      `json:"action" validate:"required"`
	Priority  int             `json:"priority"`
	IsActive  bool            `json:"is_active"`
}

type UpdateRoutingRuleRequest struct {
	Condition *Condition  `json:"condition,omitempty"`
	Action    *RuleAction `json:"action,omitempty"`
	Priority  *int        `json:"priority,omitempty"`
	IsActive  *bool       `json:"is_active,omitempty"`
}

type RuleListRequest struct {
	storex.PaginationOptions
	TenantID kernel.TenantID `json:"tenant_id" validate:"required"`
	RuleType *RuleType       `json:"rule_type,omitempty"`
	IsActive *bool           `json:"is_active,omitempty"`
}

func (rlr RuleListRequest) GetOffset() int {
	return (rlr.Page - 1) * rlr.PageSize
}

type RuleListResponse = storex.Paginated[RoutingRule]

// ============================================================================
// Bypass Rule DTOs
// ============================================================================

type CreateBypassRuleRequest struct {
	TenantID          kernel.TenantID `json:"tenant_id" validate:"required"`
	MatchType         BypassMatchType `json:"match_type" validate:"required"`
	Value             string          `json:"value" validate:"required"`
	TargetWorkflowKey string          `json:"target_workflow_key" validate:"required"`
	TargetAgent       string          `json:"target_agent,omitempty"`
	Priority          int             `json:"priority"`
	IsolatedHistory   bool            `json:"isolated_history"`
	IsActive          bool            `json:"is_active"`
}

type UpdateBypassRuleRequest struct {
	Value             *string `json:"value,omitempty"`
	TargetWorkflowKey *string `json:"target_workflow_key,omitempty"`
	TargetAgent       *string `json:"target_agent,omitempty"`
	Priority          *int    `json:"priority,omitempty"`
	IsolatedHistory   *bool   `json:"isolated_history,omitempty"`
	IsActive          *bool   `json:"is_active,omitempty"`
}

// ============================================================================
// Message DTOs
// ============================================================================

type MessageListRequest struct {
	storex.PaginationOptions
	TenantID       kernel.TenantID        `json:"tenant_id" validate:"required"`
	ConversationID *kernel.ConversationID `json:"conversation_id,omitempty"`
	Status         *MessageStatus         `json:"status,omitempty"`
}

func (mlr MessageListRequest) GetOffset() int {
	return (mlr.Page - 1) * mlr.PageSize
}

type MessageListResponse = storex.Paginated[Message]

// ============================================================================
// Inbound DTO
// ============================================================================

// InboundMessage mensaje crudo entregado por un adaptador de canal
type InboundMessage struct {
	TenantID        kernel.TenantID  `json:"tenant_id" validate:"required"`
	ChannelID       kernel.ChannelID `json:"channel_id" validate:"required"`
	ChannelNumberID string           `json:"channel_number_id,omitempty"`
	SenderID        string           `json:"sender_id" validate:"required"`
	Text            string           `json:"text"`
	Attachments     []string         `json:"attachments,omitempty"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}
