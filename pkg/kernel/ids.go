package kernel

import "github.com/google/uuid"

type TenantID string

func NewTenantID(id string) TenantID { return TenantID(id) }
func (t TenantID) String() string    { return string(t) }
func (t TenantID) IsEmpty() bool     { return string(t) == "" }

type WorkflowID string

func NewWorkflowID(id string) WorkflowID { return WorkflowID(id) }
func GenerateWorkflowID() WorkflowID     { return WorkflowID(uuid.New().String()) }
func (r WorkflowID) String() string      { return string(r) }
func (r WorkflowID) IsEmpty() bool       { return string(r) == "" }

type NodeInstanceID string

func NewNodeInstanceID(id string) NodeInstanceID { return NodeInstanceID(id) }
func GenerateNodeInstanceID() NodeInstanceID     { return NodeInstanceID(uuid.New().String()) }
func (r NodeInstanceID) String() string          { return string(r) }
func (r NodeInstanceID) IsEmpty() bool           { return string(r) == "" }

type TransitionID string

func NewTransitionID(id string) TransitionID { return TransitionID(id) }
func GenerateTransitionID() TransitionID     { return TransitionID(uuid.New().String()) }
func (r TransitionID) String() string        { return string(r) }
func (r TransitionID) IsEmpty() bool         { return string(r) == "" }

type ConversationID string

func NewConversationID(id string) ConversationID { return ConversationID(id) }
func GenerateConversationID() ConversationID     { return ConversationID(uuid.New().String()) }
func (r ConversationID) String() string          { return string(r) }
func (r ConversationID) IsEmpty() bool           { return string(r) == "" }

type MessageID string

func NewMessageID(id string) MessageID { return MessageID(id) }
func GenerateMessageID() MessageID     { return MessageID(uuid.New().String()) }
func (r MessageID) String() string     { return string(r) }
func (r MessageID) IsEmpty() bool      { return string(r) == "" }

type ChannelID string

func NewChannelID(id string) ChannelID { return ChannelID(id) }
func (r ChannelID) String() string     { return string(r) }
func (r ChannelID) IsEmpty() bool      { return string(r) == "" }

type RuleID string

func NewRuleID(id string) RuleID { return RuleID(id) }
func GenerateRuleID() RuleID     { return RuleID(uuid.New().String()) }
func (r RuleID) String() string  { return string(r) }
func (r RuleID) IsEmpty() bool   { return string(r) == "" }

type PersonID string

func NewPersonID(id string) PersonID { return PersonID(id) }
func GeneratePersonID() PersonID     { return PersonID(uuid.New().String()) }
func (r PersonID) String() string    { return string(r) }
func (r PersonID) IsEmpty() bool     { return string(r) == "" }
