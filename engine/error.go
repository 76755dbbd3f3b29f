package engine

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

var ErrRegistry = errx.NewRegistry("ENGINE")

var (
	// Workflow errors
	CodeWorkflowNotFound      = ErrRegistry.Register("WORKFLOW_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Workflow not found")
	CodeWorkflowAlreadyExists = ErrRegistry.Register("WORKFLOW_ALREADY_EXISTS", errx.TypeConflict, http.StatusConflict, "Workflow already exists")
	CodeInvalidWorkflowConfig = ErrRegistry.Register("INVALID_WORKFLOW_CONFIG", errx.TypeValidation, http.StatusBadRequest, "Invalid workflow configuration")
	CodeWorkflowInactive      = ErrRegistry.Register("WORKFLOW_INACTIVE", errx.TypeBusiness, http.StatusForbidden, "Workflow is inactive")
	CodePublishRejected       = ErrRegistry.Register("PUBLISH_REJECTED", errx.TypeValidation, http.StatusBadRequest, "Workflow publish validation failed")
	CodeNodeNotFound          = ErrRegistry.Register("NODE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Node instance not found")
	CodeBehaviorNotFound      = ErrRegistry.Register("BEHAVIOR_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Node behavior not registered")
	CodeInvalidCondition      = ErrRegistry.Register("INVALID_CONDITION", errx.TypeValidation, http.StatusBadRequest, "Invalid condition expression")

	// Conversation errors
	CodeConversationNotFound = ErrRegistry.Register("CONVERSATION_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Conversation not found")
	CodeConversationLocked   = ErrRegistry.Register("CONVERSATION_LOCKED", errx.TypeConflict, http.StatusConflict, "Conversation is being processed")
	CodeConversationExpired  = ErrRegistry.Register("CONVERSATION_EXPIRED", errx.TypeBusiness, http.StatusGone, "Conversation has expired")

	// Execution errors
	CodeNodeExecutionFailed = ErrRegistry.Register("NODE_EXECUTION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Node execution failed")
	CodeExecutionTimeout    = ErrRegistry.Register("EXECUTION_TIMEOUT", errx.TypeInternal, http.StatusRequestTimeout, "Node execution timeout")
	CodeHopLimitExceeded    = ErrRegistry.Register("HOP_LIMIT_EXCEEDED", errx.TypeInternal, http.StatusInternalServerError, "Node hop limit exceeded for a single turn")

	// Rule errors
	CodeRuleNotFound       = ErrRegistry.Register("RULE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Routing rule not found")
	CodeBypassRuleNotFound = ErrRegistry.Register("BYPASS_RULE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Bypass rule not found")
)

// Error constructor functions
func ErrWorkflowNotFound() *errx.Error {
	return ErrRegistry.New(CodeWorkflowNotFound)
}

func ErrWorkflowAlreadyExists() *errx.Error {
	return ErrRegistry.New(CodeWorkflowAlreadyExists)
}

func ErrInvalidWorkflowConfig() *errx.Error {
	return ErrRegistry.New(CodeInvalidWorkflowConfig)
}

func ErrWorkflowInactive() *errx.Error {
	return ErrRegistry.New(CodeWorkflowInactive)
}

func ErrPublishRejected() *errx.Error {
	return ErrRegistry.New(CodePublishRejected)
}

func ErrNodeNotFound() *errx.Error {
	return ErrRegistry.New(CodeNodeNotFound)
}

func ErrBehaviorNotFound() *errx.Error {
	return ErrRegistry.New(CodeBehaviorNotFound)
}

func ErrInvalidCondition() *errx.Error {
	return ErrRegistry.New(CodeInvalidCondition)
}

func ErrConversationNotFound() *errx.Error {
	return ErrRegistry.New(CodeConversationNotFound)
}

func ErrConversationLocked() *errx.Error {
	return ErrRegistry.New(CodeConversationLocked)
}

func ErrConversationExpired() *errx.Error {
	return ErrRegistry.New(CodeConversationExpired)
}

func ErrNodeExecutionFailed() *errx.Error {
	return ErrRegistry.New(CodeNodeExecutionFailed)
}

func ErrExecutionTimeout() *errx.Error {
	return ErrRegistry.New(CodeExecutionTimeout)
}

func ErrHopLimitExceeded() *errx.Error {
	return ErrRegistry.New(CodeHopLimitExceeded)
}

func ErrRuleNotFound() *errx.Error {
	return ErrRegistry.New(CodeRuleNotFound)
}

func ErrBypassRuleNotFound() *errx.Error {
	return ErrRegistry.New(CodeBypassRuleNotFound)
}
