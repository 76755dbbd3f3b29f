package engine

import (
	"testing"
	"time"

	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildWorkflow(nodes []NodeInstance, transitions []Transition) *WorkflowDefinition {
	return &WorkflowDefinition{
		ID:          kernel.GenerateWorkflowID(),
		TenantID:    "tenant-1",
		Key:         "main",
		Version:     1,
		Name:        "Main",
		Nodes:       nodes,
		Transitions: transitions,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func node(id, key string, entry bool) NodeInstance {
	return NodeInstance{
		ID:                kernel.NodeInstanceID(id),
		NodeDefinitionKey: "message",
		InstanceKey:       key,
		IsEntryPoint:      entry,
	}
}

func transition(source, target string, priority int) Transition {
	return Transition{
		ID:                   kernel.GenerateTransitionID(),
		SourceNodeInstanceID: kernel.NodeInstanceID(source),
		TargetNodeInstanceID: kernel.NodeInstanceID(target),
		Priority:             priority,
	}
}

func issueCodes(issues []ValidationIssue) []string {
	codes := make([]string, 0, len(issues))
	for _, issue := range issues {
		codes = append(codes, issue.Code)
	}
	return codes
}

func TestValidateForPublishValid(t *testing.T) {
	wf := buildWorkflow(
		[]NodeInstance{node("a", "welcome", true), node("b", "goodbye", false)},
		[]Transition{transition("a", "b", 0)},
	)

	report := ValidateForPublish(wf)
	assert.False(t, report.HasErrors())
	assert.Empty(t, report.Warnings)
}

func TestValidateForPublishEntryNodes(t *testing.T) {
	// sin entrada
	wf := buildWorkflow([]NodeInstance{node("a", "welcome", false)}, nil)
	report := ValidateForPublish(wf)
	require.True(t, report.HasErrors())
	assert.Contains(t, issueCodes(report.Errors), "NO_ENTRY_NODE")

	// dos entradas
	wf = buildWorkflow(
		[]NodeInstance{node("a", "welcome", true), node("b", "other", true)},
		[]Transition{transition("a", "b", 0)},
	)
	report = ValidateForPublish(wf)
	require.True(t, report.HasErrors())
	assert.Contains(t, issueCodes(report.Errors), "MULTIPLE_ENTRY_NODES")
}

func TestValidateForPublishDanglingTransition(t *testing.T) {
	wf := buildWorkflow(
		[]NodeInstance{node("a", "welcome", true)},
		[]Transition{transition("a", "ghost", 0)},
	)

	report := ValidateForPublish(wf)
	require.True(t, report.HasErrors())
	assert.Contains(t, issueCodes(report.Errors), "DANGLING_TRANSITION")
}

func TestValidateForPublishDuplicateInstanceKey(t *testing.T) {
	wf := buildWorkflow(
		[]NodeInstance{node("a", "welcome", true), node("b", "welcome", false)},
		[]Transition{transition("a", "b", 0)},
	)

	report := ValidateForPublish(wf)
	require.True(t, report.HasErrors())
	assert.Contains(t, issueCodes(report.Errors), "DUPLICATE_INSTANCE_KEY")
}

func TestValidateForPublishMultipleDefaults(t *testing.T) {
	d1 := transition("a", "b", 0)
	d1.IsDefault = true
	d2 := transition("a", "b", 1)
	d2.IsDefault = true

	wf := buildWorkflow(
		[]NodeInstance{node("a", "welcome", true), node("b", "goodbye", false)},
		[]Transition{d1, d2},
	)

	report := ValidateForPublish(wf)
	require.True(t, report.HasErrors())
	assert.Contains(t, issueCodes(report.Errors), "MULTIPLE_DEFAULTS")
}

func TestValidateForPublishAmbiguousPriority(t *testing.T) {
	// dos incondicionales con la misma prioridad: ambiguo
	wf := buildWorkflow(
		[]NodeInstance{node("a", "welcome", true), node("b", "x", false), node("c", "y", false)},
		[]Transition{transition("a", "b", 0), transition("a", "c", 0)},
	)
	report := ValidateForPublish(wf)
	require.True(t, report.HasErrors())
	assert.Contains(t, issueCodes(report.Errors), "AMBIGUOUS_PRIORITY")

	// misma prioridad pero solo una incondicional: permitido
	conditional := transition("a", "b", 0)
	conditional.Condition = FieldEquals("intent", "pago")
	wf = buildWorkflow(
		[]NodeInstance{node("a", "welcome", true), node("b", "x", false), node("c", "y", false)},
		[]Transition{conditional, transition("a", "c", 0)},
	)
	report = ValidateForPublish(wf)
	assert.False(t, report.HasErrors())
}

func TestValidateForPublishInvalidCondition(t *testing.T) {
	bad := transition("a", "b", 0)
	bad.Condition = &Condition{Kind: ConditionCompare, Op: "like", Field: "x"}

	wf := buildWorkflow(
		[]NodeInstance{node("a", "welcome", true), node("b", "goodbye", false)},
		[]Transition{bad},
	)

	report := ValidateForPublish(wf)
	require.True(t, report.HasErrors())
	assert.Contains(t, issueCodes(report.Errors), "INVALID_CONDITION")
}

// Nodos inalcanzables generan warning, no rechazan la publicación.
func TestValidateForPublishUnreachableIsWarning(t *testing.T) {
	wf := buildWorkflow(
		[]NodeInstance{node("a", "welcome", true), node("b", "next", false), node("orphan", "orphan", false)},
		[]Transition{transition("a", "b", 0)},
	)

	report := ValidateForPublish(wf)
	assert.False(t, report.HasErrors())
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "UNREACHABLE_NODE", report.Warnings[0].Code)
	assert.Equal(t, "orphan", report.Warnings[0].NodeID)
}

// Los ciclos son válidos: un loop de reintento no es un error.
func TestValidateForPublishCyclesAllowed(t *testing.T) {
	back := transition("b", "a", 0)
	wf := buildWorkflow(
		[]NodeInstance{node("a", "ask", true), node("b", "check", false)},
		[]Transition{transition("a", "b", 0), back},
	)

	report := ValidateForPublish(wf)
	assert.False(t, report.HasErrors())
	assert.Empty(t, report.Warnings)
}
