package graphexec

import (
	"context"
	"errors"
	"testing"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Doubles
// ============================================================================

type scriptedBehavior struct {
	key  string
	exec func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error)
}

func (b *scriptedBehavior) Definition() engine.NodeDefinition {
	return engine.NodeDefinition{Key: b.key, BehaviorRef: b.key}
}

func (b *scriptedBehavior) Execute(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
	return b.exec(ctx, in)
}

func (b *scriptedBehavior) ValidateConfig(config map[string]any) error { return nil }

type scriptedCatalog struct {
	behaviors map[string]engine.NodeBehavior
}

func newScriptedCatalog() *scriptedCatalog {
	return &scriptedCatalog{behaviors: make(map[string]engine.NodeBehavior)}
}

func (c *scriptedCatalog) Register(b engine.NodeBehavior) {
	c.behaviors[b.Definition().Key] = b
}

func (c *scriptedCatalog) Resolve(key string) (engine.NodeBehavior, error) {
	b, ok := c.behaviors[key]
	if !ok {
		return nil, errors.New("unknown node type " + key)
	}
	return b, nil
}

func (c *scriptedCatalog) Definitions() []engine.NodeDefinition {
	out := make([]engine.NodeDefinition, 0, len(c.behaviors))
	for _, b := range c.behaviors {
		out = append(out, b.Definition())
	}
	return out
}

func (c *scriptedCatalog) script(key string, exec func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error)) {
	c.Register(&scriptedBehavior{key: key, exec: exec})
}

// respond es el comportamiento más simple: responde un texto y espera entrada
func respond(text string) func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
	return func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
		return &engine.ExecOutput{Response: &engine.Response{Text: text}}, nil
	}
}

func respondAndContinue(text string) func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
	return func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
		return &engine.ExecOutput{Response: &engine.Response{Text: text}, Continue: true}, nil
	}
}

// ============================================================================
// Builders
// ============================================================================

func testNode(id, defKey string, entry bool) engine.NodeInstance {
	return engine.NodeInstance{
		ID:                kernel.NodeInstanceID(id),
		WorkflowID:        "wf-1",
		NodeDefinitionKey: defKey,
		InstanceKey:       id,
		IsEntryPoint:      entry,
	}
}

func testTransition(src, dst string, cond *engine.Condition, priority int, isDefault bool) engine.Transition {
	return engine.Transition{
		ID:                   kernel.TransitionID(src + "->" + dst),
		WorkflowID:           "wf-1",
		SourceNodeInstanceID: kernel.NodeInstanceID(src),
		TargetNodeInstanceID: kernel.NodeInstanceID(dst),
		Condition:            cond,
		Priority:             priority,
		IsDefault:            isDefault,
	}
}

func testWorkflow(nodes []engine.NodeInstance, transitions []engine.Transition) *engine.WorkflowDefinition {
	return &engine.WorkflowDefinition{
		ID:          "wf-1",
		TenantID:    "tenant-1",
		Key:         "atencion",
		Version:     3,
		Nodes:       nodes,
		Transitions: transitions,
	}
}

func testState() *engine.ConversationState {
	return &engine.ConversationState{
		ID:        "conv-1",
		TenantID:  "tenant-1",
		ChannelID: "ch-1",
		SenderID:  "51999888777",
		Status:    engine.ConversationStatusActive,
		Fields:    make(map[string]any),
	}
}

func textMessage(text string) engine.Message {
	return engine.Message{
		ID:       "msg-1",
		TenantID: "tenant-1",
		Content:  engine.MessageContent{Type: engine.MessageTypeText, Text: text},
	}
}

func fieldEquals(field string, value any) *engine.Condition {
	return &engine.Condition{Kind: engine.ConditionCompare, Field: field, Op: engine.OpEqual, Value: value}
}

// ============================================================================
// Tests
// ============================================================================

func TestExecuteTurnSingleNodeAdvances(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("message", respond("Hola, ¿en qué te ayudo?"))

	wf := testWorkflow(
		[]engine.NodeInstance{testNode("greet", "message", true), testNode("menu", "message", false)},
		[]engine.Transition{testTransition("greet", "menu", nil, 0, true)},
	)
	state := testState()

	executor := NewExecutor(catalog, Config{})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, nil)
	require.NoError(t, err)

	require.NotNil(t, result.Response)
	assert.Equal(t, "Hola, ¿en qué te ayudo?", result.Response.Text)
	// el nodo no pide Continue: se posiciona en el siguiente y termina el turno
	assert.Equal(t, kernel.NodeInstanceID("menu"), state.CurrentNodeInstanceID)
	assert.Equal(t, engine.ConversationStatusActive, result.Status)
	require.Len(t, result.Trace, 1)
	assert.True(t, result.Trace[0].Success)

	last, ok := state.GetField(engine.FieldLastResponse)
	require.True(t, ok)
	assert.Equal(t, "Hola, ¿en qué te ayudo?", last)
}

func TestExecuteTurnMultiHopLastResponseWins(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("first", respondAndContinue("uno"))
	catalog.script("silent", func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
		return &engine.ExecOutput{Continue: true}, nil
	})
	catalog.script("last", respond("tres"))

	wf := testWorkflow(
		[]engine.NodeInstance{
			testNode("a", "first", true),
			testNode("b", "silent", false),
			testNode("c", "last", false),
		},
		[]engine.Transition{
			testTransition("a", "b", nil, 0, true),
			testTransition("b", "c", nil, 0, true),
		},
	)
	state := testState()

	executor := NewExecutor(catalog, Config{})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, nil)
	require.NoError(t, err)

	// un nodo intermedio sin respuesta no borra la anterior; la última gana
	assert.Equal(t, "tres", result.Response.Text)
	assert.Len(t, result.Trace, 3)
	assert.Equal(t, kernel.NodeInstanceID("c"), state.CurrentNodeInstanceID)
}

func TestExecuteTurnConditionalTransition(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("message", respond("¿Qué necesitas?"))

	wf := testWorkflow(
		[]engine.NodeInstance{
			testNode("menu", "message", true),
			testNode("pagos", "message", false),
			testNode("otros", "message", false),
		},
		[]engine.Transition{
			testTransition("menu", "otros", nil, 99, true),
			testTransition("menu", "pagos", fieldEquals("intent", "pagos"), 0, false),
		},
	)

	executor := NewExecutor(catalog, Config{})

	state := testState()
	intent := &engine.IntentResult{Intent: "pagos", Confidence: 0.9}
	_, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("quiero pagar"), intent, nil)
	require.NoError(t, err)
	assert.Equal(t, kernel.NodeInstanceID("pagos"), state.CurrentNodeInstanceID)

	state = testState()
	_, err = executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, kernel.NodeInstanceID("otros"), state.CurrentNodeInstanceID)
}

func TestExecuteTurnConditionalWinsPriorityTie(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("message", respond("¿Qué necesitas?"))

	// la incondicional va primera en el slice y comparte prioridad con la
	// condicional: si la condición matchea, la condicional manda igual
	wf := testWorkflow(
		[]engine.NodeInstance{
			testNode("menu", "message", true),
			testNode("pagos", "message", false),
			testNode("otros", "message", false),
		},
		[]engine.Transition{
			testTransition("menu", "otros", nil, 5, false),
			testTransition("menu", "pagos", fieldEquals("intent", "pagos"), 5, false),
		},
	)

	executor := NewExecutor(catalog, Config{})

	state := testState()
	intent := &engine.IntentResult{Intent: "pagos", Confidence: 0.9}
	_, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("quiero pagar"), intent, nil)
	require.NoError(t, err)
	assert.Equal(t, kernel.NodeInstanceID("pagos"), state.CurrentNodeInstanceID)

	state = testState()
	_, err = executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, kernel.NodeInstanceID("otros"), state.CurrentNodeInstanceID)
}

func TestExecuteTurnNoMatchStaysAndReemits(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("collect", func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
		return &engine.ExecOutput{}, nil
	})

	wf := testWorkflow(
		[]engine.NodeInstance{testNode("doc", "collect", true), testNode("next", "collect", false)},
		[]engine.Transition{
			testTransition("doc", "next", fieldEquals("collected_identifier", true), 0, false),
		},
	)
	state := testState()
	state.CurrentNodeInstanceID = "doc"
	state.SetField(engine.FieldLastResponse, "¿Cuál es tu documento?")

	executor := NewExecutor(catalog, Config{})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("no sé"), nil, nil)
	require.NoError(t, err)

	// sin transición que matchee el turno es no-op: mismo nodo, misma pregunta
	assert.Equal(t, kernel.NodeInstanceID("doc"), state.CurrentNodeInstanceID)
	assert.Equal(t, "¿Cuál es tu documento?", result.Response.Text)
}

func TestExecuteTurnHopLimit(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("loop", respondAndContinue("girando"))

	wf := testWorkflow(
		[]engine.NodeInstance{testNode("spin", "loop", true)},
		[]engine.Transition{testTransition("spin", "spin", nil, 0, true)},
	)
	state := testState()

	executor := NewExecutor(catalog, Config{MaxHopsPerTurn: 5})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, nil)
	require.NoError(t, err)

	assert.Len(t, result.Trace, 5)
	require.NotNil(t, result.Response)
	assert.Equal(t, "girando", result.Response.Text)
}

func TestExecuteTurnNodeFailureRetries(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("flaky", func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
		return nil, errors.New("upstream no responde")
	})

	wf := testWorkflow([]engine.NodeInstance{testNode("flaky", "flaky", true)}, nil)
	state := testState()

	executor := NewExecutor(catalog, Config{ErrorThreshold: 3, RetryText: "Inténtalo de nuevo"})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, nil)
	require.NoError(t, err)

	// el fallo nunca llega al canal como error de transporte
	assert.Equal(t, "Inténtalo de nuevo", result.Response.Text)
	assert.Equal(t, 1, state.ErrorCount)
	assert.Equal(t, kernel.NodeInstanceID("flaky"), state.CurrentNodeInstanceID)
	assert.False(t, result.Escalated)
	require.Len(t, result.Trace, 1)
	assert.False(t, result.Trace[0].Success)
	assert.Contains(t, result.Trace[0].Error, "upstream no responde")
}

func TestExecuteTurnNodeFailureOnErrorTarget(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("flaky", func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
		return nil, errors.New("boom")
	})
	catalog.script("message", respond("aclaremos"))

	flaky := testNode("flaky", "flaky", true)
	flaky.OnErrorTarget = "clarify"
	wf := testWorkflow([]engine.NodeInstance{flaky, testNode("clarify", "message", false)}, nil)
	state := testState()

	executor := NewExecutor(catalog, Config{ErrorThreshold: 3})
	_, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, kernel.NodeInstanceID("clarify"), state.CurrentNodeInstanceID)
	assert.Equal(t, 1, state.ErrorCount)
}

func TestExecuteTurnErrorThresholdForcesFallbackNode(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("flaky", func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
		return nil, errors.New("boom")
	})
	catalog.script("human_handoff", func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
		escalated := engine.ConversationStatusEscalated
		return &engine.ExecOutput{
			Delta:    engine.StateDelta{Status: &escalated},
			Response: &engine.Response{Text: "Te comunico con un asesor"},
		}, nil
	})

	wf := testWorkflow(
		[]engine.NodeInstance{testNode("flaky", "flaky", true), testNode("handoff", "human_handoff", false)},
		nil,
	)
	state := testState()
	state.ErrorCount = 2

	executor := NewExecutor(catalog, Config{ErrorThreshold: 3})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, nil)
	require.NoError(t, err)

	assert.True(t, result.Escalated)
	assert.Equal(t, "Te comunico con un asesor", result.Response.Text)
	assert.Equal(t, engine.ConversationStatusEscalated, result.Status)
	assert.Equal(t, 0, state.ErrorCount)
	assert.Equal(t, kernel.NodeInstanceID("handoff"), state.CurrentNodeInstanceID)
}

func TestExecuteTurnErrorThresholdWithoutFallbackEscalates(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("flaky", func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
		return nil, errors.New("boom")
	})

	wf := testWorkflow([]engine.NodeInstance{testNode("flaky", "flaky", true)}, nil)
	state := testState()
	state.ErrorCount = 2

	executor := NewExecutor(catalog, Config{ErrorThreshold: 3, HandoffText: "Te derivo con el equipo"})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, nil)
	require.NoError(t, err)

	assert.True(t, result.Escalated)
	assert.Equal(t, engine.ConversationStatusEscalated, state.Status)
	assert.Equal(t, "Te derivo con el equipo", result.Response.Text)
	assert.Equal(t, 0, state.ErrorCount)
}

func TestExecuteTurnRoutingRuleHandoff(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("message", respond("entendido"))

	wf := testWorkflow([]engine.NodeInstance{testNode("menu", "message", true)}, nil)
	state := testState()

	rules := []*engine.RoutingRule{{
		ID:        "r1",
		TenantID:  "tenant-1",
		RuleType:  engine.RuleTypeHumanHandoff,
		Condition: fieldEquals("intent", "humano"),
		Action:    engine.RuleAction{Type: engine.RuleActionHandoff, TargetAgent: "soporte"},
		IsActive:  true,
	}}

	executor := NewExecutor(catalog, Config{})
	intent := &engine.IntentResult{Intent: "humano", Confidence: 0.95}
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("quiero hablar con alguien"), intent, rules)
	require.NoError(t, err)

	assert.True(t, result.Escalated)
	assert.Equal(t, "soporte", result.Agent)
	assert.Equal(t, engine.ConversationStatusEscalated, state.Status)
	// la regla no pisa la respuesta que el nodo ya emitió
	assert.Equal(t, "entendido", result.Response.Text)
}

func TestExecuteTurnRoutingRuleGoToNode(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("auto", respondAndContinue("procesando"))
	catalog.script("message", respond("estás en pagos"))

	wf := testWorkflow(
		[]engine.NodeInstance{
			testNode("menu", "auto", true),
			testNode("pagos", "message", false),
			testNode("otros", "message", false),
		},
		[]engine.Transition{testTransition("menu", "otros", nil, 0, true)},
	)
	state := testState()

	rules := []*engine.RoutingRule{{
		ID:       "r-jump",
		TenantID: "tenant-1",
		RuleType: engine.RuleTypeJump,
		Action:   engine.RuleAction{Type: engine.RuleActionGoToNode, TargetNodeKey: "pagos"},
		IsActive: true,
	}}

	executor := NewExecutor(catalog, Config{})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, rules)
	require.NoError(t, err)

	// la regla reemplaza la transición default del grafo
	assert.Equal(t, kernel.NodeInstanceID("pagos"), state.CurrentNodeInstanceID)
	assert.Equal(t, "estás en pagos", result.Response.Text)
	assert.Len(t, result.Trace, 2)
}

func TestExecuteTurnRoutingRuleGoToNodeWithoutContinue(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("message", respond("ok"))

	wf := testWorkflow(
		[]engine.NodeInstance{testNode("menu", "message", true), testNode("pagos", "message", false)},
		nil,
	)
	state := testState()

	rules := []*engine.RoutingRule{{
		ID:       "r-jump",
		TenantID: "tenant-1",
		RuleType: engine.RuleTypeJump,
		Action:   engine.RuleAction{Type: engine.RuleActionGoToNode, TargetNodeKey: "pagos"},
		IsActive: true,
	}}

	executor := NewExecutor(catalog, Config{})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, rules)
	require.NoError(t, err)

	// el nodo espera entrada: queda posicionado, el destino corre recién el próximo turno
	assert.Equal(t, kernel.NodeInstanceID("pagos"), state.CurrentNodeInstanceID)
	assert.Len(t, result.Trace, 1)
}

func TestExecuteTurnUnknownRuleTargetIgnored(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("message", respond("ok"))

	wf := testWorkflow([]engine.NodeInstance{testNode("menu", "message", true)}, nil)
	state := testState()

	rules := []*engine.RoutingRule{{
		ID:       "r-bad",
		TenantID: "tenant-1",
		RuleType: engine.RuleTypeJump,
		Action:   engine.RuleAction{Type: engine.RuleActionGoToNode, TargetNodeKey: "no-existe"},
		IsActive: true,
	}}

	executor := NewExecutor(catalog, Config{})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, rules)
	require.NoError(t, err)

	assert.False(t, result.Escalated)
	assert.Equal(t, kernel.NodeInstanceID("menu"), state.CurrentNodeInstanceID)
	assert.Equal(t, "ok", result.Response.Text)
}

func TestExecuteTurnStaleNodeRepairsToEntry(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("message", respond("bienvenido de nuevo"))

	wf := testWorkflow([]engine.NodeInstance{testNode("greet", "message", true)}, nil)
	state := testState()
	state.CurrentNodeInstanceID = "nodo-de-version-vieja"
	state.WorkflowVersion = 1

	executor := NewExecutor(catalog, Config{})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, kernel.NodeInstanceID("greet"), state.CurrentNodeInstanceID)
	assert.Equal(t, wf.ID, state.WorkflowID)
	assert.Equal(t, wf.Version, state.WorkflowVersion)
	assert.Equal(t, "bienvenido de nuevo", result.Response.Text)
}

func TestExecuteTurnCompleteStopsRouting(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("end", func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
		complete := engine.ConversationStatusComplete
		return &engine.ExecOutput{
			Delta:    engine.StateDelta{Status: &complete},
			Response: &engine.Response{Text: "¡Gracias por escribirnos!"},
			Continue: true,
		}, nil
	})
	catalog.script("message", respond("no debería correr"))

	wf := testWorkflow(
		[]engine.NodeInstance{testNode("bye", "end", true), testNode("menu", "message", false)},
		[]engine.Transition{testTransition("bye", "menu", nil, 0, true)},
	)
	state := testState()
	state.ErrorCount = 2

	executor := NewExecutor(catalog, Config{})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("gracias"), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, engine.ConversationStatusComplete, result.Status)
	assert.Equal(t, "¡Gracias por escribirnos!", result.Response.Text)
	assert.Equal(t, kernel.NodeInstanceID("bye"), state.CurrentNodeInstanceID)
	// completar el flujo limpia el presupuesto de errores
	assert.Equal(t, 0, state.ErrorCount)
	assert.Len(t, result.Trace, 1)
}

func TestExecuteTurnNoResponseLastResort(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("silent", func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
		return &engine.ExecOutput{}, nil
	})

	wf := testWorkflow([]engine.NodeInstance{testNode("mute", "silent", true)}, nil)
	state := testState()

	executor := NewExecutor(catalog, Config{NoResponseText: "No te entendí"})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("..."), nil, nil)
	require.NoError(t, err)

	require.NotNil(t, result.Response)
	assert.Equal(t, "No te entendí", result.Response.Text)
}

func TestExecuteTurnUnknownBehaviorCountsAsFailure(t *testing.T) {
	catalog := newScriptedCatalog()

	wf := testWorkflow([]engine.NodeInstance{testNode("ghost", "no-registrado", true)}, nil)
	state := testState()

	executor := NewExecutor(catalog, Config{ErrorThreshold: 3})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, state.ErrorCount)
	require.Len(t, result.Trace, 1)
	assert.False(t, result.Trace[0].Success)
}

func TestExecuteTurnNilOutputCountsAsFailure(t *testing.T) {
	catalog := newScriptedCatalog()
	catalog.script("buggy", func(ctx context.Context, in engine.ExecInput) (*engine.ExecOutput, error) {
		return nil, nil
	})

	wf := testWorkflow([]engine.NodeInstance{testNode("buggy", "buggy", true)}, nil)
	state := testState()

	executor := NewExecutor(catalog, Config{ErrorThreshold: 3, RetryText: "Inténtalo de nuevo"})
	result, err := executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "Inténtalo de nuevo", result.Response.Text)
	assert.Equal(t, 1, state.ErrorCount)
	require.Len(t, result.Trace, 1)
	assert.False(t, result.Trace[0].Success)
	assert.Contains(t, result.Trace[0].Error, "no output")
}

func TestExecuteTurnWorkflowWithoutEntryFails(t *testing.T) {
	executor := NewExecutor(newScriptedCatalog(), Config{})
	state := testState()

	_, err := executor.ExecuteTurn(context.Background(), nil, state, textMessage("hola"), nil, nil)
	require.Error(t, err)

	wf := testWorkflow([]engine.NodeInstance{testNode("a", "message", false)}, nil)
	_, err = executor.ExecuteTurn(context.Background(), wf, state, textMessage("hola"), nil, nil)
	require.Error(t, err)
}
