package routing

import (
	"testing"
	"time"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rule(id string, priority int, active bool, cond *engine.Condition) *engine.RoutingRule {
	return &engine.RoutingRule{
		ID:        kernel.RuleID(id),
		TenantID:  "tenant-1",
		RuleType:  engine.RuleTypeJump,
		Condition: cond,
		Action: engine.RuleAction{
			Type:          engine.RuleActionGoToNode,
			TargetNodeKey: "target-" + id,
		},
		Priority:  priority,
		IsActive:  active,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestRuleEnginePriorityOrder(t *testing.T) {
	// ambas matchean; gana la de menor prioridad sin importar el orden de carga
	r1 := rule("low", 10, true, engine.FieldEquals("intent", "pago"))
	r2 := rule("high", 1, true, engine.FieldEquals("intent", "pago"))

	e := NewEngine([]*engine.RoutingRule{r1, r2})
	matched := e.Evaluate(map[string]any{"intent": "pago"})

	require.NotNil(t, matched)
	assert.Equal(t, kernel.RuleID("high"), matched.ID)
}

func TestRuleEngineInactiveSkipped(t *testing.T) {
	inactive := rule("inactive", 0, false, nil)
	active := rule("active", 5, true, nil)

	e := NewEngine([]*engine.RoutingRule{inactive, active})
	matched := e.Evaluate(map[string]any{})

	require.NotNil(t, matched)
	assert.Equal(t, kernel.RuleID("active"), matched.ID)
}

func TestRuleEngineNoMatch(t *testing.T) {
	r := rule("r", 0, true, engine.FieldEquals("intent", "pago"))

	e := NewEngine([]*engine.RoutingRule{r})
	assert.Nil(t, e.Evaluate(map[string]any{"intent": "cita"}))
	assert.Nil(t, e.Evaluate(map[string]any{}))
}

// Condición nula matchea siempre: regla catch-all.
func TestRuleEngineNilConditionMatchesAll(t *testing.T) {
	r := rule("catchall", 100, true, nil)

	e := NewEngine([]*engine.RoutingRule{r})
	matched := e.Evaluate(map[string]any{"whatever": true})
	require.NotNil(t, matched)
	assert.Equal(t, kernel.RuleID("catchall"), matched.ID)
}

// Evaluate es determinista y no muta las reglas ni los campos.
func TestRuleEngineDeterministic(t *testing.T) {
	r1 := rule("a", 1, true, engine.Compare("error_count", engine.OpGreaterEq, 3))
	r2 := rule("b", 2, true, nil)

	e := NewEngine([]*engine.RoutingRule{r1, r2})
	fields := map[string]any{"error_count": 3}

	first := e.Evaluate(fields)
	second := e.Evaluate(fields)
	require.NotNil(t, first)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, map[string]any{"error_count": 3}, fields)
}

func TestRuleEngineEmpty(t *testing.T) {
	e := NewEngine(nil)
	assert.Nil(t, e.Evaluate(map[string]any{"x": 1}))
	assert.Empty(t, e.Rules())
}
