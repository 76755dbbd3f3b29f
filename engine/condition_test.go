package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionCompare(t *testing.T) {
	fields := map[string]any{
		"intent":                 "pago",
		"pending_payment_amount": 150.50,
		"error_count":            2,
	}

	tests := []struct {
		name      string
		condition *Condition
		want      bool
	}{
		{"eq match", FieldEquals("intent", "pago"), true},
		{"eq no match", FieldEquals("intent", "consulta"), false},
		{"neq", Compare("intent", OpNotEqual, "consulta"), true},
		{"gt numeric", Compare("pending_payment_amount", OpGreater, 100), true},
		{"gt numeric false", Compare("pending_payment_amount", OpGreater, 200), false},
		{"gte boundary", Compare("error_count", OpGreaterEq, 2), true},
		{"lt", Compare("error_count", OpLess, 3), true},
		{"lte boundary", Compare("error_count", OpLessEq, 2), true},
		{"contains", Compare("intent", OpContains, "ag"), true},
		{"starts_with", Compare("intent", OpStartsWith, "pa"), true},
		{"starts_with false", Compare("intent", OpStartsWith, "go"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.condition.Evaluate(fields))
		})
	}
}

// Un campo ausente hace falsa cualquier comparación, incluido neq.
func TestConditionAbsentField(t *testing.T) {
	fields := map[string]any{"present": "yes"}

	assert.False(t, FieldEquals("missing", "x").Evaluate(fields))
	assert.False(t, Compare("missing", OpNotEqual, "x").Evaluate(fields))
	assert.False(t, Compare("missing", OpGreater, 0).Evaluate(fields))
	assert.False(t, In("missing", "a", "b").Evaluate(fields))
	assert.False(t, Exists("missing").Evaluate(fields))

	// nil cuenta como ausente
	assert.False(t, Exists("nilfield").Evaluate(map[string]any{"nilfield": nil}))

	// NOT sí puede observar la ausencia
	assert.True(t, Not(*Exists("missing")).Evaluate(fields))
}

func TestConditionMembershipEval(t *testing.T) {
	fields := map[string]any{"intent": "cita", "count": 3}

	assert.True(t, In("intent", "pago", "cita").Evaluate(fields))
	assert.False(t, In("intent", "pago", "consulta").Evaluate(fields))
	// comparación numérica laxa: 3 matchea 3.0
	assert.True(t, In("count", 3.0).Evaluate(fields))
}

func TestConditionComposite(t *testing.T) {
	fields := map[string]any{
		"customer_identified": true,
		"intent":              "pago",
	}

	cond := And(
		*FieldEquals("customer_identified", true),
		*Or(
			*FieldEquals("intent", "pago"),
			*FieldEquals("intent", "consulta_deuda"),
		),
	)
	assert.True(t, cond.Evaluate(fields))

	cond = And(
		*FieldEquals("customer_identified", true),
		*FieldEquals("intent", "cita"),
	)
	assert.False(t, cond.Evaluate(fields))

	// AND vacío no matchea
	empty := &Condition{Kind: ConditionAnd}
	assert.False(t, empty.Evaluate(fields))
}

func TestConditionNestedFieldPath(t *testing.T) {
	fields := map[string]any{
		"entities": map[string]any{
			"specialty": "cardiologia",
		},
	}

	assert.True(t, FieldEquals("entities.specialty", "cardiologia").Evaluate(fields))
	assert.False(t, FieldEquals("entities.other", "x").Evaluate(fields))

	// la clave literal aplanada gana sobre el descenso
	flat := map[string]any{"entities.specialty": "dermatologia"}
	assert.True(t, FieldEquals("entities.specialty", "dermatologia").Evaluate(flat))
}

// Evaluate es una función pura: evaluar dos veces con los mismos campos
// da el mismo resultado y no muta los campos.
func TestConditionIdempotent(t *testing.T) {
	fields := map[string]any{"intent": "pago", "n": 1}
	cond := And(*FieldEquals("intent", "pago"), *Compare("n", OpLessEq, 5))

	first := cond.Evaluate(fields)
	second := cond.Evaluate(fields)
	assert.Equal(t, first, second)
	assert.Equal(t, map[string]any{"intent": "pago", "n": 1}, fields)
}

func TestConditionNilIsTrue(t *testing.T) {
	var cond *Condition
	assert.True(t, cond.Evaluate(map[string]any{}))
	assert.NoError(t, cond.Validate())
}

func TestConditionValidate(t *testing.T) {
	tests := []struct {
		name      string
		condition *Condition
		wantErr   bool
	}{
		{"valid compare", FieldEquals("a", 1), false},
		{"compare without field", &Condition{Kind: ConditionCompare, Op: OpEqual}, true},
		{"compare bad op", &Condition{Kind: ConditionCompare, Field: "a", Op: "like"}, true},
		{"membership empty values", &Condition{Kind: ConditionMembership, Field: "a"}, true},
		{"valid membership", In("a", 1, 2), false},
		{"and without children", &Condition{Kind: ConditionAnd}, true},
		{"not without child", &Condition{Kind: ConditionNot}, true},
		{"unknown kind", &Condition{Kind: "XOR"}, true},
		{"nested invalid", And(*FieldEquals("a", 1), Condition{Kind: ConditionCompare, Op: OpEqual}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.condition.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// Las condiciones sobreviven el round-trip por JSONB sin cambiar semántica.
func TestConditionJSONRoundTrip(t *testing.T) {
	cond := And(
		*FieldEquals("customer_identified", true),
		*Not(*Exists("pending_flow")),
	)

	raw, err := json.Marshal(cond)
	require.NoError(t, err)

	var decoded Condition
	require.NoError(t, json.Unmarshal(raw, &decoded))

	fields := map[string]any{"customer_identified": true}
	assert.Equal(t, cond.Evaluate(fields), decoded.Evaluate(fields))
}
