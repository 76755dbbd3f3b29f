package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// ============================================================================
// Condition - árbol de expresión serializable para transiciones y reglas
// ============================================================================

// ConditionKind variante del nodo de condición
type ConditionKind string

const (
	ConditionCompare    ConditionKind = "COMPARE"
	ConditionMembership ConditionKind = "MEMBERSHIP"
	ConditionExists     ConditionKind = "EXISTS"
	ConditionAnd        ConditionKind = "AND"
	ConditionOr         ConditionKind = "OR"
	ConditionNot        ConditionKind = "NOT"
)

// CompareOp operador de comparación
type CompareOp string

const (
	OpEqual      CompareOp = "eq"
	OpNotEqual   CompareOp = "neq"
	OpGreater    CompareOp = "gt"
	OpGreaterEq  CompareOp = "gte"
	OpLess       CompareOp = "lt"
	OpLessEq     CompareOp = "lte"
	OpContains   CompareOp = "contains"
	OpStartsWith CompareOp = "starts_with"
)

// Condition es una expresión pequeña y serializable sobre campos del estado
// de conversación y entidades derivadas del mensaje. Un campo ausente evalúa
// a un valor "absent" que hace falsa cualquier comparación (incluido neq):
// una condición que referencia un campo no seteado nunca matchea, no falla.
type Condition struct {
	Kind       ConditionKind `json:"kind"`
	Field      string        `json:"field,omitempty"` // path con puntos: "entities.specialty"
	Op         CompareOp     `json:"op,omitempty"`
	Value      any           `json:"value,omitempty"`
	Values     []any         `json:"values,omitempty"`     // MEMBERSHIP
	Conditions []Condition   `json:"conditions,omitempty"` // AND / OR
	Condition  *Condition    `json:"condition,omitempty"`  // NOT
}

// Evaluate evalúa la condición contra los campos dados. Función pura: sin
// efectos, idempotente, segura de llamar en cualquier orden.
func (c *Condition) Evaluate(fields map[string]any) bool {
	if c == nil {
		return true
	}

	switch c.Kind {
	case ConditionCompare:
		value, ok := lookupField(fields, c.Field)
		if !ok {
			return false
		}
		return compare(value, c.Op, c.Value)

	case ConditionMembership:
		value, ok := lookupField(fields, c.Field)
		if !ok {
			return false
		}
		for _, candidate := range c.Values {
			if looseEqual(value, candidate) {
				return true
			}
		}
		return false

	case ConditionExists:
		_, ok := lookupField(fields, c.Field)
		return ok

	case ConditionAnd:
		for i := range c.Conditions {
			if !c.Conditions[i].Evaluate(fields) {
				return false
			}
		}
		return len(c.Conditions) > 0

	case ConditionOr:
		for i := range c.Conditions {
			if c.Conditions[i].Evaluate(fields) {
				return true
			}
		}
		return false

	case ConditionNot:
		if c.Condition == nil {
			return false
		}
		return !c.Condition.Evaluate(fields)

	default:
		return false
	}
}

// Validate verifica que el árbol de condición esté bien formado
func (c *Condition) Validate() error {
	if c == nil {
		return nil
	}

	switch c.Kind {
	case ConditionCompare:
		if c.Field == "" {
			return fmt.Errorf("compare condition requires a field")
		}
		switch c.Op {
		case OpEqual, OpNotEqual, OpGreater, OpGreaterEq, OpLess, OpLessEq, OpContains, OpStartsWith:
		default:
			return fmt.Errorf("unknown compare operator: %q", c.Op)
		}
	case ConditionMembership:
		if c.Field == "" {
			return fmt.Errorf("membership condition requires a field")
		}
		if len(c.Values) == 0 {
			return fmt.Errorf("membership condition requires values")
		}
	case ConditionExists:
		if c.Field == "" {
			return fmt.Errorf("exists condition requires a field")
		}
	case ConditionAnd, ConditionOr:
		if len(c.Conditions) == 0 {
			return fmt.Errorf("%s condition requires children", strings.ToLower(string(c.Kind)))
		}
		for i := range c.Conditions {
			if err := c.Conditions[i].Validate(); err != nil {
				return err
			}
		}
	case ConditionNot:
		if c.Condition == nil {
			return fmt.Errorf("not condition requires a child")
		}
		return c.Condition.Validate()
	default:
		return fmt.Errorf("unknown condition kind: %q", c.Kind)
	}

	return nil
}

// ============================================================================
// Constructores
// ============================================================================

// Compare construye una condición de comparación
func Compare(field string, op CompareOp, value any) *Condition {
	return &Condition{Kind: ConditionCompare, Field: field, Op: op, Value: value}
}

// FieldEquals construye una igualdad simple
func FieldEquals(field string, value any) *Condition {
	return Compare(field, OpEqual, value)
}

// In construye una condición de pertenencia
func In(field string, values ...any) *Condition {
	return &Condition{Kind: ConditionMembership, Field: field, Values: values}
}

// Exists construye una condición de presencia de campo
func Exists(field string) *Condition {
	return &Condition{Kind: ConditionExists, Field: field}
}

// And combina condiciones con conjunción
func And(conditions ...Condition) *Condition {
	return &Condition{Kind: ConditionAnd, Conditions: conditions}
}

// Or combina condiciones con disyunción
func Or(conditions ...Condition) *Condition {
	return &Condition{Kind: ConditionOr, Conditions: conditions}
}

// Not niega una condición
func Not(condition Condition) *Condition {
	return &Condition{Kind: ConditionNot, Condition: &condition}
}

// ============================================================================
// Helpers de evaluación
// ============================================================================

// lookupField resuelve un path con puntos dentro del mapa de campos.
// Prueba primero la clave literal (los campos de entidades se aplanan como
// "entities.x") y luego desciende por mapas anidados.
func lookupField(fields map[string]any, path string) (any, bool) {
	if fields == nil || path == "" {
		return nil, false
	}

	if val, ok := fields[path]; ok {
		return val, val != nil
	}

	parts := strings.Split(path, ".")
	current := any(fields)
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

func compare(actual any, op CompareOp, expected any) bool {
	switch op {
	case OpEqual:
		return looseEqual(actual, expected)
	case OpNotEqual:
		return !looseEqual(actual, expected)
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		a, aOk := toFloat64(actual)
		b, bOk := toFloat64(expected)
		if !aOk || !bOk {
			return false
		}
		switch op {
		case OpGreater:
			return a > b
		case OpGreaterEq:
			return a >= b
		case OpLess:
			return a < b
		default:
			return a <= b
		}
	case OpContains:
		return strings.Contains(asString(actual), asString(expected))
	case OpStartsWith:
		return strings.HasPrefix(asString(actual), asString(expected))
	default:
		return false
	}
}

// looseEqual compara numéricamente cuando ambos lados son numéricos y como
// strings en el resto (los valores llegan por JSON, los tipos no son estables)
func looseEqual(a, b any) bool {
	if aNum, aOk := toFloat64(a); aOk {
		if bNum, bOk := toFloat64(b); bOk {
			return aNum == bNum
		}
	}
	return asString(a) == asString(b)
}

func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
