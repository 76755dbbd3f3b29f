package routing

import (
	"sort"

	"github.com/Abraxas-365/converso/engine"
)

// Engine evalúa las reglas de ruteo del tenant en orden de prioridad
// ascendente. La primera regla activa cuya condición matchea gana y su
// acción reemplaza por completo la selección de transiciones del grafo en
// ese turno. Las reglas son ortogonales al grafo a propósito: las políticas
// transversales (handoff por especialidad, escalación por errores repetidos)
// no requieren editar las transiciones de cada nodo.
type Engine struct {
	rules []*engine.RoutingRule
}

// NewEngine crea un motor de reglas. Las reglas se ordenan una sola vez.
func NewEngine(rules []*engine.RoutingRule) *Engine {
	sorted := make([]*engine.RoutingRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &Engine{rules: sorted}
}

// Evaluate retorna la primera regla activa que matchea, o nil. Puro: no
// muta campos ni reglas, resultado determinista para el mismo estado.
func (e *Engine) Evaluate(fields map[string]any) *engine.RoutingRule {
	for _, rule := range e.rules {
		if rule.Matches(fields) {
			return rule
		}
	}
	return nil
}

// Rules retorna las reglas en el orden de evaluación
func (e *Engine) Rules() []*engine.RoutingRule {
	return e.rules
}
