package graphexec

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/engine/routing"
)

// Config parámetros del ejecutor
type Config struct {
	// ErrorThreshold fallos consecutivos que fuerzan el fallback
	ErrorThreshold int
	// MaxHopsPerTurn tope defensivo de saltos de nodo por mensaje entrante
	// (los loops de reintento son válidos, los infinitos no)
	MaxHopsPerTurn int
	// NodeTimeout timeout de la ejecución de un nodo; excederlo cuenta como
	// fallo de nodo, no como crash
	NodeTimeout time.Duration
	// FallbackNodeKey definition key del nodo destino de la escalación
	FallbackNodeKey string
	// RetryText respuesta emitida cuando un nodo falla y se reintenta
	RetryText string
	// HandoffText respuesta emitida cuando se escala sin nodo de fallback
	HandoffText string
	// NoResponseText respuesta de último recurso: el usuario siempre
	// recibe algo, nunca un turno sin respuesta
	NoResponseText string
}

func (c *Config) applyDefaults() {
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = 3
	}
	if c.MaxHopsPerTurn <= 0 {
		c.MaxHopsPerTurn = 20
	}
	if c.NodeTimeout <= 0 {
		c.NodeTimeout = 30 * time.Second
	}
	if c.FallbackNodeKey == "" {
		c.FallbackNodeKey = "human_handoff"
	}
	if c.RetryText == "" {
		c.RetryText = "Tuve un problema procesando tu mensaje, ¿puedes intentarlo de nuevo?"
	}
	if c.HandoffText == "" {
		c.HandoffText = "Te voy a conectar con una persona de nuestro equipo."
	}
	if c.NoResponseText == "" {
		c.NoResponseText = "Disculpa, no te entendí. ¿Puedes repetirlo?"
	}
}

// Executor implementación por defecto del GraphExecutor: interpreta el grafo
// publicado por turnos, un nodo a la vez, con ruteo de reglas sobre
// transiciones y política de retry/fallback por contador de errores.
type Executor struct {
	catalog engine.Catalog
	config  Config
}

var _ engine.GraphExecutor = (*Executor)(nil)

func NewExecutor(catalog engine.Catalog, config Config) *Executor {
	config.applyDefaults()
	return &Executor{catalog: catalog, config: config}
}

// ExecuteTurn procesa un mensaje entrante sobre el workflow activo. Muta el
// estado recibido (el llamador lo persiste) y garantiza una respuesta.
func (e *Executor) ExecuteTurn(
	ctx context.Context,
	wf *engine.WorkflowDefinition,
	state *engine.ConversationState,
	msg engine.Message,
	intent *engine.IntentResult,
	rules []*engine.RoutingRule,
) (*engine.TurnResult, error) {
	if wf == nil || wf.EntryNode() == nil {
		return nil, engine.ErrInvalidWorkflowConfig().WithDetail("reason", "workflow has no entry node")
	}

	ruleEngine := routing.NewEngine(rules)
	result := &engine.TurnResult{}

	node := e.resolveCurrentNode(wf, state)
	var response *engine.Response
	hops := 0

	for node != nil {
		hops++
		if hops > e.config.MaxHopsPerTurn {
			log.Printf("⚠️  Hop limit reached for conversation %s on node %s", state.ID, node.InstanceKey)
			break
		}

		out, trace := e.executeNode(ctx, node, state, msg, intent)
		result.Trace = append(result.Trace, trace)

		if !trace.Success {
			// Fallo de nodo: nunca llega al canal como error de transporte.
			// Retry-o-fallback según el presupuesto de errores; el target
			// on-error local consume el mismo presupuesto que la escalación
			// global.
			count := state.IncrementErrors()
			if count >= e.config.ErrorThreshold {
				state.ResetErrors()
				fallback := wf.FindNodeByDefinitionKey(e.config.FallbackNodeKey)
				if fallback != nil && fallback.ID != node.ID {
					log.Printf("🆘 Error threshold reached, forcing fallback node %s", fallback.InstanceKey)
					state.CurrentNodeInstanceID = fallback.ID
					node = fallback
					continue
				}
				state.MarkEscalated()
				result.Escalated = true
				response = &engine.Response{Text: e.config.HandoffText}
				break
			}

			if !node.OnErrorTarget.IsEmpty() && wf.GetNodeByID(node.OnErrorTarget) != nil {
				state.CurrentNodeInstanceID = node.OnErrorTarget
			}
			// sin on-error se queda en el nodo: el próximo turno reintenta
			response = &engine.Response{Text: e.config.RetryText}
			break
		}

		state.ApplyDelta(out.Delta)
		if out.Response != nil {
			response = out.Response
		}

		if state.Status == engine.ConversationStatusEscalated {
			result.Escalated = true
			if agent, ok := state.GetField("handoff_agent"); ok {
				result.Agent = fmt.Sprintf("%v", agent)
			}
			break
		}
		if state.Status == engine.ConversationStatusComplete {
			break
		}

		// Reglas de ruteo primero: un match reemplaza la selección de
		// transiciones del grafo en este turno
		fields := engine.EvalFields(state, &msg, intent)
		if rule := ruleEngine.Evaluate(fields); rule != nil {
			next, done := e.applyRule(wf, state, result, rule)
			if done {
				if result.Escalated && response == nil {
					response = &engine.Response{Text: e.config.HandoffText}
				}
				break
			}
			if next != nil && out.Continue {
				node = next
				continue
			}
			break
		}

		// Transiciones salientes en orden (priority asc, default al final):
		// se selecciona la primera que matchea, cero o una por evaluación
		selected := selectTransition(wf.TransitionsFrom(node.ID), fields)
		if selected == nil {
			// Sin match y sin default: turno no-op, se queda en el nodo y
			// se reemite su propia respuesta sin cambios
			break
		}

		state.CurrentNodeInstanceID = selected.TargetNodeInstanceID
		if !out.Continue {
			break
		}
		node = wf.GetNodeByID(selected.TargetNodeInstanceID)
	}

	result.Response = e.ensureResponse(state, response)
	result.Status = state.Status
	return result, nil
}

// resolveCurrentNode resuelve el nodo actual del estado; un id viejo tras
// una republicación se repara al nodo de entrada en vez de fallar
func (e *Executor) resolveCurrentNode(wf *engine.WorkflowDefinition, state *engine.ConversationState) *engine.NodeInstance {
	if !state.CurrentNodeInstanceID.IsEmpty() {
		if node := wf.GetNodeByID(state.CurrentNodeInstanceID); node != nil {
			return node
		}
		log.Printf("⚠️  Conversation %s points to a stale node, resetting to entry", state.ID)
	}
	entry := wf.EntryNode()
	state.CurrentNodeInstanceID = entry.ID
	state.WorkflowID = wf.ID
	state.WorkflowVersion = wf.Version
	return entry
}

func (e *Executor) executeNode(
	ctx context.Context,
	node *engine.NodeInstance,
	state *engine.ConversationState,
	msg engine.Message,
	intent *engine.IntentResult,
) (*engine.ExecOutput, engine.NodeTrace) {
	startTime := time.Now()
	trace := engine.NodeTrace{
		NodeInstanceID: node.ID,
		InstanceKey:    node.InstanceKey,
		Timestamp:      startTime,
	}

	behavior, err := e.catalog.Resolve(node.NodeDefinitionKey)
	if err != nil {
		trace.Error = err.Error()
		trace.DurationMs = time.Since(startTime).Milliseconds()
		return nil, trace
	}

	execCtx, cancel := context.WithTimeout(ctx, e.config.NodeTimeout)
	defer cancel()

	out, err := behavior.Execute(execCtx, engine.ExecInput{
		State:   state,
		Message: msg,
		Intent:  intent,
		Config:  engine.MergeNodeConfig(behavior.Definition().DefaultConfig, node.Config),
	})
	trace.DurationMs = time.Since(startTime).Milliseconds()

	if err != nil {
		trace.Error = err.Error()
		log.Printf("❌ Node %s failed: %v", node.InstanceKey, err)
		return nil, trace
	}
	if execCtx.Err() != nil {
		trace.Error = execCtx.Err().Error()
		return nil, trace
	}
	if out == nil {
		// comportamiento externo mal implementado: nil sin error cuenta
		// como fallo de nodo, no tumba el turno
		trace.Error = "node behavior returned no output"
		log.Printf("❌ Node %s returned no output", node.InstanceKey)
		return nil, trace
	}

	trace.Success = true
	return out, trace
}

// applyRule aplica la acción de una regla. Retorna el nodo destino cuando la
// acción es un salto dentro del grafo y done=true cuando el turno debe
// terminar aquí (handoff).
func (e *Executor) applyRule(
	wf *engine.WorkflowDefinition,
	state *engine.ConversationState,
	result *engine.TurnResult,
	rule *engine.RoutingRule,
) (*engine.NodeInstance, bool) {
	switch rule.Action.Type {
	case engine.RuleActionHandoff:
		log.Printf("🧭 Routing rule %s forced human handoff", rule.ID)
		state.MarkEscalated()
		result.Escalated = true
		result.Agent = rule.Action.TargetAgent
		return nil, true

	case engine.RuleActionGoToNode:
		target := wf.GetNodeByInstanceKey(rule.Action.TargetNodeKey)
		if target == nil {
			log.Printf("⚠️  Routing rule %s targets unknown node %q, ignoring", rule.ID, rule.Action.TargetNodeKey)
			return nil, false
		}
		state.CurrentNodeInstanceID = target.ID
		return target, false

	default:
		return nil, false
	}
}

// selectTransition retorna la primera transición cuya condición matchea.
// Las transiciones llegan ya ordenadas; la default está al final y matchea
// incondicionalmente si se alcanza.
func selectTransition(transitions []engine.Transition, fields map[string]any) *engine.Transition {
	for i := range transitions {
		t := &transitions[i]
		if t.IsDefault {
			return t
		}
		if t.Matches(fields) {
			return t
		}
	}
	return nil
}

// ensureResponse garantiza una respuesta por turno: la del nodo, la última
// emitida, o el texto de último recurso
func (e *Executor) ensureResponse(state *engine.ConversationState, response *engine.Response) *engine.Response {
	if response != nil {
		state.SetField(engine.FieldLastResponse, response.Text)
		return response
	}
	if last, ok := state.GetField(engine.FieldLastResponse); ok {
		return &engine.Response{Text: fmt.Sprintf("%v", last)}
	}
	return &engine.Response{Text: e.config.NoResponseText}
}
