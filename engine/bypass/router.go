package bypass

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/pkg/kernel"
)

// ChannelIdentifier identificadores a nivel de canal de un mensaje entrante
type ChannelIdentifier struct {
	TenantID        kernel.TenantID
	PhoneNumber     string
	ChannelNumberID string
}

// TargetWorkflowRef destino resuelto por una regla de bypass
type TargetWorkflowRef struct {
	WorkflowKey     string
	Agent           string
	IsolatedHistory bool
	RuleID          kernel.RuleID
}

// Router filtro pre-engine: decide si un mensaje salta el ejecutor normal y
// va directo a un workflow o agente dedicado. La primera regla que matchea
// por prioridad gana; sin match, el control pasa al Graph Executor.
type Router struct {
	rules engine.BypassRuleRepository
}

func NewRouter(rules engine.BypassRuleRepository) *Router {
	return &Router{rules: rules}
}

// Resolve retorna el destino de bypass para el identificador, o nil si
// ninguna regla activa matchea.
func (r *Router) Resolve(ctx context.Context, id ChannelIdentifier) (*TargetWorkflowRef, error) {
	rules, err := r.rules.FindActiveByTenant(ctx, id.TenantID)
	if err != nil {
		return nil, err
	}

	// El repositorio ya ordena por prioridad; se reordena igual por si la
	// implementación no lo garantiza
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })

	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		if matches(rule, id) {
			log.Printf("🔀 Bypass rule %s matched for %s", rule.ID, id.PhoneNumber)
			return &TargetWorkflowRef{
				WorkflowKey:     rule.TargetWorkflowKey,
				Agent:           rule.TargetAgent,
				IsolatedHistory: rule.IsolatedHistory,
				RuleID:          rule.ID,
			}, nil
		}
	}

	return nil, nil
}

func matches(rule *engine.BypassRule, id ChannelIdentifier) bool {
	switch rule.MatchType {
	case engine.BypassMatchExactNumber:
		for _, number := range strings.Split(rule.Value, ",") {
			if strings.TrimSpace(number) == id.PhoneNumber {
				return true
			}
		}
		return false

	case engine.BypassMatchNumberPattern:
		return matchesPattern(rule.Value, id.PhoneNumber)

	case engine.BypassMatchChannelNumberID:
		return rule.Value == id.ChannelNumberID

	default:
		return false
	}
}

// matchesPattern soporta comodín "*" en cualquier posición del patrón
func matchesPattern(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == value
	}

	remaining := value
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(remaining, part)
		if idx == -1 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		remaining = remaining[idx+len(part):]
	}
	if last := parts[len(parts)-1]; last != "" && !strings.HasSuffix(value, last) {
		return false
	}
	return true
}

// HistoryScope retorna el scope de historial a usar para un destino de
// bypass: con isolatedHistory los turnos de dos canales que comparten número
// no se mezclan en el log principal del tenant.
func (t *TargetWorkflowRef) HistoryScope() string {
	if t == nil || !t.IsolatedHistory {
		return ""
	}
	return "bypass:" + t.RuleID.String()
}
