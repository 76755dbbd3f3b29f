package nodecatalog

import (
	"context"

	"github.com/Abraxas-365/converso/engine"
)

// HumanHandoffBehavior nodo terminal de escalación: la conversación pasa a
// una cola de agentes humanos. Es también el destino del fallback cuando el
// presupuesto de errores del ejecutor se agota.
type HumanHandoffBehavior struct{}

var _ engine.NodeBehavior = (*HumanHandoffBehavior)(nil)

func NewHumanHandoffBehavior() *HumanHandoffBehavior {
	return &HumanHandoffBehavior{}
}

func (b *HumanHandoffBehavior) Definition() engine.NodeDefinition {
	return engine.NodeDefinition{
		Key:         "human_handoff",
		Version:     1,
		BehaviorRef: "nodecatalog.HumanHandoffBehavior",
		Description: "Escalates the conversation to a human agent queue",
		DefaultConfig: map[string]any{
			"text":  "Te voy a conectar con una persona de nuestro equipo, dame un momento.",
			"agent": "default",
		},
		DeclaredInputs:  []string{},
		DeclaredOutputs: []string{"handoff_agent"},
	}
}

func (b *HumanHandoffBehavior) Execute(ctx context.Context, input engine.ExecInput) (*engine.ExecOutput, error) {
	agent := configString(input.Config, "agent", "default")
	status := engine.ConversationStatusEscalated

	out := &engine.ExecOutput{
		Response: &engine.Response{
			Text:     configString(input.Config, "text", "Te voy a conectar con una persona de nuestro equipo."),
			Metadata: map[string]any{"handoff_agent": agent},
		},
	}
	out.Delta.Status = &status
	out.Delta.SetField("handoff_agent", agent)
	return out, nil
}

func (b *HumanHandoffBehavior) ValidateConfig(config map[string]any) error {
	return nil
}
