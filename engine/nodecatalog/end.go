package nodecatalog

import (
	"context"

	"github.com/Abraxas-365/converso/engine"
)

// EndBehavior nodo terminal explícito: marca la conversación completa.
type EndBehavior struct{}

var _ engine.NodeBehavior = (*EndBehavior)(nil)

func NewEndBehavior() *EndBehavior {
	return &EndBehavior{}
}

func (b *EndBehavior) Definition() engine.NodeDefinition {
	return engine.NodeDefinition{
		Key:         "end",
		Version:     1,
		BehaviorRef: "nodecatalog.EndBehavior",
		Description: "Marks the conversation complete",
		DefaultConfig: map[string]any{
			"text": "¡Gracias por escribirnos!",
		},
		DeclaredInputs:  []string{},
		DeclaredOutputs: []string{},
	}
}

func (b *EndBehavior) Execute(ctx context.Context, input engine.ExecInput) (*engine.ExecOutput, error) {
	status := engine.ConversationStatusComplete
	out := &engine.ExecOutput{
		Response: &engine.Response{Text: configString(input.Config, "text", "¡Gracias por escribirnos!")},
	}
	out.Delta.Status = &status
	return out, nil
}

func (b *EndBehavior) ValidateConfig(config map[string]any) error {
	return nil
}
