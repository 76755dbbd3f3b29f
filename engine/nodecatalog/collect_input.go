package nodecatalog

import (
	"context"
	"strings"

	"github.com/Abraxas-365/converso/engine"
)

// CollectInputBehavior nodo que guarda el texto del usuario en un campo del
// estado. Si el mensaje entrante trae texto lo captura y continúa; si no,
// emite el prompt configurado y espera el próximo turno.
type CollectInputBehavior struct{}

var _ engine.NodeBehavior = (*CollectInputBehavior)(nil)

func NewCollectInputBehavior() *CollectInputBehavior {
	return &CollectInputBehavior{}
}

func (b *CollectInputBehavior) Definition() engine.NodeDefinition {
	return engine.NodeDefinition{
		Key:         "collect_input",
		Version:     1,
		BehaviorRef: "nodecatalog.CollectInputBehavior",
		Description: "Prompts for and captures a free-text field",
		DefaultConfig: map[string]any{
			"field":  "",
			"prompt": "",
		},
		DeclaredInputs:  []string{},
		DeclaredOutputs: []string{"<field>"},
	}
}

func (b *CollectInputBehavior) Execute(ctx context.Context, input engine.ExecInput) (*engine.ExecOutput, error) {
	field := configString(input.Config, "field", "")
	if field == "" {
		return nil, engine.ErrNodeExecutionFailed().WithDetail("reason", "collect_input node has no field")
	}

	// El prompt ya fue emitido en un turno anterior si el campo de control
	// está marcado; en ese caso este turno captura la respuesta.
	promptedKey := "__prompted_" + field
	_, prompted := input.State.GetField(promptedKey)

	text := strings.TrimSpace(input.Message.Content.Text)
	if prompted && text != "" {
		out := &engine.ExecOutput{Continue: true}
		out.Delta.SetField(field, text)
		out.Delta.Unset = append(out.Delta.Unset, promptedKey)
		return out, nil
	}

	prompt := configString(input.Config, "prompt", "¿Me puedes dar ese dato?")
	out := &engine.ExecOutput{
		Response: &engine.Response{Text: prompt},
	}
	out.Delta.SetField(promptedKey, true)
	return out, nil
}

func (b *CollectInputBehavior) ValidateConfig(config map[string]any) error {
	if configString(config, "field", "") == "" {
		return engine.ErrInvalidWorkflowConfig().WithDetail("reason", "collect_input node requires field")
	}
	return nil
}
