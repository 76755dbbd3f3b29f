package nodecatalog

import (
	"context"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/identification"
)

// IdentificationBehavior monta el sub-flujo de identificación como un nodo
// del grafo. El nodo es reentrante: cada turno despacha al orquestador según
// el paso persistido en el estado, y el grafo solo avanza cuando el sub-flujo
// cierra (cliente identificado o conversación escalada).
type IdentificationBehavior struct {
	upstream identification.UpstreamDirectory
	persons  identification.PersonRepository
}

var _ engine.NodeBehavior = (*IdentificationBehavior)(nil)

func NewIdentificationBehavior(upstream identification.UpstreamDirectory, persons identification.PersonRepository) *IdentificationBehavior {
	return &IdentificationBehavior{upstream: upstream, persons: persons}
}

func (b *IdentificationBehavior) Definition() engine.NodeDefinition {
	return engine.NodeDefinition{
		Key:         "identification",
		Version:     1,
		BehaviorRef: "nodecatalog.IdentificationBehavior",
		Description: "Runs the customer identification and authorization sub-flow",
		DefaultConfig: map[string]any{
			"error_threshold": 3,
			"info_intents":    []string{"info_query", "faq", "horarios"},
			"service_intents": []string{"payment", "debt_query", "appointment"},
		},
		DeclaredInputs:  []string{},
		DeclaredOutputs: []string{engine.FieldCustomerIdentified, engine.FieldCollectedIdentifier},
	}
}

func (b *IdentificationBehavior) Execute(ctx context.Context, input engine.ExecInput) (*engine.ExecOutput, error) {
	orchestrator := identification.NewOrchestrator(identification.Config{
		ErrorThreshold: configInt(input.Config, "error_threshold", 3),
		InfoIntents:    configStrings(input.Config, "info_intents"),
		ServiceIntents: configStrings(input.Config, "service_intents"),
		Texts:          textsFromConfig(input.Config),
	}, b.upstream, b.persons)

	return orchestrator.HandleTurn(ctx, input)
}

func (b *IdentificationBehavior) ValidateConfig(config map[string]any) error {
	if configInt(config, "error_threshold", 3) < 1 {
		return engine.ErrInvalidWorkflowConfig().WithDetail("reason", "error_threshold must be at least 1")
	}
	return nil
}

// textsFromConfig permite que cada tenant sobreescriba los mensajes del
// sub-flujo desde la config del nodo.
func textsFromConfig(config map[string]any) identification.Texts {
	texts := identification.DefaultTexts()
	raw, ok := config["texts"].(map[string]any)
	if !ok {
		return texts
	}
	set := func(dst *string, key string) {
		if v, ok := raw[key].(string); ok && v != "" {
			*dst = v
		}
	}
	set(&texts.Welcome, "welcome")
	set(&texts.RequestIdentifier, "request_identifier")
	set(&texts.InvalidIdentifier, "invalid_identifier")
	set(&texts.NotFound, "not_found")
	set(&texts.NameVerification, "name_verification")
	set(&texts.AccountSelection, "account_selection")
	set(&texts.OwnOrOther, "own_or_other")
	set(&texts.Completed, "completed")
	set(&texts.Escalated, "escalated")
	return texts
}
