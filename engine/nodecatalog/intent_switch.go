package nodecatalog

import (
	"context"

	"github.com/Abraxas-365/converso/engine"
)

// IntentSwitchBehavior nodo que clasifica el mensaje entrante y publica la
// intención detectada como campos del estado, para que las transiciones
// salientes ruteen sobre "intent" y "entities.*". No emite respuesta propia.
type IntentSwitchBehavior struct {
	classifier engine.IntentClassifier
}

var _ engine.NodeBehavior = (*IntentSwitchBehavior)(nil)

func NewIntentSwitchBehavior(classifier engine.IntentClassifier) *IntentSwitchBehavior {
	return &IntentSwitchBehavior{classifier: classifier}
}

func (b *IntentSwitchBehavior) Definition() engine.NodeDefinition {
	return engine.NodeDefinition{
		Key:         "intent_switch",
		Version:     1,
		BehaviorRef: "nodecatalog.IntentSwitchBehavior",
		Description: "Classifies the inbound message and exposes intent fields for routing",
		DefaultConfig: map[string]any{
			"min_confidence": 0.0,
		},
		DeclaredInputs:  []string{"message_text"},
		DeclaredOutputs: []string{"intent", "confidence"},
	}
}

func (b *IntentSwitchBehavior) Execute(ctx context.Context, input engine.ExecInput) (*engine.ExecOutput, error) {
	result := input.Intent
	if result == nil && b.classifier != nil {
		classified, err := b.classifier.Classify(ctx, input.Message.Content.Text, input.State.Fields)
		if err != nil {
			return nil, err
		}
		result = classified
	}

	out := &engine.ExecOutput{Continue: true}
	if result == nil {
		out.Delta.SetField("intent", "unknown")
		out.Delta.SetField("confidence", 0.0)
		return out, nil
	}

	minConfidence := 0.0
	if v, ok := input.Config["min_confidence"].(float64); ok {
		minConfidence = v
	}

	intent := result.Intent
	if result.Confidence < minConfidence {
		intent = "unknown"
	}

	out.Delta.SetField("intent", intent)
	out.Delta.SetField("confidence", result.Confidence)
	for k, v := range result.Entities {
		out.Delta.SetField("entities."+k, v)
	}
	return out, nil
}

func (b *IntentSwitchBehavior) ValidateConfig(config map[string]any) error {
	return nil
}
