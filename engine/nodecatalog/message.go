package nodecatalog

import (
	"context"
	"fmt"

	"github.com/Abraxas-365/converso/engine"
)

// MessageBehavior nodo que emite un texto configurado. Con "continue" en
// true no espera respuesta del usuario y el ejecutor sigue al próximo nodo.
type MessageBehavior struct {
	evaluator engine.ExpressionEvaluator
}

var _ engine.NodeBehavior = (*MessageBehavior)(nil)

func NewMessageBehavior(evaluator engine.ExpressionEvaluator) *MessageBehavior {
	return &MessageBehavior{evaluator: evaluator}
}

func (b *MessageBehavior) Definition() engine.NodeDefinition {
	return engine.NodeDefinition{
		Key:         "message",
		Version:     1,
		BehaviorRef: "nodecatalog.MessageBehavior",
		Description: "Emits a configured text, optionally templated with conversation fields",
		DefaultConfig: map[string]any{
			"text":     "",
			"continue": false,
		},
		DeclaredInputs:  []string{},
		DeclaredOutputs: []string{},
	}
}

func (b *MessageBehavior) Execute(ctx context.Context, input engine.ExecInput) (*engine.ExecOutput, error) {
	text := configString(input.Config, "text", "")
	if text == "" {
		return nil, engine.ErrNodeExecutionFailed().WithDetail("reason", "message node has no text")
	}

	if b.evaluator != nil {
		evaluated, err := b.evaluator.Evaluate(ctx, text, engine.EvalFields(input.State, &input.Message, input.Intent))
		if err == nil {
			text = fmt.Sprintf("%v", evaluated)
		}
	}

	return &engine.ExecOutput{
		Response: &engine.Response{Text: text},
		Continue: configBool(input.Config, "continue", false),
	}, nil
}

func (b *MessageBehavior) ValidateConfig(config map[string]any) error {
	if configString(config, "text", "") == "" {
		return engine.ErrInvalidWorkflowConfig().WithDetail("reason", "message node requires text")
	}
	return nil
}
