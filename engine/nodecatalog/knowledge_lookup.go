package nodecatalog

import (
	"context"
	"strings"

	"github.com/Abraxas-365/converso/engine"
)

// KnowledgeLookupBehavior nodo que responde consultas informativas buscando
// en la capa de conocimiento del tenant.
type KnowledgeLookupBehavior struct {
	searcher engine.KnowledgeSearcher
}

var _ engine.NodeBehavior = (*KnowledgeLookupBehavior)(nil)

func NewKnowledgeLookupBehavior(searcher engine.KnowledgeSearcher) *KnowledgeLookupBehavior {
	return &KnowledgeLookupBehavior{searcher: searcher}
}

func (b *KnowledgeLookupBehavior) Definition() engine.NodeDefinition {
	return engine.NodeDefinition{
		Key:         "knowledge_lookup",
		Version:     1,
		BehaviorRef: "nodecatalog.KnowledgeLookupBehavior",
		Description: "Answers informational queries from the knowledge layer",
		DefaultConfig: map[string]any{
			"not_found_text": "No encontré información sobre eso, ¿puedo ayudarte con otra cosa?",
			"max_documents":  1,
		},
		DeclaredInputs:  []string{"message_text"},
		DeclaredOutputs: []string{},
	}
}

func (b *KnowledgeLookupBehavior) Execute(ctx context.Context, input engine.ExecInput) (*engine.ExecOutput, error) {
	query := strings.TrimSpace(input.Message.Content.Text)
	if query == "" {
		return &engine.ExecOutput{
			Response: &engine.Response{Text: configString(input.Config, "not_found_text", "¿Sobre qué quieres saber?")},
		}, nil
	}

	filters := map[string]any{"tenant_id": input.State.TenantID.String()}
	docs, err := b.searcher.Search(ctx, query, filters)
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		return &engine.ExecOutput{
			Response: &engine.Response{Text: configString(input.Config, "not_found_text", "No encontré información sobre eso.")},
		}, nil
	}

	return &engine.ExecOutput{
		Response: &engine.Response{
			Text:     docs[0].Content,
			Metadata: map[string]any{"document_id": docs[0].ID, "score": docs[0].Score},
		},
	}, nil
}

func (b *KnowledgeLookupBehavior) ValidateConfig(config map[string]any) error {
	return nil
}
