package intentengines

import (
	"context"
	"log"
	"regexp"
	"sync"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/intent"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/errx"
)

// RuleClassifier clasifica intenciones con las reglas regex del tenant.
// Las reglas se evalúan por prioridad ascendente y gana el primer match;
// los grupos de captura del patrón se publican como entidades.
type RuleClassifier struct {
	rules intent.RuleRepository

	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

var _ engine.IntentClassifier = (*RuleClassifier)(nil)

func NewRuleClassifier(rules intent.RuleRepository) *RuleClassifier {
	return &RuleClassifier{
		rules:    rules,
		compiled: make(map[string]*regexp.Regexp),
	}
}

// Classify evalúa el texto contra las reglas activas del tenant. Sin match
// retorna (nil, nil): la ausencia de intención no es un error.
func (c *RuleClassifier) Classify(ctx context.Context, text string, context map[string]any) (*engine.IntentResult, error) {
	tenantID, _ := context["tenant_id"].(string)
	if tenantID == "" {
		return nil, errx.New("classifier context requires tenant_id", errx.TypeValidation)
	}

	rules, err := c.rules.FindActiveByTenant(ctx, kernel.TenantID(tenantID))
	if err != nil {
		return nil, errx.Wrap(err, "failed to load intent rules", errx.TypeInternal)
	}

	for _, rule := range rules {
		for _, pattern := range rule.Patterns {
			re := c.compile(pattern.Pattern)
			if re == nil {
				continue
			}

			matches := re.FindStringSubmatch(text)
			if matches == nil {
				continue
			}

			result := &engine.IntentResult{
				Intent: rule.Intent,
				// Matches de regex son binarios
				Confidence: 1.0,
				Entities:   make(map[string]any),
			}
			for name, index := range pattern.CaptureGroups {
				if index > 0 && index < len(matches) {
					result.Entities[name] = matches[index]
				}
			}
			return result, nil
		}
	}

	return nil, nil
}

// compile cachea los regex compilados; los patrones inválidos se saltan
func (c *RuleClassifier) compile(pattern string) *regexp.Regexp {
	c.mu.RLock()
	re, ok := c.compiled[pattern]
	c.mu.RUnlock()
	if ok {
		return re
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		log.Printf("⚠️ Skipping invalid intent pattern %q: %v", pattern, err)
		return nil
	}

	c.mu.Lock()
	c.compiled[pattern] = re
	c.mu.Unlock()
	return re
}
