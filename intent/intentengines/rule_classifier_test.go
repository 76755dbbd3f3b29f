package intentengines

import (
	"context"
	"testing"

	"github.com/Abraxas-365/converso/intent"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuleRepo struct {
	rules []*intent.Rule
}

func (f *fakeRuleRepo) Save(ctx context.Context, rule intent.Rule) error { return nil }

func (f *fakeRuleRepo) FindByID(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) (*intent.Rule, error) {
	return nil, intent.ErrRuleNotFound()
}

func (f *fakeRuleRepo) Delete(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) error {
	return nil
}

func (f *fakeRuleRepo) FindActiveByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*intent.Rule, error) {
	return f.rules, nil
}

func intentRule(id, intentName string, priority int, patterns ...intent.Pattern) *intent.Rule {
	return &intent.Rule{
		ID:       kernel.RuleID(id),
		TenantID: "tenant-1",
		Intent:   intentName,
		Patterns: patterns,
		Priority: priority,
		IsActive: true,
	}
}

func classifierContext() map[string]any {
	return map[string]any{"tenant_id": "tenant-1"}
}

func TestRuleClassifierRequiresTenant(t *testing.T) {
	c := NewRuleClassifier(&fakeRuleRepo{})

	_, err := c.Classify(context.Background(), "hola", map[string]any{})
	require.Error(t, err)
}

func TestRuleClassifierFirstMatchWins(t *testing.T) {
	repo := &fakeRuleRepo{rules: []*intent.Rule{
		intentRule("r1", "pagos", 0, intent.Pattern{Name: "pagar", Pattern: `(?i)\bpagar\b`}),
		intentRule("r2", "consulta_deuda", 10, intent.Pattern{Name: "deuda", Pattern: `(?i)\bdeuda\b`}),
	}}
	c := NewRuleClassifier(repo)

	// ambas reglas matchean; gana la de menor prioridad (ya vienen ordenadas)
	result, err := c.Classify(context.Background(), "quiero pagar mi deuda", classifierContext())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "pagos", result.Intent)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestRuleClassifierNoMatchIsNotAnError(t *testing.T) {
	repo := &fakeRuleRepo{rules: []*intent.Rule{
		intentRule("r1", "pagos", 0, intent.Pattern{Name: "pagar", Pattern: `(?i)\bpagar\b`}),
	}}
	c := NewRuleClassifier(repo)

	result, err := c.Classify(context.Background(), "buenos días", classifierContext())
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestRuleClassifierCaptureGroupsBecomeEntities(t *testing.T) {
	repo := &fakeRuleRepo{rules: []*intent.Rule{
		intentRule("r1", "citas", 0, intent.Pattern{
			Name:          "cita_especialidad",
			Pattern:       `(?i)cita (?:con|de) (\w+)`,
			CaptureGroups: map[string]int{"specialty": 1},
		}),
	}}
	c := NewRuleClassifier(repo)

	result, err := c.Classify(context.Background(), "quiero una cita con cardiologia", classifierContext())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "citas", result.Intent)
	assert.Equal(t, "cardiologia", result.Entities["specialty"])
}

func TestRuleClassifierInvalidPatternSkipped(t *testing.T) {
	repo := &fakeRuleRepo{rules: []*intent.Rule{
		intentRule("r1", "rota", 0, intent.Pattern{Name: "mala", Pattern: `(?i)[pagar`}),
		intentRule("r2", "pagos", 10, intent.Pattern{Name: "pagar", Pattern: `(?i)\bpagar\b`}),
	}}
	c := NewRuleClassifier(repo)

	// el patrón que no compila se salta, no tumba la clasificación
	result, err := c.Classify(context.Background(), "quiero pagar", classifierContext())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "pagos", result.Intent)
}

func TestRuleClassifierOutOfRangeCaptureIgnored(t *testing.T) {
	repo := &fakeRuleRepo{rules: []*intent.Rule{
		intentRule("r1", "citas", 0, intent.Pattern{
			Name:          "cita",
			Pattern:       `(?i)\bcita\b`,
			CaptureGroups: map[string]int{"specialty": 3},
		}),
	}}
	c := NewRuleClassifier(repo)

	result, err := c.Classify(context.Background(), "necesito una cita", classifierContext())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.Entities)
}

func TestRuleValidate(t *testing.T) {
	valid := intentRule("r1", "pagos", 0, intent.Pattern{Name: "pagar", Pattern: `pagar`})
	require.NoError(t, valid.Validate())

	noIntent := intentRule("r2", "", 0, intent.Pattern{Name: "pagar", Pattern: `pagar`})
	require.Error(t, noIntent.Validate())

	noPatterns := intentRule("r3", "pagos", 0)
	require.Error(t, noPatterns.Validate())

	badPattern := intentRule("r4", "pagos", 0, intent.Pattern{Name: "mala", Pattern: `[pagar`})
	require.Error(t, badPattern.Validate())
}
