package bypass

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBypassRepo struct {
	rules []*engine.BypassRule
}

func (f *fakeBypassRepo) Save(ctx context.Context, rule engine.BypassRule) error { return nil }

func (f *fakeBypassRepo) FindByID(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) (*engine.BypassRule, error) {
	return nil, engine.ErrBypassRuleNotFound()
}

func (f *fakeBypassRepo) FindActiveByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*engine.BypassRule, error) {
	return f.rules, nil
}

func (f *fakeBypassRepo) Delete(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) error {
	return nil
}

func bypassRule(id string, matchType engine.BypassMatchType, value, workflowKey string, priority int) *engine.BypassRule {
	return &engine.BypassRule{
		ID:                kernel.RuleID(id),
		TenantID:          "tenant-1",
		MatchType:         matchType,
		Value:             value,
		TargetWorkflowKey: workflowKey,
		Priority:          priority,
		IsActive:          true,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
}

func TestRouterExactNumber(t *testing.T) {
	repo := &fakeBypassRepo{rules: []*engine.BypassRule{
		bypassRule("r1", engine.BypassMatchExactNumber, "51999888777", "vip", 0),
	}}
	router := NewRouter(repo)

	target, err := router.Resolve(context.Background(), ChannelIdentifier{
		TenantID:    "tenant-1",
		PhoneNumber: "51999888777",
	})
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, "vip", target.WorkflowKey)

	// número distinto: sin bypass, el executor normal atiende
	target, err = router.Resolve(context.Background(), ChannelIdentifier{
		TenantID:    "tenant-1",
		PhoneNumber: "51111111111",
	})
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestRouterExactNumberList(t *testing.T) {
	repo := &fakeBypassRepo{rules: []*engine.BypassRule{
		bypassRule("r1", engine.BypassMatchExactNumber, "51999888777, 51888777666", "vip", 0),
	}}
	router := NewRouter(repo)

	target, err := router.Resolve(context.Background(), ChannelIdentifier{
		TenantID:    "tenant-1",
		PhoneNumber: "51888777666",
	})
	require.NoError(t, err)
	require.NotNil(t, target)
}

func TestRouterNumberPattern(t *testing.T) {
	tests := []struct {
		pattern string
		number  string
		want    bool
	}{
		{"51*", "51999888777", true},
		{"51*", "52999888777", false},
		{"*777", "51999888777", true},
		{"*777", "51999888778", false},
		{"51*777", "51999888777", true},
		{"51*777", "51999888778", false},
		{"*", "anything", true},
		{"519998", "519998", true},
		{"519998", "5199988", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.number, func(t *testing.T) {
			repo := &fakeBypassRepo{rules: []*engine.BypassRule{
				bypassRule("r1", engine.BypassMatchNumberPattern, tt.pattern, "special", 0),
			}}
			router := NewRouter(repo)

			target, err := router.Resolve(context.Background(), ChannelIdentifier{
				TenantID:    "tenant-1",
				PhoneNumber: tt.number,
			})
			require.NoError(t, err)
			if tt.want {
				assert.NotNil(t, target)
			} else {
				assert.Nil(t, target)
			}
		})
	}
}

func TestRouterChannelNumberID(t *testing.T) {
	repo := &fakeBypassRepo{rules: []*engine.BypassRule{
		bypassRule("r1", engine.BypassMatchChannelNumberID, "wa-number-42", "campaigns", 0),
	}}
	router := NewRouter(repo)

	target, err := router.Resolve(context.Background(), ChannelIdentifier{
		TenantID:        "tenant-1",
		ChannelNumberID: "wa-number-42",
	})
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, "campaigns", target.WorkflowKey)
}

func TestRouterPriorityWins(t *testing.T) {
	// ambas matchean el mismo número; gana la de menor prioridad
	repo := &fakeBypassRepo{rules: []*engine.BypassRule{
		bypassRule("generic", engine.BypassMatchNumberPattern, "51*", "generic", 10),
		bypassRule("specific", engine.BypassMatchExactNumber, "51999888777", "vip", 1),
	}}
	router := NewRouter(repo)

	target, err := router.Resolve(context.Background(), ChannelIdentifier{
		TenantID:    "tenant-1",
		PhoneNumber: "51999888777",
	})
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, "vip", target.WorkflowKey)
	assert.Equal(t, kernel.RuleID("specific"), target.RuleID)
}

func TestRouterInactiveSkipped(t *testing.T) {
	inactive := bypassRule("r1", engine.BypassMatchExactNumber, "51999888777", "vip", 0)
	inactive.IsActive = false
	repo := &fakeBypassRepo{rules: []*engine.BypassRule{inactive}}
	router := NewRouter(repo)

	target, err := router.Resolve(context.Background(), ChannelIdentifier{
		TenantID:    "tenant-1",
		PhoneNumber: "51999888777",
	})
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestTargetHistoryScope(t *testing.T) {
	var nilTarget *TargetWorkflowRef
	assert.Equal(t, "", nilTarget.HistoryScope())

	shared := &TargetWorkflowRef{RuleID: "r1"}
	assert.Equal(t, "", shared.HistoryScope())

	isolated := &TargetWorkflowRef{RuleID: "r1", IsolatedHistory: true}
	assert.Equal(t, "bypass:r1", isolated.HistoryScope())
}
