package intent

import (
	"context"

	"github.com/Abraxas-365/converso/pkg/kernel"
)

// RuleRepository persiste reglas de intención por tenant
type RuleRepository interface {
	Save(ctx context.Context, rule Rule) error
	FindByID(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) (*Rule, error)
	Delete(ctx context.Context, id kernel.RuleID, tenantID kernel.TenantID) error

	// FindActiveByTenant retorna reglas activas ordenadas por prioridad ascendente
	FindActiveByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*Rule, error)
}
