package intent

import (
	"regexp"
	"time"

	"github.com/Abraxas-365/converso/pkg/kernel"
)

// ============================================================================
// Intent Rules
// ============================================================================

// Pattern es un regex nombrado con grupos de captura opcionales que se
// publican como entidades del resultado.
type Pattern struct {
	Name          string         `json:"name"`
	Pattern       string         `json:"pattern"`
	CaptureGroups map[string]int `json:"capture_groups,omitempty"`
}

// Rule mapea patrones de texto a una intención para un tenant
type Rule struct {
	ID        kernel.RuleID   `db:"id" json:"id"`
	TenantID  kernel.TenantID `db:"tenant_id" json:"tenant_id"`
	Intent    string          `db:"intent" json:"intent"`
	Patterns  []Pattern       `db:"patterns" json:"patterns"`
	Priority  int             `db:"priority" json:"priority"`
	IsActive  bool            `db:"is_active" json:"is_active"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Validate verifica que la regla tenga intención y patrones compilables
func (r *Rule) Validate() error {
	if r.Intent == "" {
		return ErrInvalidRule().WithDetail("reason", "rule has no intent")
	}
	if len(r.Patterns) == 0 {
		return ErrInvalidRule().WithDetail("reason", "rule has no patterns")
	}
	for i, p := range r.Patterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return ErrInvalidRule().
				WithDetail("pattern_index", i).
				WithDetail("pattern", p.Pattern).
				WithDetail("cause", err.Error())
		}
	}
	return nil
}
