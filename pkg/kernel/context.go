package kernel

// ============================================================================
// Context Types - Tipos para context.Context
// ============================================================================

// AdminContext es el contexto de autenticación del API administrativo
type AdminContext struct {
	TenantID TenantID `json:"tenant_id"`
	Subject  string   `json:"subject"`
	IsAdmin  bool     `json:"is_admin"`
}

// IsValid verifica si el AdminContext es válido
func (a *AdminContext) IsValid() bool {
	return !a.TenantID.IsEmpty() && a.Subject != ""
}

// ============================================================================
// Context Keys - Claves para context.Context
// ============================================================================

type ContextKey string

const (
	// AdminContextKey es la clave para almacenar AdminContext en context.Context
	AdminContextKey ContextKey = "admin_context"

	// TenantContextKey es la clave para almacenar TenantID en context.Context
	TenantContextKey ContextKey = "tenant_id"

	// RequestIDKey es la clave para almacenar el ID de la petición
	RequestIDKey ContextKey = "request_id"
)
