package identification

import (
	"strings"
	"time"

	"github.com/Abraxas-365/converso/pkg/kernel"
)

// ============================================================================
// Steps del sub-flujo de identificación
// ============================================================================

// Step representa el paso actual dentro del sub-flujo de identificación.
// El valor vacío significa que la conversación todavía no entró al sub-flujo
// (o que ya salió de él).
type Step string

const (
	StepNone                     Step = ""
	StepAwaitingWelcome          Step = "awaiting_welcome"
	StepAwaitingIdentifier       Step = "awaiting_identifier"
	StepNameVerification         Step = "name_verification"
	StepAwaitingAccountSelection Step = "awaiting_account_selection"
	StepOwnOrOther               Step = "own_or_other"
	StepComplete                 Step = "complete"
	StepEscalated                Step = "escalated"
)

// legacySteps mapea nombres de pasos que quedaron persistidos por versiones
// anteriores del flujo hacia los pasos actuales. Conversaciones viejas pueden
// tener cualquiera de estos valores en Redis/Postgres.
var legacySteps = map[string]Step{
	"awaiting_document":   StepAwaitingIdentifier,
	"awaiting_dni":        StepAwaitingIdentifier,
	"awaiting_validation": StepNameVerification,
	"confirming_name":     StepNameVerification,
	"selecting_account":   StepAwaitingAccountSelection,
	"identified":          StepComplete,
}

// NormalizeStep convierte el valor persistido en un Step conocido.
// Valores legacy se mapean; valores desconocidos regresan StepNone para que
// el orquestador reinicie el flujo en vez de quedarse atascado.
func NormalizeStep(raw string) Step {
	s := Step(strings.TrimSpace(strings.ToLower(raw)))
	switch s {
	case StepNone, StepAwaitingWelcome, StepAwaitingIdentifier, StepNameVerification,
		StepAwaitingAccountSelection, StepOwnOrOther, StepComplete, StepEscalated:
		return s
	}
	if mapped, ok := legacySteps[string(s)]; ok {
		return mapped
	}
	return StepNone
}

// IsTerminal indica si el paso ya no espera más input del usuario.
func (s Step) IsTerminal() bool {
	return s == StepComplete || s == StepEscalated
}

// ============================================================================
// Entities
// ============================================================================

// Account es una cuenta ligada a una identidad en el directorio upstream.
type Account struct {
	ID     string  `json:"id"`
	Alias  string  `json:"alias"`
	Number string  `json:"number"`
	Debt   float64 `json:"debt"`
}

// Identity es el registro que devuelve el directorio upstream al resolver
// un identificador (documento o teléfono).
type Identity struct {
	Identifier string    `json:"identifier"`
	FullName   string    `json:"full_name"`
	Phone      string    `json:"phone"`
	Accounts   []Account `json:"accounts"`
}

// MaskedName devuelve el nombre parcialmente oculto para la verificación
// ("Juan Pérez" -> "Juan P***"). Nunca se muestra el nombre completo antes
// de que el usuario lo confirme.
func (i *Identity) MaskedName() string {
	parts := strings.Fields(i.FullName)
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return maskWord(parts[0])
	}
	masked := make([]string, 0, len(parts))
	masked = append(masked, parts[0])
	for _, p := range parts[1:] {
		masked = append(masked, maskWord(p))
	}
	return strings.Join(masked, " ")
}

func maskWord(w string) string {
	r := []rune(w)
	if len(r) <= 1 {
		return w
	}
	return string(r[0]) + strings.Repeat("*", len(r)-1)
}

// Person es un cliente ya registrado localmente para un canal. La
// registración es única por (canal, identificador): reintentos del flujo no
// crean duplicados.
type Person struct {
	ID         kernel.PersonID  `json:"id"`
	TenantID   kernel.TenantID  `json:"tenant_id"`
	ChannelID  kernel.ChannelID `json:"channel_id"`
	SenderID   string           `json:"sender_id"`
	Identifier string           `json:"identifier"`
	FullName   string           `json:"full_name"`
	AccountID  string           `json:"account_id,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// NewPerson crea la registración local a partir de una identidad resuelta.
func NewPerson(tenantID kernel.TenantID, channelID kernel.ChannelID, senderID string, identity *Identity, accountID string) *Person {
	now := time.Now()
	return &Person{
		ID:         kernel.GeneratePersonID(),
		TenantID:   tenantID,
		ChannelID:  channelID,
		SenderID:   senderID,
		Identifier: identity.Identifier,
		FullName:   identity.FullName,
		AccountID:  accountID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
