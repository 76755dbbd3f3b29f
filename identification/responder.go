package identification

import (
	"encoding/json"
	"fmt"

	"github.com/Abraxas-365/converso/engine"
)

// Campos scratch del sub-flujo. Se limpian al salir del sub-flujo; nunca se
// limpian los campos de contexto pendiente (monto, flujo, organización), que
// deben sobrevivir la identificación completa.
const (
	fieldIdentErrorCount = "__ident_error_count"
	fieldIdentCandidate  = "__ident_candidate"
)

// Texts son los mensajes configurables del sub-flujo. Cada tenant puede
// sobreescribirlos desde la config del nodo.
type Texts struct {
	Welcome           string `json:"welcome"`
	RequestIdentifier string `json:"request_identifier"`
	InvalidIdentifier string `json:"invalid_identifier"`
	NotFound          string `json:"not_found"`
	NameVerification  string `json:"name_verification"` // %s = nombre enmascarado
	AccountSelection  string `json:"account_selection"`
	OwnOrOther        string `json:"own_or_other"` // %s = nombre enmascarado
	Completed         string `json:"completed"`    // %s = nombre completo
	Escalated         string `json:"escalated"`
}

// DefaultTexts retorna los mensajes por defecto en español.
func DefaultTexts() Texts {
	return Texts{
		Welcome:           "¡Hola! 👋 Soy tu asistente virtual. ¿En qué puedo ayudarte hoy?",
		RequestIdentifier: "Para continuar necesito verificar tu identidad. Por favor envíame tu número de documento.",
		InvalidIdentifier: "Ese número no parece un documento válido. Envíame solo los dígitos, sin espacios ni puntos.",
		NotFound:          "No encontré ese documento en nuestro sistema. Verifica el número e inténtalo de nuevo.",
		NameVerification:  "Encontré una cuenta a nombre de %s. ¿Eres tú?",
		AccountSelection:  "Tienes varias cuentas asociadas. ¿Sobre cuál quieres consultar?",
		OwnOrOther:        "Este número está registrado a nombre de %s. ¿La consulta es para ti o para otra persona?",
		Completed:         "¡Gracias %s! Ya verifiqué tu identidad. ✅",
		Escalated:         "No pude verificar tu identidad. Te voy a comunicar con un asesor. 🙋",
	}
}

// Responder construye las salidas de cada paso del sub-flujo. Centraliza dos
// reglas que todos los pasos deben respetar: el paso siguiente siempre viaja
// en el delta, y los campos de contexto pendiente jamás aparecen en Unset.
type Responder struct {
	texts Texts
}

func NewResponder(texts Texts) *Responder {
	return &Responder{texts: texts}
}

func stepDelta(step Step) engine.StateDelta {
	s := string(step)
	return engine.StateDelta{IdentificationStep: &s}
}

// Welcome saluda y deja la conversación esperando la primera intención.
func (r *Responder) Welcome() *engine.ExecOutput {
	return &engine.ExecOutput{
		Delta:    stepDelta(StepAwaitingWelcome),
		Response: &engine.Response{Text: r.texts.Welcome},
	}
}

// RequestIdentifier pide el documento. Se usa tanto al entrar al sub-flujo
// como al reintentar tras un identificador inválido o no encontrado.
func (r *Responder) RequestIdentifier(errorCount int, reason string) *engine.ExecOutput {
	text := r.texts.RequestIdentifier
	switch reason {
	case "invalid":
		text = r.texts.InvalidIdentifier
	case "not_found":
		text = r.texts.NotFound
	}
	out := &engine.ExecOutput{
		Delta:    stepDelta(StepAwaitingIdentifier),
		Response: &engine.Response{Text: text},
	}
	out.Delta.SetField(fieldIdentErrorCount, errorCount)
	return out
}

// NameVerification muestra el nombre enmascarado y guarda la identidad
// candidata para el siguiente turno.
func (r *Responder) NameVerification(identity *Identity) *engine.ExecOutput {
	out := &engine.ExecOutput{
		Delta: stepDelta(StepNameVerification),
		Response: &engine.Response{
			Text: fmt.Sprintf(r.texts.NameVerification, identity.MaskedName()),
			Buttons: []engine.ResponseButton{
				{ID: "yes", Title: "Sí, soy yo"},
				{ID: "no", Title: "No"},
			},
		},
	}
	storeCandidate(&out.Delta, identity)
	return out
}

// AccountSelection lista las cuentas de la identidad confirmada.
func (r *Responder) AccountSelection(identity *Identity) *engine.ExecOutput {
	items := make([]engine.ResponseListItem, 0, len(identity.Accounts))
	for i, acc := range identity.Accounts {
		title := acc.Alias
		if title == "" {
			title = acc.Number
		}
		items = append(items, engine.ResponseListItem{
			ID:          fmt.Sprintf("%d", i+1),
			Title:       title,
			Description: fmt.Sprintf("Deuda: %.2f", acc.Debt),
		})
	}
	out := &engine.ExecOutput{
		Delta: stepDelta(StepAwaitingAccountSelection),
		Response: &engine.Response{
			Text:      r.texts.AccountSelection,
			ListItems: items,
		},
	}
	storeCandidate(&out.Delta, identity)
	return out
}

// OwnOrOther pregunta si la gestión es propia o para un tercero cuando el
// teléfono del remitente ya matchea una identidad del directorio.
func (r *Responder) OwnOrOther(identity *Identity) *engine.ExecOutput {
	out := &engine.ExecOutput{
		Delta: stepDelta(StepOwnOrOther),
		Response: &engine.Response{
			Text: fmt.Sprintf(r.texts.OwnOrOther, identity.MaskedName()),
			Buttons: []engine.ResponseButton{
				{ID: "own", Title: "Para mí"},
				{ID: "other", Title: "Para otra persona"},
			},
		},
	}
	storeCandidate(&out.Delta, identity)
	return out
}

// Completed cierra el sub-flujo: limpia el paso y el scratch, marca al
// cliente como identificado y deja que el grafo continúe en el mismo turno
// con el contexto pendiente (monto, flujo) intacto.
func (r *Responder) Completed(person *Person) *engine.ExecOutput {
	out := &engine.ExecOutput{
		Delta:    stepDelta(StepNone),
		Response: &engine.Response{Text: fmt.Sprintf(r.texts.Completed, person.FullName)},
		Continue: true,
	}
	out.Delta.SetField(engine.FieldCustomerIdentified, true)
	out.Delta.SetField(engine.FieldCollectedIdentifier, person.Identifier)
	if person.AccountID != "" {
		out.Delta.SetField("selected_account_id", person.AccountID)
	}
	out.Delta.Unset = append(out.Delta.Unset, fieldIdentCandidate, fieldIdentErrorCount)
	return out
}

// Escalated agota el presupuesto de errores del sub-flujo y deriva a humano.
func (r *Responder) Escalated() *engine.ExecOutput {
	status := engine.ConversationStatusEscalated
	out := &engine.ExecOutput{
		Delta:    stepDelta(StepEscalated),
		Response: &engine.Response{Text: r.texts.Escalated},
	}
	out.Delta.Status = &status
	out.Delta.Unset = append(out.Delta.Unset, fieldIdentCandidate, fieldIdentErrorCount)
	return out
}

// Passthrough deja pasar el turno al grafo principal sin entrar al sub-flujo
// (consultas informativas que no requieren identificación).
func (r *Responder) Passthrough() *engine.ExecOutput {
	return &engine.ExecOutput{Continue: true}
}

// ============================================================================
// Candidato en Fields
// ============================================================================

// storeCandidate serializa la identidad a un mapa JSON para que sobreviva el
// round-trip por Postgres/Redis igual que cualquier otro field.
func storeCandidate(delta *engine.StateDelta, identity *Identity) {
	raw, err := json.Marshal(identity)
	if err != nil {
		return
	}
	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return
	}
	delta.SetField(fieldIdentCandidate, asMap)
}

// loadCandidate reconstruye la identidad candidata guardada por un turno
// anterior. Retorna nil si no hay candidato o el valor está corrupto.
func loadCandidate(state *engine.ConversationState) *Identity {
	v, ok := state.GetField(fieldIdentCandidate)
	if !ok {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var identity Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil
	}
	if identity.FullName == "" {
		return nil
	}
	return &identity
}
