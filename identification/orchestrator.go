package identification

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/Abraxas-365/converso/engine"
)

// Config controla el comportamiento del orquestador. Los valores vienen de
// la config del nodo del grafo, mezclada con los defaults del catálogo.
type Config struct {
	// ErrorThreshold es el presupuesto de errores local del sub-flujo
	// (identificadores inválidos, no encontrados, verificaciones negadas).
	// Al agotarse se escala a humano. Es independiente del contador de
	// errores de ejecución de nodos del grafo.
	ErrorThreshold int

	// InfoIntents son intenciones que no requieren identificación.
	InfoIntents []string

	// ServiceIntents son intenciones que sí la requieren.
	ServiceIntents []string

	Texts Texts
}

func (c *Config) applyDefaults() {
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = 3
	}
	if c.Texts == (Texts{}) {
		c.Texts = DefaultTexts()
	}
}

// Orchestrator dirige el sub-flujo de identificación: despacha cada turno
// según el paso persistido, repara estados inconsistentes y aplica el
// presupuesto de errores local.
type Orchestrator struct {
	config    Config
	upstream  UpstreamDirectory
	persons   PersonRepository
	registrar *Registrar
	resolver  *Resolver
	responder *Responder
	extractor *AmountExtractor
}

func NewOrchestrator(config Config, upstream UpstreamDirectory, persons PersonRepository) *Orchestrator {
	config.applyDefaults()
	responder := NewResponder(config.Texts)
	registrar := NewRegistrar(persons)
	extractor := NewAmountExtractor(0)
	return &Orchestrator{
		config:    config,
		upstream:  upstream,
		persons:   persons,
		registrar: registrar,
		resolver:  NewResolver(upstream, persons, registrar, responder, extractor),
		responder: responder,
		extractor: extractor,
	}
}

// HandleTurn procesa un turno dentro del sub-flujo.
func (o *Orchestrator) HandleTurn(ctx context.Context, input engine.ExecInput) (*engine.ExecOutput, error) {
	state := input.State
	step := NormalizeStep(state.IdentificationStep)

	// Reparación de estado: si el cliente ya figura identificado pero quedó
	// un paso intermedio colgado (deploy a mitad de flujo, escritura
	// parcial), no se confía en el paso: se limpia y se reinicia la
	// resolución desde cero.
	if identified, _ := state.GetField(engine.FieldCustomerIdentified); identified == true && !step.IsTerminal() && step != StepNone {
		log.Printf("⚠️ Inconsistent identification state for conversation %s (step=%s, identified=true): resetting", state.ID, step)
		step = StepNone
		out, err := o.resolver.ResolveInitial(ctx, input, o.config.InfoIntents, o.config.ServiceIntents)
		if err != nil {
			return nil, err
		}
		out.Delta.SetField(engine.FieldCustomerIdentified, false)
		return out, nil
	}

	switch step {
	case StepNone:
		return o.resolver.ResolveInitial(ctx, input, o.config.InfoIntents, o.config.ServiceIntents)
	case StepAwaitingWelcome:
		return o.handleWelcome(ctx, input)
	case StepAwaitingIdentifier:
		return o.handleIdentifier(ctx, input)
	case StepNameVerification:
		return o.handleNameVerification(ctx, input)
	case StepAwaitingAccountSelection:
		return o.handleAccountSelection(ctx, input)
	case StepOwnOrOther:
		return o.handleOwnOrOther(ctx, input)
	case StepComplete:
		// Paso terminal que no debería seguir persistido: el cierre del
		// sub-flujo limpia el paso. Se deja pasar el turno al grafo.
		return o.responder.Passthrough(), nil
	case StepEscalated:
		return o.responder.Escalated(), nil
	}
	return o.resolver.ResolveInitial(ctx, input, o.config.InfoIntents, o.config.ServiceIntents)
}

// handleWelcome espera la primera intención después del saludo. Si el
// usuario manda directamente su documento, se salta la petición.
func (o *Orchestrator) handleWelcome(ctx context.Context, input engine.ExecInput) (*engine.ExecOutput, error) {
	text := input.Message.Content.Text
	if ValidIdentifier(text) {
		return o.lookupIdentifier(ctx, input, normalizeIdentifier(text))
	}

	intent := intentName(input.Intent)
	if intent != "" && contains(o.config.InfoIntents, intent) {
		return o.responder.Passthrough(), nil
	}
	if intent != "" && contains(o.config.ServiceIntents, intent) {
		out := o.responder.RequestIdentifier(0, "")
		out.Delta.SetField(engine.FieldPendingFlow, intent)
		if _, has := input.State.GetField(engine.FieldPendingPaymentAmount); !has {
			if amount, ok := o.extractor.Extract(text); ok {
				out.Delta.SetField(engine.FieldPendingPaymentAmount, amount)
			}
		}
		return out, nil
	}

	// Turno sin señal: re-saludar consume presupuesto igual, para que el
	// usuario que da vueltas en la bienvenida también termine escalado
	errs := currentErrors(input.State) + 1
	if errs >= o.config.ErrorThreshold {
		log.Printf("🚨 Identification error budget exhausted for conversation %s", input.State.ID)
		return o.responder.Escalated(), nil
	}
	out := o.responder.Welcome()
	out.Delta.SetField(fieldIdentErrorCount, errs)
	return out, nil
}

func (o *Orchestrator) handleIdentifier(ctx context.Context, input engine.ExecInput) (*engine.ExecOutput, error) {
	text := strings.TrimSpace(input.Message.Content.Text)
	if !ValidIdentifier(text) {
		return o.failAttempt(input, "invalid"), nil
	}
	return o.lookupIdentifier(ctx, input, normalizeIdentifier(text))
}

func (o *Orchestrator) lookupIdentifier(ctx context.Context, input engine.ExecInput, identifier string) (*engine.ExecOutput, error) {
	identity, err := o.upstream.LookupByIdentifier(ctx, input.State.TenantID, identifier)
	if err != nil {
		return nil, NewUpstreamUnavailableError(err)
	}
	if identity == nil {
		return o.failAttempt(input, "not_found"), nil
	}
	return o.responder.NameVerification(identity), nil
}

func (o *Orchestrator) handleNameVerification(ctx context.Context, input engine.ExecInput) (*engine.ExecOutput, error) {
	identity := loadCandidate(input.State)
	if identity == nil {
		// Candidato perdido (estado truncado): se vuelve a pedir documento.
		return o.responder.RequestIdentifier(currentErrors(input.State), ""), nil
	}

	switch parseChoice(input.Message) {
	case "yes":
		if len(identity.Accounts) > 1 {
			return o.responder.AccountSelection(identity), nil
		}
		return o.complete(ctx, input, identity, firstAccountID(identity))
	case "no":
		return o.failAttempt(input, "not_found"), nil
	default:
		return o.responder.NameVerification(identity), nil
	}
}

func (o *Orchestrator) handleAccountSelection(ctx context.Context, input engine.ExecInput) (*engine.ExecOutput, error) {
	identity := loadCandidate(input.State)
	if identity == nil {
		return o.responder.RequestIdentifier(currentErrors(input.State), ""), nil
	}

	if idx, ok := parseSelection(input.Message, len(identity.Accounts)); ok {
		return o.complete(ctx, input, identity, identity.Accounts[idx].ID)
	}
	return o.responder.AccountSelection(identity), nil
}

func (o *Orchestrator) handleOwnOrOther(ctx context.Context, input engine.ExecInput) (*engine.ExecOutput, error) {
	identity := loadCandidate(input.State)
	if identity == nil {
		return o.responder.RequestIdentifier(currentErrors(input.State), ""), nil
	}

	switch parseChoice(input.Message) {
	case "yes", "own":
		if len(identity.Accounts) > 1 {
			return o.responder.AccountSelection(identity), nil
		}
		return o.complete(ctx, input, identity, firstAccountID(identity))
	case "no", "other":
		// Gestión para un tercero: se pide el documento del titular real.
		return o.responder.RequestIdentifier(0, ""), nil
	default:
		return o.responder.OwnOrOther(identity), nil
	}
}

func (o *Orchestrator) complete(ctx context.Context, input engine.ExecInput, identity *Identity, accountID string) (*engine.ExecOutput, error) {
	state := input.State
	person, created, err := o.registrar.RegisterIfAbsent(ctx, state.TenantID, state.ChannelID, state.SenderID, identity, accountID)
	if err != nil {
		return nil, err
	}
	if created {
		log.Printf("🎉 Identification completed for conversation %s", state.ID)
	}
	return o.responder.Completed(person), nil
}

// failAttempt consume una unidad del presupuesto de errores local y escala
// al agotarlo.
func (o *Orchestrator) failAttempt(input engine.ExecInput, reason string) *engine.ExecOutput {
	errs := currentErrors(input.State) + 1
	if errs >= o.config.ErrorThreshold {
		log.Printf("🚨 Identification error budget exhausted for conversation %s", input.State.ID)
		return o.responder.Escalated()
	}
	return o.responder.RequestIdentifier(errs, reason)
}

func currentErrors(state *engine.ConversationState) int {
	v, ok := state.GetField(fieldIdentErrorCount)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func normalizeIdentifier(text string) string {
	return strings.NewReplacer(" ", "", "-", "", ".", "").Replace(strings.TrimSpace(text))
}

func firstAccountID(identity *Identity) string {
	if len(identity.Accounts) > 0 {
		return identity.Accounts[0].ID
	}
	return ""
}

// parseChoice interpreta respuestas de botones. Los canales interactivos
// mandan el ID del botón en metadata; texto libre se matchea por palabras.
func parseChoice(msg engine.Message) string {
	if id, ok := msg.Content.Metadata["button_id"].(string); ok && id != "" {
		return id
	}
	text := strings.ToLower(strings.TrimSpace(msg.Content.Text))
	switch text {
	case "si", "sí", "yes", "s", "claro", "correcto", "soy yo", "si soy yo", "1":
		return "yes"
	case "no", "n", "2":
		return "no"
	case "para mi", "para mí", "propia", "mia", "mía":
		return "own"
	case "para otra persona", "otra persona", "tercero", "para otro":
		return "other"
	}
	return ""
}

// parseSelection interpreta la elección de una lista numerada (1-based).
func parseSelection(msg engine.Message, count int) (int, bool) {
	raw := msg.Content.Text
	if id, ok := msg.Content.Metadata["list_item_id"].(string); ok && id != "" {
		raw = id
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 || n > count {
		return 0, false
	}
	return n - 1, true
}
