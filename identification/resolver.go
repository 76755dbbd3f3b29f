package identification

import (
	"context"
	"log"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/craftable/errx"
)

// Resolver decide cómo arranca el sub-flujo en el primer contacto de un
// remitente. La precedencia es fija y va de la señal más fuerte a la más
// débil:
//
//  1. Registración local previa: el cliente ya pasó por el flujo antes.
//  2. Match de teléfono en el directorio upstream: conocemos una identidad
//     probable pero falta confirmar si la gestión es propia o de un tercero.
//  3. Intención informativa: no requiere identificación, pasa directo al
//     grafo principal.
//  4. Intención de servicio: requiere identificación, se pide el documento.
//  5. Sin señal: bienvenida genérica.
type Resolver struct {
	upstream  UpstreamDirectory
	persons   PersonRepository
	registrar *Registrar
	responder *Responder
	extractor *AmountExtractor
}

func NewResolver(upstream UpstreamDirectory, persons PersonRepository, registrar *Registrar, responder *Responder, extractor *AmountExtractor) *Resolver {
	return &Resolver{
		upstream:  upstream,
		persons:   persons,
		registrar: registrar,
		responder: responder,
		extractor: extractor,
	}
}

// ResolveInitial maneja un turno cuando la conversación todavía no tiene paso
// de identificación. infoIntents y serviceIntents vienen de la config del
// nodo del grafo que monta el sub-flujo.
func (r *Resolver) ResolveInitial(ctx context.Context, input engine.ExecInput, infoIntents, serviceIntents []string) (*engine.ExecOutput, error) {
	state := input.State

	out, err := r.resolveBranch(ctx, input, infoIntents, serviceIntents)
	if err != nil {
		return nil, err
	}

	// Extracción oportunista sobre el mensaje inicial: "quiero pagar 150"
	// guarda el monto ahora para no volver a preguntarlo cuando el cliente
	// termine de identificarse.
	if _, has := state.GetField(engine.FieldPendingPaymentAmount); !has {
		if amount, ok := r.extractor.Extract(input.Message.Content.Text); ok {
			out.Delta.SetField(engine.FieldPendingPaymentAmount, amount)
			log.Printf("💰 Extracted pending payment amount %.2f from initial message", amount)
		}
	}
	if intent := intentName(input.Intent); intent != "" && contains(serviceIntents, intent) {
		if _, has := state.GetField(engine.FieldPendingFlow); !has {
			out.Delta.SetField(engine.FieldPendingFlow, intent)
		}
	}

	return out, nil
}

func (r *Resolver) resolveBranch(ctx context.Context, input engine.ExecInput, infoIntents, serviceIntents []string) (*engine.ExecOutput, error) {
	state := input.State
	intent := intentName(input.Intent)

	// 1. Registración local previa
	person, err := r.persons.FindByChannelAndSender(ctx, state.ChannelID, state.SenderID)
	if err != nil && !errx.IsType(err, errx.TypeNotFound) {
		return nil, errx.Wrap(err, "failed to look up local registration", errx.TypeInternal)
	}
	if person != nil {
		identity, err := r.upstream.LookupByIdentifier(ctx, state.TenantID, person.Identifier)
		if err != nil {
			return nil, NewUpstreamUnavailableError(err)
		}
		if identity != nil && len(identity.Accounts) > 1 && person.AccountID == "" {
			return r.responder.AccountSelection(identity), nil
		}
		return r.responder.Completed(person), nil
	}

	// 2. Match de teléfono en el directorio
	identity, err := r.upstream.LookupByPhone(ctx, state.TenantID, state.SenderID)
	if err != nil {
		return nil, NewUpstreamUnavailableError(err)
	}
	if identity != nil {
		return r.responder.OwnOrOther(identity), nil
	}

	// 3. Consulta informativa: no pedimos identidad
	if intent != "" && contains(infoIntents, intent) {
		return r.responder.Passthrough(), nil
	}

	// 4. Intención de servicio: entra al sub-flujo
	if intent != "" && contains(serviceIntents, intent) {
		return r.responder.RequestIdentifier(0, ""), nil
	}

	// 5. Sin señal
	return r.responder.Welcome(), nil
}

func intentName(result *engine.IntentResult) string {
	if result == nil {
		return ""
	}
	return result.Intent
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
