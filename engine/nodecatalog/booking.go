package nodecatalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/converso/engine"
)

// BookingBehavior nodo de agendamiento de citas. Primer turno: lista los
// horarios disponibles para la especialidad recogida en el estado. Segundo
// turno: reserva el horario elegido a través del colaborador de agenda.
type BookingBehavior struct {
	scheduler engine.SchedulingService
}

var _ engine.NodeBehavior = (*BookingBehavior)(nil)

func NewBookingBehavior(scheduler engine.SchedulingService) *BookingBehavior {
	return &BookingBehavior{scheduler: scheduler}
}

func (b *BookingBehavior) Definition() engine.NodeDefinition {
	return engine.NodeDefinition{
		Key:         "booking",
		Version:     1,
		BehaviorRef: "nodecatalog.BookingBehavior",
		Description: "Offers available slots and books an appointment",
		DefaultConfig: map[string]any{
			"specialty_field": engine.FieldSelectedSpecialty,
			"max_slots":       5,
		},
		DeclaredInputs:  []string{engine.FieldSelectedSpecialty},
		DeclaredOutputs: []string{"booking_ref", "booked_slot"},
	}
}

func (b *BookingBehavior) Execute(ctx context.Context, input engine.ExecInput) (*engine.ExecOutput, error) {
	specialtyField := configString(input.Config, "specialty_field", engine.FieldSelectedSpecialty)
	specialtyVal, ok := input.State.GetField(specialtyField)
	if !ok {
		return &engine.ExecOutput{
			Response: &engine.Response{Text: "¿Para qué especialidad deseas agendar?"},
		}, nil
	}
	specialty := fmt.Sprintf("%v", specialtyVal)

	// Si ya ofrecimos horarios, este turno interpreta la selección
	if offered, _ := input.State.GetField("__offered_slots"); offered != nil {
		return b.bookSelection(ctx, input, specialty, offered)
	}

	slots, err := b.scheduler.AvailableSlots(ctx, specialty, time.Now())
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return &engine.ExecOutput{
			Response: &engine.Response{Text: fmt.Sprintf("Por ahora no hay horarios disponibles para %s.", specialty)},
		}, nil
	}

	maxSlots := 5
	if v, ok := input.Config["max_slots"].(float64); ok && v > 0 {
		maxSlots = int(v)
	} else if v, ok := input.Config["max_slots"].(int); ok && v > 0 {
		maxSlots = v
	}
	if len(slots) > maxSlots {
		slots = slots[:maxSlots]
	}

	items := make([]engine.ResponseListItem, 0, len(slots))
	stored := make([]string, 0, len(slots))
	for i, slot := range slots {
		items = append(items, engine.ResponseListItem{
			ID:    strconv.Itoa(i + 1),
			Title: slot.Format("Mon 02 Jan 15:04"),
		})
		stored = append(stored, slot.Format(time.RFC3339))
	}

	out := &engine.ExecOutput{
		Response: &engine.Response{
			Text:      fmt.Sprintf("Horarios disponibles para %s:", specialty),
			ListItems: items,
		},
	}
	out.Delta.SetField("__offered_slots", stored)
	return out, nil
}

func (b *BookingBehavior) bookSelection(ctx context.Context, input engine.ExecInput, specialty string, offered any) (*engine.ExecOutput, error) {
	stored := toStringSlice(offered)
	choice := strings.TrimSpace(input.Message.Content.Text)
	index, err := strconv.Atoi(choice)
	if err != nil || index < 1 || index > len(stored) {
		return &engine.ExecOutput{
			Response: &engine.Response{Text: "No reconocí esa opción, responde con el número del horario."},
		}, nil
	}

	slot, err := time.Parse(time.RFC3339, stored[index-1])
	if err != nil {
		return nil, engine.ErrNodeExecutionFailed().WithDetail("reason", "stored slot is not parseable")
	}

	personRef := input.State.SenderID
	if v, ok := input.State.GetField("person_id"); ok {
		personRef = fmt.Sprintf("%v", v)
	}

	ref, err := b.scheduler.Book(ctx, specialty, slot, personRef)
	if err != nil {
		return nil, err
	}

	out := &engine.ExecOutput{
		Response: &engine.Response{
			Text: fmt.Sprintf("Tu cita de %s quedó agendada para %s. Código: %s", specialty, slot.Format("Mon 02 Jan 15:04"), ref),
		},
		Continue: true,
	}
	out.Delta.SetField("booking_ref", ref)
	out.Delta.SetField("booked_slot", stored[index-1])
	out.Delta.Unset = append(out.Delta.Unset, "__offered_slots")
	return out, nil
}

func (b *BookingBehavior) ValidateConfig(config map[string]any) error {
	return nil
}

func toStringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	default:
		return nil
	}
}
