package engine

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
)

// ExpressionEvaluator interpola expresiones dentro de la config de un nodo.
type ExpressionEvaluator interface {
	// Evaluate recorre una estructura (la config de una instancia) y
	// reemplaza expresiones {{ ... }} por su valor evaluado contra el
	// contexto de la conversación.
	Evaluate(ctx context.Context, data any, context map[string]any) (any, error)
}

// celEvaluator implementación de ExpressionEvaluator con CEL-Go.
type celEvaluator struct {
	expressionRegex *regexp.Regexp
}

// NewCelEvaluator crea un evaluador de expresiones.
func NewCelEvaluator() ExpressionEvaluator {
	return &celEvaluator{
		expressionRegex: regexp.MustCompile(`\{\{([^}]+)\}\}`),
	}
}

func (e *celEvaluator) Evaluate(ctx context.Context, data any, context map[string]any) (any, error) {
	return e.evaluateRecursive(reflect.ValueOf(data), context)
}

func (e *celEvaluator) evaluateRecursive(val reflect.Value, context map[string]any) (any, error) {
	if val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return nil, nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.String:
		return e.evaluateString(val.String(), context)

	case reflect.Map:
		newMap := make(map[string]any)
		for _, key := range val.MapKeys() {
			evaluatedVal, err := e.evaluateRecursive(val.MapIndex(key), context)
			if err != nil {
				return nil, err
			}
			newMap[key.String()] = evaluatedVal
		}
		return newMap, nil

	case reflect.Slice:
		newSlice := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			evaluatedItem, err := e.evaluateRecursive(val.Index(i), context)
			if err != nil {
				return nil, err
			}
			newSlice[i] = evaluatedItem
		}
		return newSlice, nil

	default:
		return val.Interface(), nil
	}
}

// evaluateString encuentra y evalúa todas las expresiones de un string.
func (e *celEvaluator) evaluateString(s string, context map[string]any) (any, error) {
	matches := e.expressionRegex.FindStringSubmatch(s)

	// Si el string es *solo* una expresión (ej. "{{pending_payment_amount}}")
	// se retorna el valor tipado, no su representación en string.
	if len(matches) > 0 && s == matches[0] {
		expr := strings.TrimSpace(matches[1])

		// Lookup directo por path antes de compilar CEL
		if value, found := getNestedValue(context, expr); found {
			return value, nil
		}

		return e.evaluateCEL(expr, context)
	}

	var evalError error
	resultString := e.expressionRegex.ReplaceAllStringFunc(s, func(match string) string {
		expr := strings.TrimSpace(e.expressionRegex.FindStringSubmatch(match)[1])

		if value, found := getNestedValue(context, expr); found {
			return fmt.Sprintf("%v", value)
		}

		evaluatedVal, err := e.evaluateCEL(expr, context)
		if err != nil {
			evalError = err
			return match
		}
		return fmt.Sprintf("%v", evaluatedVal)
	})

	if evalError != nil {
		return nil, evalError
	}

	return resultString, nil
}

// evaluateCEL compila y ejecuta una expresión CEL.
func (e *celEvaluator) evaluateCEL(expression string, context map[string]any) (any, error) {
	var envOptions []cel.EnvOption
	for key := range context {
		envOptions = append(envOptions, cel.Variable(key, cel.DynType))
	}

	env, err := cel.NewEnv(envOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	parsed, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to parse expression '%s': %w", expression, issues.Err())
	}

	// Los errores de Check no rechazan: el contexto es dinámico
	checked, _ := env.Check(parsed)
	if checked == nil {
		checked = parsed
	}

	prg, err := env.Program(checked)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for '%s': %w", expression, err)
	}

	out, _, err := prg.Eval(context)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression '%s': %w", expression, err)
	}

	nativeValue, err := e.convertToNative(out)
	if err != nil {
		return nil, fmt.Errorf("failed to convert CEL result for '%s': %w", expression, err)
	}

	return nativeValue, nil
}

// convertToNative convierte un ref.Val de CEL a un tipo nativo de Go.
func (e *celEvaluator) convertToNative(val ref.Val) (any, error) {
	if val == nil || val.Value() == nil {
		return nil, nil
	}
	native, err := val.ConvertToNative(reflect.TypeOf(map[string]any{}))
	if err == nil {
		return native, nil
	}
	return val.Value(), nil
}

// getNestedValue resuelve un path con puntos dentro del contexto.
func getNestedValue(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	current := any(data)

	for _, part := range parts {
		switch v := current.(type) {
		case map[string]any:
			if val, ok := v[part]; ok {
				current = val
			} else {
				return nil, false
			}
		default:
			return nil, false
		}
	}

	return current, true
}
