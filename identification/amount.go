package identification

import (
	"regexp"
	"strconv"
	"strings"
)

// ============================================================================
// Extracción de montos
// ============================================================================

var (
	// Monto con prefijo de moneda explícito: "S/ 150", "s/.1,500.50", "$200".
	currencyAmountRe = regexp.MustCompile(`(?i)(?:s/\.?|\$)\s*([\d][\d.,]*)`)

	// Número suelto dentro del texto. Los candidatos se filtran después.
	bareAmountRe = regexp.MustCompile(`\d[\d.,]*`)

	// Identificador nacional: corrida de 8 a 11 dígitos sin separadores.
	identifierRe = regexp.MustCompile(`^\d{8,11}$`)
)

// ValidIdentifier reporta si el texto, quitando separadores comunes, tiene
// forma de documento de identidad.
func ValidIdentifier(text string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", ".", "").Replace(strings.TrimSpace(text))
	return identifierRe.MatchString(cleaned)
}

// AmountExtractor saca montos de pago del texto libre del usuario. Se usa de
// forma oportunista sobre el primer mensaje ("quiero pagar 150 de mi deuda")
// para no volver a preguntar el monto después de identificar al cliente.
type AmountExtractor struct {
	maxAmount float64
}

// NewAmountExtractor crea un extractor con el tope dado. Cero usa el default.
func NewAmountExtractor(maxAmount float64) *AmountExtractor {
	if maxAmount <= 0 {
		maxAmount = 1_000_000
	}
	return &AmountExtractor{maxAmount: maxAmount}
}

// Extract devuelve el primer monto plausible del texto. Un número con la
// misma forma que un documento de identidad (corrida de 8 a 11 dígitos)
// nunca se interpreta como monto, aunque aparezca junto a palabras de pago:
// "pagar 45678901" es un documento, no 45 millones.
func (e *AmountExtractor) Extract(text string) (float64, bool) {
	// Moneda explícita primero: "S/ 150" es monto sin ambigüedad, salvo que
	// el número tenga forma de documento.
	if m := currencyAmountRe.FindStringSubmatch(text); m != nil {
		if amount, ok := e.parseCandidate(m[1]); ok {
			return amount, true
		}
	}

	for _, candidate := range bareAmountRe.FindAllString(text, -1) {
		if amount, ok := e.parseCandidate(candidate); ok {
			return amount, true
		}
	}
	return 0, false
}

func (e *AmountExtractor) parseCandidate(raw string) (float64, bool) {
	digitsOnly := strings.NewReplacer(".", "", ",", "").Replace(raw)
	if identifierRe.MatchString(digitsOnly) {
		return 0, false
	}

	normalized := normalizeDecimal(raw)
	amount, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	if amount <= 0 || amount > e.maxAmount {
		return 0, false
	}
	return amount, true
}

// normalizeDecimal acepta "1,500.50", "1.500,50", "1,500" y "150,50" y
// devuelve la forma con punto decimal que entiende strconv. Un separador
// seguido de exactamente tres dígitos al final se trata como separador de
// miles ("1,500" = 1500), con uno o dos dígitos como decimal ("150,50").
func normalizeDecimal(raw string) string {
	lastDot := strings.LastIndex(raw, ".")
	lastComma := strings.LastIndex(raw, ",")

	last := lastDot
	if lastComma > last {
		last = lastComma
	}
	if last == -1 {
		return raw
	}

	fraction := raw[last+1:]
	stripped := strings.ReplaceAll(strings.ReplaceAll(raw, ".", ""), ",", "")
	if len(fraction) == 3 {
		// "1,500" o "1.500": separador de miles.
		return stripped
	}
	whole := stripped[:len(stripped)-len(fraction)]
	return whole + "." + fraction
}
