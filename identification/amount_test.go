package identification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		text  string
		valid bool
	}{
		{"45678901", true},
		{"4567890123", true},
		{"45678901234", true},
		{"45 678 901", true},
		{"45-678-901", true},
		{"45.678.901", true},
		{"  45678901  ", true},
		// 7 dígitos es corto, 12 es largo
		{"4567890", false},
		{"456789012345", false},
		{"4567890a", false},
		{"mi documento", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidIdentifier(tt.text), "text=%q", tt.text)
	}
}

func TestAmountExtractorCurrencyPrefix(t *testing.T) {
	e := NewAmountExtractor(0)

	tests := []struct {
		text   string
		amount float64
		found  bool
	}{
		{"quiero pagar S/ 150", 150, true},
		{"s/.1,500.50 por favor", 1500.50, true},
		{"$200", 200, true},
		{"S/150.75", 150.75, true},
	}
	for _, tt := range tests {
		amount, found := e.Extract(tt.text)
		assert.Equal(t, tt.found, found, "text=%q", tt.text)
		assert.InDelta(t, tt.amount, amount, 0.001, "text=%q", tt.text)
	}
}

func TestAmountExtractorBareNumber(t *testing.T) {
	e := NewAmountExtractor(0)

	amount, found := e.Extract("quiero pagar 150 de mi deuda")
	assert.True(t, found)
	assert.InDelta(t, 150.0, amount, 0.001)

	_, found = e.Extract("hola, ¿cómo estás?")
	assert.False(t, found)
}

func TestAmountExtractorIdentifierShapedNeverAmount(t *testing.T) {
	e := NewAmountExtractor(0)

	// una corrida de 8 a 11 dígitos es un documento, no 45 millones
	_, found := e.Extract("pagar 45678901")
	assert.False(t, found)

	_, found = e.Extract("S/ 45678901")
	assert.False(t, found)

	// el documento no tapa un monto real en el mismo mensaje
	amount, found := e.Extract("soy 45678901 y quiero pagar 150")
	assert.True(t, found)
	assert.InDelta(t, 150.0, amount, 0.001)
}

func TestAmountExtractorMaxAmount(t *testing.T) {
	e := NewAmountExtractor(500)

	_, found := e.Extract("pagar 1200")
	assert.False(t, found)

	amount, found := e.Extract("pagar 499")
	assert.True(t, found)
	assert.InDelta(t, 499.0, amount, 0.001)
}

func TestNormalizeDecimal(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"150", "150"},
		{"150.50", "150.50"},
		{"150,50", "150.50"},
		// separador de miles, en estilo gringo y latino
		{"1,500", "1500"},
		{"1.500", "1500"},
		{"1,500.50", "1500.50"},
		{"1.500,50", "1500.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeDecimal(tt.raw), "raw=%q", tt.raw)
	}
}
