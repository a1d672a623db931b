package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructured(t *testing.T) {
	p, err := Structured(Travel{Question: "¿Qué hago en Roma?", Destination: "Roma, Italia"})
	require.NoError(t, err)
	assert.Contains(t, p, "Alex")
	assert.Contains(t, p, "Destino del viaje: Roma, Italia")
	assert.Contains(t, p, "<<<PREGUNTA>>>\n¿Qué hago en Roma?\n<<</PREGUNTA>>>")
	for _, key := range []string{"alojamiento", "comida_local", "lugares_imperdibles", "consejos_locales", "estimacion_costos"} {
		assert.Contains(t, p, `"`+key+`"`)
	}
	assert.NotContains(t, p, "HISTORIAL")
}

func TestContextualDefaults(t *testing.T) {
	p, err := Contextual(Travel{Question: "¿Y el clima?"})
	require.NoError(t, err)
	assert.Contains(t, p, "el destino actual")
	assert.Contains(t, p, "No hay historial previo")

	p, err = Contextual(Travel{Question: "¿Y el clima?", Destination: "Lima, Perú", History: "Usuario: hola"})
	require.NoError(t, err)
	assert.Contains(t, p, "Estamos conversando sobre: Lima, Perú")
	assert.Contains(t, p, "<<<HISTORIAL>>>\nUsuario: hola\n<<</HISTORIAL>>>")
}

func TestTemplatesDoNotEscape(t *testing.T) {
	p, err := SearchDestinations(`playas & "sol"`, 8)
	require.NoError(t, err)
	assert.Contains(t, p, `playas & "sol"`)
	assert.Contains(t, p, "hasta 8 destinos")
}

func TestListAndCountryPrompts(t *testing.T) {
	p, err := PopularDestinations(5)
	require.NoError(t, err)
	assert.Contains(t, p, "los 5 destinos")

	p, err = CountryCode("Francia")
	require.NoError(t, err)
	assert.Contains(t, p, "<<<PAIS>>>\nFrancia\n<<</PAIS>>>")
	assert.Contains(t, p, "NOT_FOUND")
}
