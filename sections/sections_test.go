package sections

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestParseJSONFenced(t *testing.T) {
	answer := "Aquí tienes tu plan:\n```json\n{\n" +
		`"alojamiento": ["Hotel Centro", "Hostal Sol"],` +
		`"comida_local": "Ceviche",` +
		`"lugares_imperdibles": [{"nombre": "Machu Picchu", "precio": 70}],` +
		`"consejos_locales": [],` +
		`"estimacion_costos": ["Hotel: 80 USD/noche"],` +
		`"extra": ["ignorado"]` +
		"\n}\n```"
	p := Parse(answer)
	assert.Equal(t, FormatJSON, p.Format)
	want := map[Key][]string{
		Alojamiento:        {"Hotel Centro", "Hostal Sol"},
		ComidaLocal:        {"Ceviche"},
		LugaresImperdibles: {"nombre: Machu Picchu - precio: 70"},
		EstimacionCostos:   {"Hotel: 80 USD/noche"},
	}
	if diff := cmp.Diff(want, p.Sections); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
}

func TestParseJSONWrapped(t *testing.T) {
	p := Parse(`{"itinerario": {"ALOJAMIENTO": ["Riad Medina"], "Estimación de costos": ["50 EUR"]}}`)
	assert.Equal(t, FormatJSON, p.Format)
	assert.Equal(t, []string{"Riad Medina"}, p.Sections[Alojamiento])
	assert.Equal(t, []string{"50 EUR"}, p.Sections[EstimacionCostos])
}

func TestParseLegacyText(t *testing.T) {
	answer := `¡Hola! Soy Alex.

## 🏨 ALOJAMIENTO
- Hotel Plaza
- **Casa Andina**

**Comida local:**
• Lomo saltado
1. Ají de gallina

LUGARES IMPERDIBLES: Plaza de Armas
* Barranco

ESTIMACIÓN DE COSTOS:
- 100 USD por día`
	p := Parse(answer)
	assert.Equal(t, FormatText, p.Format)
	want := map[Key][]string{
		Alojamiento:        {"Hotel Plaza", "Casa Andina"},
		ComidaLocal:        {"Lomo saltado", "Ají de gallina"},
		LugaresImperdibles: {"Plaza de Armas", "Barranco"},
		EstimacionCostos:   {"100 USD por día"},
	}
	if diff := cmp.Diff(want, p.Sections); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
}

func TestParseListItemNamedLikeSection(t *testing.T) {
	answer := `LUGARES IMPERDIBLES:
- Consejos: lleva efectivo al mercado
- Comida local: prueba el ceviche en Surquillo
- **Consejos locales:** reserva con tiempo
- ALOJAMIENTO: Hotel Miraflores`
	p := Parse(answer)
	want := map[Key][]string{
		LugaresImperdibles: {"Consejos: lleva efectivo al mercado", "Comida local: prueba el ceviche en Surquillo"},
		ConsejosLocales:    {"reserva con tiempo"},
		Alojamiento:        {"Hotel Miraflores"},
	}
	if diff := cmp.Diff(want, p.Sections); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRawFallback(t *testing.T) {
	p := Parse("En Lima hace calor en febrero, lleva ropa ligera.")
	assert.Equal(t, FormatRaw, p.Format)
	assert.True(t, p.Empty())
	assert.Equal(t, "En Lima hace calor en febrero, lleva ropa ligera.", p.Raw)

	p = Parse("{no es json}")
	assert.Equal(t, FormatRaw, p.Format)
}

func TestMerge(t *testing.T) {
	merged := Merge([]string{
		`{"alojamiento": ["Hotel A", "Hotel B"]}`,
		"ALOJAMIENTO\n- hotel a\n- Hotel C\nCONSEJOS LOCALES\n- Usa el metro",
		"Sin secciones aquí",
	})
	assert.Equal(t, []string{"Hotel A", "Hotel B", "Hotel C"}, merged[Alojamiento])
	assert.Equal(t, []string{"Usa el metro"}, merged[ConsejosLocales])
	assert.NotContains(t, merged, ComidaLocal)
}

func TestTitlesAndKeys(t *testing.T) {
	titles := Titles()
	assert.Len(t, titles, 5)
	assert.Equal(t, Alojamiento, titles[0].Key)
	assert.Equal(t, "ESTIMACIÓN DE COSTOS", Title(EstimacionCostos))
	assert.Equal(t, "", Title("otro"))

	k, ok := KeyFor("lugares_imperdibles")
	assert.True(t, ok)
	assert.Equal(t, LugaresImperdibles, k)
	_, ok = KeyFor("transporte")
	assert.False(t, ok)
}
