package countries

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLookups(t *testing.T) {
	c := Default()

	es, ok := c.ByCode("es")
	require.True(t, ok)
	assert.Equal(t, "España", es.Name)
	assert.Equal(t, "EUR", es.Currency)
	assert.Equal(t, "Europe/Madrid", es.Timezone)

	for _, name := range []string{"España", "espana", "Spain", " ESPAÑA "} {
		assert.Equal(t, "ES", c.CodeFor(name), name)
	}
	assert.Equal(t, "US", c.CodeFor("EEUU"))
	assert.Equal(t, "GB", c.CodeFor("Inglaterra"))
	assert.Equal(t, "NO", c.CodeFor("Noruega"))
	assert.Equal(t, "", c.CodeFor("Atlántida"))
}

func TestCitiesKeepOrder(t *testing.T) {
	c := Default()
	cities := c.Cities()
	require.NotEmpty(t, cities)
	assert.Equal(t, "París", cities[0].Name)
	assert.Equal(t, "París, Francia", c.Destination(cities[0]))

	city, ok := c.CityByName("TOKYO")
	require.True(t, ok)
	assert.Equal(t, "Tokio", city.Name)
	assert.Equal(t, "JP", city.Country)
	_, ok = c.CityByName("Atlantis")
	assert.False(t, ok)
}

func TestLoadRejectsBadData(t *testing.T) {
	_, err := Load([]byte("countries:\n  - {code: ESP, name: España}\n"))
	assert.Error(t, err)

	_, err = Load([]byte("countries:\n  - {code: ES, name: España}\ncities:\n  - {keys: [lima], name: Lima, country: PE}\n"))
	assert.Error(t, err)

	_, err = Load([]byte("countries: ["))
	assert.Error(t, err)
}

func TestListHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(Default()).RegisterRoutes(r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/countries", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Countries []Country `json:"countries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Countries, len(Default().Countries()))
	assert.Equal(t, "ES", body.Countries[0].Code)
}
