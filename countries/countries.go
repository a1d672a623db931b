package countries

import (
	_ "embed"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"viajeia-backend/textnorm"
)

//go:embed countries.yaml
var catalogYAML []byte

type Country struct {
	Code      string   `yaml:"code" json:"code"`
	Name      string   `yaml:"name" json:"name"`
	NameEN    string   `yaml:"name_en" json:"name_en"`
	Currency  string   `yaml:"currency" json:"currency"`
	Timezone  string   `yaml:"timezone" json:"timezone"`
	PhoneCode int      `yaml:"phone_code" json:"phone_code"`
	Aliases   []string `yaml:"aliases" json:"-"`
}

// City is a well-known city users name without its country.
type City struct {
	Keys        []string `yaml:"keys"`
	Name        string   `yaml:"name"`
	Country     string   `yaml:"country"`
	WeatherName string   `yaml:"weather_name"`
}

// Catalog answers country and city lookups. It is read-only after Load.
type Catalog struct {
	countries []Country
	cities    []City
	byCode    map[string]int
	byName    map[string]int
}

// Load parses a catalog document.
func Load(b []byte) (*Catalog, error) {
	var doc struct {
		Countries []Country `yaml:"countries"`
		Cities    []City    `yaml:"cities"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse country catalog: %w", err)
	}
	c := &Catalog{
		countries: doc.Countries,
		cities:    doc.Cities,
		byCode:    make(map[string]int, len(doc.Countries)),
		byName:    make(map[string]int, len(doc.Countries)*3),
	}
	for i, co := range doc.Countries {
		code := strings.ToUpper(co.Code)
		if len(code) != 2 {
			return nil, fmt.Errorf("country %q: invalid code %q", co.Name, co.Code)
		}
		c.countries[i].Code = code
		c.byCode[code] = i
		for _, n := range append([]string{co.Name, co.NameEN}, co.Aliases...) {
			if n = textnorm.Fold(n); n != "" {
				c.byName[n] = i
			}
		}
	}
	for _, city := range doc.Cities {
		if _, ok := c.byCode[strings.ToUpper(city.Country)]; !ok {
			return nil, fmt.Errorf("city %q: unknown country %q", city.Name, city.Country)
		}
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(catalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

func (c *Catalog) ByCode(code string) (Country, bool) {
	i, ok := c.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Country{}, false
	}
	return c.countries[i], true
}

// ByName matches Spanish or English names and aliases, ignoring case and accents.
func (c *Catalog) ByName(name string) (Country, bool) {
	i, ok := c.byName[textnorm.Fold(name)]
	if !ok {
		return Country{}, false
	}
	return c.countries[i], true
}

// CodeFor returns the ISO code for a country name, or "" when unknown.
func (c *Catalog) CodeFor(name string) string {
	co, _ := c.ByName(name)
	return co.Code
}

func (c *Catalog) Countries() []Country {
	out := make([]Country, len(c.countries))
	copy(out, c.countries)
	return out
}

// Cities returns the well-known cities in match priority order.
func (c *Catalog) Cities() []City {
	out := make([]City, len(c.cities))
	copy(out, c.cities)
	return out
}

// CityByName matches a well-known city by any of its keys.
func (c *Catalog) CityByName(name string) (City, bool) {
	f := textnorm.Fold(name)
	if f == "" {
		return City{}, false
	}
	for _, city := range c.cities {
		for _, k := range city.Keys {
			if textnorm.Fold(k) == f {
				return city, true
			}
		}
	}
	return City{}, false
}

// Destination renders a city as "Ciudad, País".
func (c *Catalog) Destination(city City) string {
	co, ok := c.ByCode(city.Country)
	if !ok {
		return city.Name
	}
	return city.Name + ", " + co.Name
}

type Handler struct {
	catalog *Catalog
}

func NewHandler(catalog *Catalog) *Handler { return &Handler{catalog: catalog} }

// RegisterRoutes registers GET /api/countries.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/api/countries", h.list)
}

func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"countries": h.catalog.Countries()})
}
