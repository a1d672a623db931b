package weather

import (
	"context"
	"strings"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"viajeia-backend/ai"
	"viajeia-backend/countries"
	"viajeia-backend/prompts"
)

// CountryCodes resolves country names to ISO 3166-1 alpha-2 codes. The
// catalog answers first; unknown names are asked to the language model once
// and the answer, found or not, is kept for the life of the process.
type CountryCodes struct {
	catalog *countries.Catalog
	gen     ai.Generator
	cache   *cache.Cache
	group   singleflight.Group
	logger  *zap.Logger
}

type CountryCodeStats struct {
	TotalEntries       int `json:"total_entries"`
	EntriesWithCode    int `json:"entries_with_code"`
	EntriesWithoutCode int `json:"entries_without_code"`
}

func NewCountryCodes(catalog *countries.Catalog, gen ai.Generator, logger *zap.Logger) *CountryCodes {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CountryCodes{
		catalog: catalog,
		gen:     gen,
		cache:   cache.New(cache.NoExpiration, 0),
		logger:  logger,
	}
}

// Lookup returns the code for a country name.
func (c *CountryCodes) Lookup(ctx context.Context, name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", false
	}
	if v, ok := c.cache.Get(key); ok {
		code := v.(string)
		return code, code != ""
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		if code := c.catalog.CodeFor(name); code != "" {
			c.cache.Set(key, code, cache.NoExpiration)
			return code, nil
		}
		code, definitive := c.ask(ctx, name)
		if definitive {
			c.cache.Set(key, code, cache.NoExpiration)
		}
		return code, nil
	})
	code := v.(string)
	return code, code != ""
}

// ask queries the model. definitive is false when the call itself failed,
// so a later request may try again.
func (c *CountryCodes) ask(ctx context.Context, name string) (code string, definitive bool) {
	if c.gen == nil {
		return "", false
	}
	prompt, err := prompts.CountryCode(name)
	if err != nil {
		return "", false
	}
	reply, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		c.logger.Warn("country code lookup failed", zap.String("country", name), zap.Error(err))
		return "", false
	}
	code = cleanCode(reply)
	c.logger.Debug("country code resolved by model", zap.String("country", name), zap.String("code", code))
	return code, true
}

func cleanCode(reply string) string {
	r := strings.ToUpper(strings.TrimSpace(reply))
	r = strings.NewReplacer(".", "", " ", "", "`", "", `"`, "", "'", "").Replace(r)
	if r == "NOT_FOUND" || len(r) != 2 {
		return ""
	}
	for i := 0; i < 2; i++ {
		if r[i] < 'A' || r[i] > 'Z' {
			return ""
		}
	}
	return r
}

func (c *CountryCodes) Stats() CountryCodeStats {
	var st CountryCodeStats
	for _, it := range c.cache.Items() {
		st.TotalEntries++
		if it.Object.(string) != "" {
			st.EntriesWithCode++
		} else {
			st.EntriesWithoutCode++
		}
	}
	return st
}

func (c *CountryCodes) Clear() int {
	n := c.cache.ItemCount()
	c.cache.Flush()
	c.logger.Info("country code cache cleared", zap.Int("entries", n))
	return n
}

// ParseDestination splits "Ciudad, País" into the city name to query and the
// country code. Well-known cities use their weather-service spelling and
// supply the country when none is given. ok is false for empty input.
func (c *CountryCodes) ParseDestination(ctx context.Context, destination string) (city, code string, ok bool) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", "", false
	}
	city, country, _ := strings.Cut(destination, ",")
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)
	if city == "" {
		return "", "", false
	}

	if country != "" {
		code, _ = c.Lookup(ctx, country)
	}
	if known, found := c.catalog.CityByName(city); found {
		if code == "" {
			code = known.Country
		}
		if known.WeatherName != "" && code == known.Country {
			city = known.WeatherName
		}
	}
	return city, code, true
}
