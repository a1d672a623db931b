// Package realtime gathers the live data shown next to a destination:
// exchange rate against USD, time difference and current temperature.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"viajeia-backend/countries"
	"viajeia-backend/weather"
)

const (
	DefaultRatesURL = "https://api.exchangerate-api.com/v4/latest/USD"
	ratesTTL        = time.Hour
	ratesKey        = "USD"
)

var ErrNoInfo = errors.New("No se pudo obtener información en tiempo real para este destino")

type ExchangeRate struct {
	CurrencyCode string   `json:"currency_code"`
	USDToDest    float64  `json:"usd_to_dest"`
	DestToUSD    *float64 `json:"dest_to_usd"`
	LastUpdated  string   `json:"last_updated"`
}

type TimeDifference struct {
	Timezone         string  `json:"timezone"`
	DestinationTime  string  `json:"destination_time"`
	LocalTime        string  `json:"local_time"`
	DifferenceHours  float64 `json:"difference_hours"`
	DifferenceString string  `json:"difference_string"`
}

type Info struct {
	Destination    string          `json:"destination"`
	City           string          `json:"city"`
	CountryCode    *string         `json:"country_code"`
	ExchangeRate   *ExchangeRate   `json:"exchange_rate"`
	TimeDifference *TimeDifference `json:"time_difference"`
	Temperature    *float64        `json:"temperature"`
	WeatherData    *weather.Report `json:"weather_data"`
}

// DestinationParser splits "Ciudad, País" into a weather query and a country code.
type DestinationParser interface {
	ParseDestination(ctx context.Context, destination string) (city, code string, ok bool)
}

type WeatherSource interface {
	Available() bool
	Current(ctx context.Context, city, countryCode string) (*weather.Report, error)
}

type rates struct {
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

type Service struct {
	parser   DestinationParser
	weather  WeatherSource
	catalog  *countries.Catalog
	ratesURL string
	client   *http.Client
	cache    *cache.Cache
	group    singleflight.Group
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Service)

func WithRatesURL(u string) Option { return func(s *Service) { s.ratesURL = u } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(parser DestinationParser, ws WeatherSource, catalog *countries.Catalog, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		parser:   parser,
		weather:  ws,
		catalog:  catalog,
		ratesURL: DefaultRatesURL,
		client:   &http.Client{Timeout: 5 * time.Second},
		cache:    cache.New(ratesTTL, 0),
		now:      time.Now,
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Info collects realtime data for a "Ciudad, País" destination. Every part is
// optional; only an unparseable destination is an error.
func (s *Service) Info(ctx context.Context, destination string) (*Info, error) {
	destination = strings.TrimSpace(destination)
	query, code, ok := s.parser.ParseDestination(ctx, destination)
	if !ok {
		return nil, ErrNoInfo
	}
	city, _, _ := strings.Cut(destination, ",")
	info := &Info{Destination: destination, City: strings.TrimSpace(city)}
	if code != "" {
		info.CountryCode = &code
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.weather != nil && s.weather.Available() {
		g.Go(func() error {
			r, err := s.weather.Current(gctx, query, code)
			if err != nil {
				s.logger.Debug("realtime weather skipped", zap.String("destination", destination), zap.Error(err))
				return nil
			}
			info.WeatherData = r
			t := r.Temperatura
			info.Temperature = &t
			return nil
		})
	}
	g.Go(func() error {
		info.ExchangeRate = s.exchangeRate(gctx, code)
		return nil
	})
	_ = g.Wait()

	info.TimeDifference = s.timeDifference(code)
	return info, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func (s *Service) exchangeRate(ctx context.Context, code string) *ExchangeRate {
	if code == "" {
		return nil
	}
	country, ok := s.catalog.ByCode(code)
	if !ok || country.Currency == "" {
		return nil
	}
	r, err := s.rates(ctx)
	if err != nil {
		s.logger.Warn("exchange rates unavailable", zap.Error(err))
		return nil
	}
	rate, ok := r.Rates[country.Currency]
	if !ok {
		return nil
	}
	out := &ExchangeRate{
		CurrencyCode: country.Currency,
		USDToDest:    round(rate, 4),
		LastUpdated:  r.Date,
	}
	if rate > 0 {
		inv := round(1/rate, 4)
		out.DestToUSD = &inv
	}
	return out
}

func (s *Service) rates(ctx context.Context) (*rates, error) {
	if v, ok := s.cache.Get(ratesKey); ok {
		return v.(*rates), nil
	}
	v, err, _ := s.group.Do(ratesKey, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ratesURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch exchange rates: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("exchange rates status %d", resp.StatusCode)
		}
		var r rates
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return nil, fmt.Errorf("decode exchange rates: %w", err)
		}
		s.cache.SetDefault(ratesKey, &r)
		return &r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rates), nil
}

func (s *Service) timeDifference(code string) *TimeDifference {
	if code == "" {
		return nil
	}
	country, ok := s.catalog.ByCode(code)
	if !ok || country.Timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(country.Timezone)
	if err != nil {
		s.logger.Warn("unknown time zone", zap.String("timezone", country.Timezone), zap.Error(err))
		return nil
	}
	now := s.now()
	dest := now.In(loc)
	_, offset := dest.Zone()
	hours := float64(offset) / 3600

	diff := "Sin diferencia"
	switch {
	case hours > 0:
		diff = fmt.Sprintf("+%dh", int(hours))
	case hours < 0:
		diff = fmt.Sprintf("%dh", int(hours))
	}
	return &TimeDifference{
		Timezone:         country.Timezone,
		DestinationTime:  dest.Format("15:04"),
		LocalTime:        now.UTC().Format("15:04"),
		DifferenceHours:  round(hours, 1),
		DifferenceString: diff,
	}
}
