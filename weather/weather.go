// Package weather fetches current conditions from OpenWeatherMap with a TTL
// cache in front.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"
	fetchTimeout   = 10 * time.Second
)

var (
	ErrUnavailable  = errors.New("Servicio de clima no disponible")
	ErrCityNotFound = errors.New("ciudad no encontrada")
)

type Wind struct {
	Velocidad float64 `json:"velocidad"`
	Direccion float64 `json:"direccion"`
}

// Report is the formatted current weather returned to the client.
type Report struct {
	Ciudad           string   `json:"ciudad"`
	Pais             string   `json:"pais"`
	Temperatura      float64  `json:"temperatura"`
	SensacionTermica float64  `json:"sensacion_termica"`
	Descripcion      string   `json:"descripcion"`
	Humedad          int      `json:"humedad"`
	Viento           Wind     `json:"viento"`
	Presion          int      `json:"presion"`
	Visibilidad      *float64 `json:"visibilidad"`
	Icono            string   `json:"icono"`
	CodigoClima      int      `json:"codigo_clima"`
}

type CacheStats struct {
	TotalEntries   int `json:"total_entries"`
	ValidEntries   int `json:"valid_entries"`
	ExpiredEntries int `json:"expired_entries"`
	TTLSeconds     int `json:"ttl_seconds"`
	TTLMinutes     int `json:"ttl_minutes"`
}

type Service struct {
	apiKey  string
	baseURL string
	client  *http.Client
	ttl     time.Duration
	cache   *cache.Cache
	group   singleflight.Group
	logger  *zap.Logger

	// unavailable latches after auth, quota or network failures.
	unavailable atomic.Bool
}

type Option func(*Service)

func WithBaseURL(u string) Option { return func(s *Service) { s.baseURL = u } }

func WithHTTPClient(c *http.Client) Option { return func(s *Service) { s.client = c } }

func NewService(apiKey string, ttl time.Duration, logger *zap.Logger, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		ttl:     ttl,
		cache:   cache.New(ttl, 0),
		logger:  logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Available reports whether an API key is configured.
func (s *Service) Available() bool { return s.apiKey != "" }

// Reset clears the unavailability latch.
func (s *Service) Reset() { s.unavailable.Store(false) }

// Reachable is false once the API failed with an auth, quota or network error.
func (s *Service) Reachable() bool { return !s.unavailable.Load() }

func cacheKey(city, countryCode string) string {
	city = strings.ToLower(strings.TrimSpace(city))
	if countryCode = strings.ToLower(strings.TrimSpace(countryCode)); countryCode != "" {
		return city + "," + countryCode
	}
	return city
}

// Current returns the weather for city, optionally narrowed by an ISO country code.
func (s *Service) Current(ctx context.Context, city, countryCode string) (*Report, error) {
	if !s.Available() || s.unavailable.Load() {
		return nil, ErrUnavailable
	}
	if strings.TrimSpace(city) == "" {
		return nil, ErrCityNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rand.Float64() < 0.1 {
		s.cache.DeleteExpired()
	}

	key := cacheKey(city, countryCode)
	if v, ok := s.cache.Get(key); ok {
		s.logger.Debug("weather cache hit", zap.String("key", key))
		return v.(*Report), nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// Shared by every waiter, so one caller going away must not cancel it.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		r, err := s.fetch(fctx, city, countryCode)
		if err != nil {
			return nil, err
		}
		s.cache.SetDefault(key, r)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Report), nil
}

type owmResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
	Visibility float64 `json:"visibility"`
}

func (s *Service) fetch(ctx context.Context, city, countryCode string) (*Report, error) {
	q := city
	if countryCode != "" {
		q = city + "," + countryCode
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("appid", s.apiKey)
	params.Set("units", "metric")
	params.Set("lang", "es")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if transient(ctx, err) {
			return nil, fmt.Errorf("weather request: %w", err)
		}
		s.logger.Warn("weather api unreachable, disabling until reset", zap.String("query", q), zap.Error(err))
		s.unavailable.Store(true)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		s.logger.Info("weather city not found", zap.String("query", q))
		return nil, ErrCityNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
		s.logger.Error("weather api rejected request, disabling until reset", zap.Int("status", resp.StatusCode))
		s.unavailable.Store(true)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("weather api status %d", resp.StatusCode)
	}

	var data owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}
	return format(data), nil
}

// transient reports errors that say nothing about the API itself: the
// request was cancelled or simply took too long.
func transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, n := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + strings.ToLower(s[n:])
}

func format(d owmResponse) *Report {
	r := &Report{
		Ciudad:           d.Name,
		Pais:             d.Sys.Country,
		Temperatura:      round1(d.Main.Temp),
		SensacionTermica: round1(d.Main.FeelsLike),
		Humedad:          d.Main.Humidity,
		Viento:           Wind{Velocidad: round1(d.Wind.Speed * 3.6), Direccion: d.Wind.Deg},
		Presion:          d.Main.Pressure,
	}
	if r.Ciudad == "" {
		r.Ciudad = "Desconocida"
	}
	if len(d.Weather) > 0 {
		r.Descripcion = capitalize(d.Weather[0].Description)
		r.Icono = d.Weather[0].Icon
		r.CodigoClima = d.Weather[0].ID
	}
	if d.Visibility > 0 {
		v := round1(d.Visibility / 1000)
		r.Visibilidad = &v
	}
	return r
}

func decimal(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

// FormatMessage renders the weather block appended to answers.
func FormatMessage(r *Report) string {
	if r == nil {
		return ""
	}
	place := r.Ciudad
	if r.Pais != "" {
		place += ", " + r.Pais
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🌤️ **Clima Actual en %s:**\n", place)
	fmt.Fprintf(&sb, "• T: %s°C / ST: %s°C\n", decimal(r.Temperatura), decimal(r.SensacionTermica))
	fmt.Fprintf(&sb, "• Condiciones: %s\n", r.Descripcion)
	fmt.Fprintf(&sb, "• Humedad: %d%%\n", r.Humedad)
	if r.Viento.Velocidad > 0 {
		fmt.Fprintf(&sb, "• Viento: %s km/h\n", decimal(r.Viento.Velocidad))
	}
	return sb.String()
}

func (s *Service) CacheStats() CacheStats {
	total := s.cache.ItemCount()
	valid := len(s.cache.Items())
	return CacheStats{
		TotalEntries:   total,
		ValidEntries:   valid,
		ExpiredEntries: total - valid,
		TTLSeconds:     int(s.ttl / time.Second),
		TTLMinutes:     int(s.ttl / time.Minute),
	}
}

// ClearCache drops every cached report and returns how many there were.
func (s *Service) ClearCache() int {
	n := s.cache.ItemCount()
	s.cache.Flush()
	s.logger.Info("weather cache cleared", zap.Int("entries", n))
	return n
}
