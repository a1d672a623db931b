package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config agrupa la configuración del backend leída del entorno.
type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	LogLevel       string

	LLMProvider  string
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	OpenWeatherAPIKey string
	WeatherCacheTTL   time.Duration
	UnsplashAPIKey    string

	DBDriver   string
	SQLitePath string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	HistoryMaxMessages int
	QuotaPerSession    int
	QuotaDisabled      bool
}

// Load reads envFile (if it exists) into the process environment and builds a Config.
// Variables already present in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("cargando %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Port:               getenv("PORT", "8000"),
		Environment:        getenv("ENVIRONMENT", "development"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LLMProvider:        strings.ToLower(getenv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:       strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:        getenv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:        getenv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenWeatherAPIKey:  strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY")),
		UnsplashAPIKey:     strings.TrimSpace(os.Getenv("UNSPLASH_API_KEY")),
		DBDriver:           strings.ToLower(getenv("DB_DRIVER", "memory")),
		SQLitePath:         getenv("SQLITE_PATH", "data/viajeia.db"),
		DBUser:             os.Getenv("DB_USER"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBHost:             getenv("DB_HOST", "127.0.0.1"),
		DBPort:             getenv("DB_PORT", "3306"),
		DBName:             getenv("DB_NAME", "viajeia"),
		QuotaDisabled:      os.Getenv("QUOTA_DISABLE") == "1",
		HistoryMaxMessages: 20,
		WeatherCacheTTL:    30 * time.Minute,
	}

	origins := getenv("ALLOWED_ORIGINS", "http://localhost:3000")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	if cfg.Environment == "production" {
		cfg.AllowedOrigins = []string{"*"}
	}

	var err error
	if cfg.HistoryMaxMessages, err = intEnv("HISTORY_MAX_MESSAGES", cfg.HistoryMaxMessages); err != nil {
		return nil, err
	}
	if cfg.QuotaPerSession, err = intEnv("QUOTA_PER_SESSION", 0); err != nil {
		return nil, err
	}
	ttl, err := intEnv("WEATHER_CACHE_TTL_SECONDS", int(cfg.WeatherCacheTTL/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.WeatherCacheTTL = time.Duration(ttl) * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("LLM_PROVIDER inválido: %q (use gemini u openai)", c.LLMProvider)
	}
	switch c.DBDriver {
	case "memory", "sqlite", "mysql":
	default:
		return fmt.Errorf("DB_DRIVER inválido: %q (use memory, sqlite o mysql)", c.DBDriver)
	}
	if c.HistoryMaxMessages <= 0 {
		return fmt.Errorf("HISTORY_MAX_MESSAGES debe ser mayor que 0")
	}
	if c.WeatherCacheTTL <= 0 {
		return fmt.Errorf("WEATHER_CACHE_TTL_SECONDS debe ser mayor que 0")
	}
	return nil
}

// Addr is the listen address derived from Port.
func (c *Config) Addr() string { return ":" + c.Port }

// Mask hides a secret for logs: first 10 and last 4 characters only.
func Mask(key string) string {
	if len(key) > 14 {
		return key[:10] + "..." + key[len(key)-4:]
	}
	return "***"
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s debe ser un entero: %w", key, err)
	}
	return n, nil
}
