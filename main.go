package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"viajeia-backend/ai"
	"viajeia-backend/config"
	"viajeia-backend/conn"
	"viajeia-backend/conversation"
	"viajeia-backend/countries"
	"viajeia-backend/destinations"
	"viajeia-backend/favorites"
	"viajeia-backend/logging"
	"viajeia-backend/middleware"
	"viajeia-backend/migrations"
	"viajeia-backend/photos"
	"viajeia-backend/quota"
	"viajeia-backend/realtime"
	"viajeia-backend/travel"
	"viajeia-backend/weather"
)

var (
	envFile string
	verbose bool
	addr    string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "viajeia",
	Short: "ViajeIA - backend del asistente personal de viajes",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(envFile); err != nil {
			return err
		}
		if err = cfg.Validate(); err != nil {
			return err
		}
		if logger, err = logging.New(cfg.LogLevel, verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the SQL schema for DB_DRIVER",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, dialect, err := conn.Open(cfg)
		if err != nil {
			return err
		}
		if db == nil {
			logger.Info("memory driver, nothing to migrate")
			return nil
		}
		defer db.Close()
		if err := migrations.Migrate(cmd.Context(), db, dialect); err != nil {
			return err
		}
		logger.Info("schema ready", zap.String("dialect", string(dialect)))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "listen address (default :$PORT)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// stores picks the session and favorites storage for the configured driver.
func stores(ctx context.Context, db *sql.DB, dialect conn.Dialect) (conversation.Store, favorites.Repository, error) {
	if db == nil {
		return conversation.NewMemoryStore(cfg.HistoryMaxMessages), favorites.NewMemoryRepository(), nil
	}
	if err := migrations.Migrate(ctx, db, dialect); err != nil {
		return nil, nil, err
	}
	return conversation.NewSQLStore(db, dialect, cfg.HistoryMaxMessages), favorites.NewSQLRepository(db), nil
}

func serve(ctx context.Context) error {
	db, dialect, err := conn.Open(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	store, favRepo, err := stores(ctx, db, dialect)
	if err != nil {
		return err
	}
	logger.Info("storage ready", zap.String("driver", cfg.DBDriver))

	gen, err := ai.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	catalog := countries.Default()
	conv := conversation.NewService(store, logger.Named("conversation"))
	ws := weather.NewService(cfg.OpenWeatherAPIKey, cfg.WeatherCacheTTL, logger.Named("weather"))
	codes := weather.NewCountryCodes(catalog, gen, logger.Named("country_codes"))
	ps := photos.NewService(cfg.UnsplashAPIKey, "", logger.Named("photos"))
	rt := realtime.NewService(codes, ws, catalog, logger.Named("realtime"))
	planner := travel.NewPlanner(conv, destinations.NewDetector(catalog), gen, ws, codes, ps, logger.Named("planner"))

	if !ws.Available() {
		logger.Warn("OPENWEATHER_API_KEY not set, weather disabled")
	}
	if !ps.Available() {
		logger.Warn("UNSPLASH_API_KEY not set, photos disabled")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.RequestLogger(logger.Named("http")), middleware.CORS(cfg.AllowedOrigins))

	travel.NewHandler(travel.Deps{
		Planner:       planner,
		Conversations: conv,
		Realtime:      rt,
		Weather:       ws,
		CountryCodes:  codes,
		Photos:        ps,
		Quota:         quota.NewValidator(cfg.QuotaPerSession, cfg.QuotaDisabled, logger.Named("quota")),
		Logger:        logger.Named("travel"),
	}).RegisterRoutes(r)
	countries.NewHandler(catalog).RegisterRoutes(r)
	favorites.NewHandler(favRepo, logger.Named("favorites")).RegisterRoutes(r)

	listen := addr
	if listen == "" {
		listen = cfg.Addr()
	}
	srv := &http.Server{Addr: listen, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", listen), zap.String("llm", gen.Name()), zap.String("model", gen.Model()))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
