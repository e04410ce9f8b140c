package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"golang.org/x/crypto/bcrypt"

	"github.com/sbilibin2017/watertemp-auth/docs"
	"github.com/sbilibin2017/watertemp-auth/internal/handlers"
	"github.com/sbilibin2017/watertemp-auth/internal/jwt"
	"github.com/sbilibin2017/watertemp-auth/internal/logger"
	"github.com/sbilibin2017/watertemp-auth/internal/middlewares"
	"github.com/sbilibin2017/watertemp-auth/internal/migrations"
	"github.com/sbilibin2017/watertemp-auth/internal/passwords"
	"github.com/sbilibin2017/watertemp-auth/internal/repositories"
	"github.com/sbilibin2017/watertemp-auth/internal/services"

	_ "github.com/jackc/pgx/v5/stdlib"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

// config holds all runtime settings. Every field maps to one environment variable.
type config struct {
	AppHost  string `env:"APP_HOST" envDefault:"localhost"`
	AppPort  string `env:"APP_PORT" envDefault:"8080"`
	LogLevel string `env:"APP_LOG_LEVEL" envDefault:"info"`

	PostgresHost         string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort         int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser         string `env:"POSTGRES_USER" envDefault:"user"`
	PostgresPassword     string `env:"POSTGRES_PASSWORD" envDefault:"password"`
	PostgresDB           string `env:"POSTGRES_DB" envDefault:"database"`
	PostgresMaxOpenConns int    `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"16"`
	PostgresMaxIdleConns int    `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"8"`
	DBAutoMigrate        bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	DBConnectRetries     int    `env:"DB_CONNECT_RETRIES" envDefault:"10"`

	// Empty host disables the cache.
	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// No brokers disables event publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"account-events"`

	JWTSecretKey          string `env:"JWT_SECRET_KEY,required"`
	JWTTokenLifetimeHours int    `env:"JWT_TOKEN_LIFETIME_HOURS" envDefault:"24"`
	JWTClockSkewSeconds   int    `env:"JWT_CLOCK_SKEW_SECONDS" envDefault:"30"`

	MinPasswordLength int `env:"AUTH_MIN_PASSWORD_LENGTH" envDefault:"8"`
	BcryptCost        int `env:"AUTH_BCRYPT_COST" envDefault:"10"`
	LoginDelayMS      int `env:"AUTH_LOGIN_DELAY_MS" envDefault:"0"`

	// Empty means any origin.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:";"`
}

// @title watertemp-auth API
// @version 1.0.0
// @description Single-account authentication service for the water temperature dashboard
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	printBuildInfo()
	configPath := parseFlags()

	cfg, err := parseConfig(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}

// printBuildInfo prints the build version, commit hash, and build date.
func printBuildInfo() {
	fmt.Printf("Starting service version %s, commit %s, build %s\n", buildVersion, buildCommit, buildDate)
}

// parseFlags parses command-line flags and returns the config file path.
func parseFlags() string {
	c := flag.String("c", "config.env", "Path to configuration file")
	flag.Parse()
	return *c
}

// parseConfig loads environment variables from a file, parses them and validates the result.
// A missing file is not an error; the process environment is used as is.
func parseConfig(path string) (*config, error) {
	_ = godotenv.Load(path)

	cfg := &config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	cfg.CORSAllowedOrigins = compact(cfg.CORSAllowedOrigins)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *config) validate() error {
	if _, err := jwt.ParseSecret(c.JWTSecretKey); err != nil {
		return fmt.Errorf("config: JWT_SECRET_KEY: %w", err)
	}
	if c.JWTTokenLifetimeHours < 1 || c.JWTTokenLifetimeHours > 168 {
		return errors.New("config: JWT_TOKEN_LIFETIME_HOURS must be between 1 and 168")
	}
	if c.JWTClockSkewSeconds < 0 {
		return errors.New("config: JWT_CLOCK_SKEW_SECONDS must not be negative")
	}
	if c.MinPasswordLength < 6 || c.MinPasswordLength > 128 {
		return errors.New("config: AUTH_MIN_PASSWORD_LENGTH must be between 6 and 128")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("config: AUTH_BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.LoginDelayMS < 0 {
		return errors.New("config: AUTH_LOGIN_DELAY_MS must not be negative")
	}
	if c.DBConnectRetries < 1 {
		return errors.New("config: DB_CONNECT_RETRIES must be at least 1")
	}
	return nil
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// run initializes the logger, database, optional Redis cache and Kafka writer, and the HTTP server.
// It sets up routes, applies middleware, and handles graceful shutdown.
func run(ctx context.Context, cfg *config) error {
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Sync()
	logger.Log.Infof("Logger initialized with level %s", cfg.LogLevel)

	tokens, err := jwt.New(
		jwt.WithSecretKey(cfg.JWTSecretKey),
		jwt.WithExpiration(time.Duration(cfg.JWTTokenLifetimeHours)*time.Hour),
		jwt.WithClockSkew(time.Duration(cfg.JWTClockSkewSeconds)*time.Second),
	)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}

	hasher, err := passwords.NewHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}

	// Connect to PostgreSQL
	db, err := connectPostgres(ctx, cfg)
	if err != nil {
		return fmt.Errorf("PostgreSQL connection error: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.PostgresMaxOpenConns)
	db.SetMaxIdleConns(cfg.PostgresMaxIdleConns)

	if cfg.DBAutoMigrate {
		if err := migrations.Run(ctx, db.DB); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	// Optional collaborators stay nil interfaces when disabled.
	var existCache services.AccountsExistCache
	if cfg.RedisHost != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("Redis connection error: %w", err)
		}
		defer rdb.Close()
		existCache = repositories.NewAccountsExistCacheRepository(rdb)
	} else {
		logger.Log.Info("Redis not configured, accounts-exist cache disabled")
	}

	var events services.KafkaWriter
	if len(cfg.KafkaBrokers) > 0 {
		kw := &kafka.Writer{
			Addr:                   kafka.TCP(cfg.KafkaBrokers...),
			Topic:                  cfg.KafkaTopic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		}
		defer kw.Close()
		events = kw
	} else {
		logger.Log.Info("Kafka not configured, account events disabled")
	}

	// Initialize repositories
	readRepo := repositories.NewAccountReadRepository(db, middlewares.GetTxFromContext)
	writeRepo := repositories.NewAccountWriteRepository(db, middlewares.GetTxFromContext)

	// Initialize services
	accountService, err := services.NewAccountService(readRepo, writeRepo, hasher, existCache, events, cfg.MinPasswordLength)
	if err != nil {
		return err
	}
	authService := services.NewAuthService(accountService, tokens, time.Duration(cfg.LoginDelayMS)*time.Millisecond)

	addr := fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort)
	docs.SwaggerInfo.Host = addr

	srv := &http.Server{
		Addr:    addr,
		Handler: newRouter(db, tokens, accountService, authService, cfg.CORSAllowedOrigins),
	}

	// Graceful shutdown
	errChan := make(chan error, 1)
	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	go func() {
		logger.Log.Infof("HTTP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	select {
	case <-ctxShutdown.Done():
		logger.Log.Info("Shutdown signal received, stopping HTTP server...")
	case serveErr := <-errChan:
		return serveErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("HTTP server shutdown error", "error", err)
	}

	logger.Log.Info("HTTP server stopped gracefully")
	return nil
}

// connectPostgres opens the pool, retrying once per second while the database is not reachable yet.
func connectPostgres(ctx context.Context, cfg *config) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB)
	logger.Log.Infow("Connecting to PostgreSQL", "host", cfg.PostgresHost, "port", cfg.PostgresPort, "db", cfg.PostgresDB)

	backoff := retry.WithMaxRetries(uint64(cfg.DBConnectRetries-1), retry.NewConstant(time.Second))

	var db *sqlx.DB
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, err := sqlx.ConnectContext(ctx, "pgx", dsn)
		if err != nil {
			logger.Log.Warnw("PostgreSQL not ready", "error", err)
			return retry.RetryableError(err)
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// newRouter wires handlers and middleware. /api/auth carries the account routes,
// /health and /swagger sit outside the base path.
func newRouter(
	db *sqlx.DB,
	tokens middlewares.Tokener,
	accounts *services.AccountService,
	auth *services.AuthService,
	allowedOrigins []string,
) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewares.LoggingMiddleware(logger.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", handlers.NewHealthHandler(db))

	r.Route("/api/auth", func(r chi.Router) {
		// Public routes
		r.Get("/users/exists", handlers.NewAccountsExistHandler(accounts))
		r.Post("/register", handlers.NewRegisterHandler(accounts))
		r.Post("/login", handlers.NewLoginHandler(auth))

		// Protected routes with JWT middleware
		r.Group(func(r chi.Router) {
			r.Use(middlewares.AuthMiddleware(tokens))
			r.Get("/profile", handlers.NewGetProfileHandler(accounts))
			r.With(middlewares.TxMiddleware(db)).Put("/profile", handlers.NewUpdateProfileHandler(accounts))
			r.With(middlewares.TxMiddleware(db)).Post("/profile/change-password", handlers.NewChangePasswordHandler(accounts))
		})
	})

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	return r
}
