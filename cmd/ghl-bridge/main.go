package main

// @title           GHL Bridge API
// @version         1.0
// @description     OAuth2 bridge and thin proxy between a directory frontend and the GoHighLevel API.

// @contact.name   GHL Bridge maintainers
// @contact.url    https://github.com/custodia-labs/ghl-bridge/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session token from the OAuth callback. Format: "Bearer {token}"

// @securityDefinitions.apikey AdminKey
// @in header
// @name X-Admin-Key
// @description Operator key

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	_ "github.com/custodia-labs/ghl-bridge/docs"
	"github.com/custodia-labs/ghl-bridge/internal/adapters/driven/auth"
	"github.com/custodia-labs/ghl-bridge/internal/adapters/driven/ghl"
	"github.com/custodia-labs/ghl-bridge/internal/adapters/driven/memory"
	"github.com/custodia-labs/ghl-bridge/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/ghl-bridge/internal/adapters/driven/redis"
	"github.com/custodia-labs/ghl-bridge/internal/adapters/driving/http"
	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driven"
	"github.com/custodia-labs/ghl-bridge/internal/core/services"
)

var version = "dev"

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	// Get run mode from environment (RUN_MODE) or command line arg
	mode := getEnv("RUN_MODE", "all")
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	if mode == "hash-admin-key" {
		runHashAdminKey(os.Args[2:])
		return
	}

	log.Printf("ghl-bridge %s starting in %s mode", version, mode)

	// Configuration from environment
	provider := &domain.AuthProvider{
		AuthURL:      getEnv("GHL_AUTH_URL", domain.DefaultAuthURL),
		TokenURL:     getEnv("GHL_TOKEN_URL", domain.DefaultTokenURL),
		ClientID:     getEnv("GHL_CLIENT_ID", ""),
		ClientSecret: getEnv("GHL_CLIENT_SECRET", ""),
		RedirectURL:  getEnv("GHL_REDIRECT_URI", ""),
		Scopes:       strings.Fields(getEnv("GHL_SCOPES", "products.readonly products.write medias.readonly medias.write locations.readonly")),
		UserType:     domain.UserType(getEnv("GHL_USER_TYPE", string(domain.UserTypeLocation))),
	}
	if mode != "worker" && !provider.IsConfigured() {
		log.Fatal("GHL_CLIENT_ID and GHL_CLIENT_SECRET are required")
	}
	if mode != "worker" && provider.RedirectURL == "" {
		log.Fatal("GHL_REDIRECT_URI is required")
	}

	sessionSecret := getEnv("SESSION_SECRET", "development-secret-change-in-production")
	port := getEnvInt("PORT", 8080)
	databaseURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")
	storeBackend := getEnv("STORE_BACKEND", "")
	if storeBackend == "" {
		storeBackend = "memory"
		if databaseURL != "" {
			storeBackend = "postgres"
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(getEnv("LOG_LEVEL", "info"))}))
	slog.SetDefault(logger)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ===== Installation store =====
	var (
		installationStore driven.InstallationStore
		stateStore        driven.OAuthStateStore
		distributedLock   driven.DistributedLock
		storePinger       http.Pinger
	)

	switch storeBackend {
	case "postgres":
		if databaseURL == "" {
			log.Fatal("DATABASE_URL is required for the postgres store")
		}
		encryptionSecret := getEnv("ENCRYPTION_SECRET", "")
		if encryptionSecret == "" {
			log.Fatal("ENCRYPTION_SECRET is required for the postgres store")
		}

		log.Println("Connecting to PostgreSQL...")
		dbConfig := postgres.Config{
			URL:             databaseURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300)) * time.Second,
			ConnMaxIdleTime: time.Duration(getEnvInt("DB_CONN_MAX_IDLE_SEC", 60)) * time.Second,
		}
		db, err := postgres.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		// Initialize schema (idempotent)
		if err := db.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		log.Println("PostgreSQL connected and schema initialized")

		encryptor, err := postgres.NewSecretEncryptorFromSecret(encryptionSecret)
		if err != nil {
			log.Fatalf("Failed to derive encryption key: %v", err)
		}
		installationStore = postgres.NewInstallationStore(db, encryptor)
		stateStore = postgres.NewOAuthStateStore(db)
		distributedLock = postgres.NewAdvisoryLock(db)
		storePinger = db
	case "memory":
		log.Println("Using in-memory installation store (records are lost on restart)")
		store := memory.NewInstallationStore()
		installationStore = store
		stateStore = memory.NewOAuthStateStore()
		storePinger = store
	default:
		log.Fatalf("Unknown STORE_BACKEND: %s (use: memory or postgres)", storeBackend)
	}

	// ===== Initialize Redis (optional) =====
	var redisPinger http.Pinger
	if redisURL != "" {
		log.Println("Connecting to Redis...")
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")

		redisLock := redisadapter.NewLock(redisClient)
		distributedLock = redisLock
		stateStore = redisadapter.NewOAuthStateStore(redisClient)
		redisPinger = redisLock
		log.Println("Using Redis refresh lock and OAuth state store")
	}

	// ===== Driven adapters (infrastructure) =====
	authAdapter := auth.NewAdapter(sessionSecret)
	oauthClient := ghl.NewOAuthClient(nil)

	apiConfig := ghl.DefaultAPIConfig()
	apiConfig.BaseURL = getEnv("GHL_API_BASE_URL", domain.DefaultAPIBaseURL)
	apiConfig.RateLimit = float64(getEnvInt("GHL_RATE_LIMIT_RPS", 10))
	apiConfig.Burst = getEnvInt("GHL_RATE_LIMIT_BURST", 20)
	apiClient := ghl.NewAPIClient(apiConfig)

	// ===== Services (core business logic) =====
	authService := services.NewAuthService(services.AuthServiceConfig{
		AuthAdapter:       authAdapter,
		InstallationStore: installationStore,
		SessionTTL:        time.Duration(getEnvInt("SESSION_TTL_SEC", int(services.DefaultSessionTTL/time.Second))) * time.Second,
		AdminKeyHash:      getEnv("ADMIN_KEY_HASH", ""),
	})
	tokenService := services.NewTokenService(services.TokenServiceConfig{
		InstallationStore: installationStore,
		OAuthClient:       oauthClient,
		Provider:          provider,
		Lock:              distributedLock,
		RefreshThreshold:  time.Duration(getEnvInt("REFRESH_THRESHOLD_SEC", int(domain.DefaultRefreshThreshold/time.Second))) * time.Second,
		PinRefreshToken:   !getEnvBool("ROTATE_REFRESH_TOKENS", true),
		Logger:            logger,
	})
	oauthService := services.NewOAuthService(services.OAuthServiceConfig{
		Provider:          provider,
		OAuthClient:       oauthClient,
		OAuthStateStore:   stateStore,
		InstallationStore: installationStore,
		ProviderAPI:       apiClient,
		AuthService:       authService,
		RequireState:      getEnvBool("REQUIRE_STATE", false),
		Logger:            logger,
	})
	installationService := services.NewInstallationService(services.InstallationServiceConfig{
		InstallationStore: installationStore,
	})
	proxyService := services.NewProxyService(services.ProxyServiceConfig{
		InstallationStore: installationStore,
		TokenService:      tokenService,
		ProviderAPI:       apiClient,
		Logger:            logger,
	})

	// Create scheduler for worker mode (if enabled)
	var scheduler *services.Scheduler
	if getEnvBool("SCHEDULER_ENABLED", true) {
		scheduler = services.NewScheduler(services.SchedulerConfig{
			OAuthStateStore:   stateStore,
			InstallationStore: installationStore,
			TokenService:      tokenService,
			Lock:              distributedLock,
			Logger:            logger,
			CleanupSchedule:   getEnv("STATE_CLEANUP_SCHEDULE", services.DefaultCleanupSchedule),
			SweepSchedule:     getEnv("REFRESH_SWEEP_SCHEDULE", services.DefaultSweepSchedule),
		})
	} else {
		log.Println("Scheduler disabled via SCHEDULER_ENABLED=false")
	}

	serverConfig := http.Config{
		Host:           "0.0.0.0",
		Port:           port,
		Version:        version,
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 25<<20)),
		Logger:         logger,
	}

	switch mode {
	case "api":
		// API-only mode: HTTP server, no background jobs
		server := http.NewServer(serverConfig, authService, oauthService, tokenService,
			installationService, proxyService, storePinger, redisPinger)
		runAPI(server, port)
	case "worker":
		// Worker-only mode: background maintenance, no HTTP server
		runWorkerMode(ctx, scheduler)
	case "all":
		server := http.NewServer(serverConfig, authService, oauthService, tokenService,
			installationService, proxyService, storePinger, redisPinger)
		startScheduler(ctx, scheduler)
		defer stopScheduler(scheduler)
		runAPI(server, port)
	default:
		log.Fatalf("Unknown mode: %s (use: api, worker, all or hash-admin-key)", mode)
	}
}

func runAPI(server *http.Server, port int) {
	log.Printf("API server starting on :%d", port)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runWorkerMode runs the maintenance scheduler until a shutdown signal.
func runWorkerMode(ctx context.Context, scheduler *services.Scheduler) {
	if scheduler == nil {
		log.Fatal("Worker mode requires SCHEDULER_ENABLED=true")
	}

	// Handle shutdown signals
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startScheduler(ctx, scheduler)
	log.Println("Worker started")

	<-ctx.Done()
	log.Println("Stopping worker...")
	stopScheduler(scheduler)
	log.Println("Worker stopped")
}

func startScheduler(ctx context.Context, scheduler *services.Scheduler) {
	if scheduler == nil {
		return
	}
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
}

func stopScheduler(scheduler *services.Scheduler) {
	if scheduler != nil {
		scheduler.Stop()
	}
}

// runHashAdminKey prints the bcrypt hash to put in ADMIN_KEY_HASH.
func runHashAdminKey(args []string) {
	if len(args) != 1 || args[0] == "" {
		fmt.Fprintln(os.Stderr, "usage: ghl-bridge hash-admin-key <key>")
		os.Exit(2)
	}
	hash, err := auth.NewAdapter("").HashKey(args[0])
	if err != nil {
		log.Fatalf("Failed to hash key: %v", err)
	}
	fmt.Println(hash)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
