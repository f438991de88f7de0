package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"mercata-core-vendor-layer/internal/application"
	"mercata-core-vendor-layer/internal/domain"
	apiinfra "mercata-core-vendor-layer/internal/infrastructure/api"
	"mercata-core-vendor-layer/internal/infrastructure/cache"
	"mercata-core-vendor-layer/internal/infrastructure/encryption"
	"mercata-core-vendor-layer/internal/infrastructure/repository"
	"mercata-core-vendor-layer/internal/infrastructure/scheduler"
	"mercata-core-vendor-layer/internal/infrastructure/vendorapi"
	"mercata-core-vendor-layer/internal/metrics"
	"mercata-core-vendor-layer/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	// Get encryption key
	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if encryptionKey == "" {
		logger.Fatal().Msg("ENCRYPTION_KEY environment variable is required")
	}
	encryptionService, err := encryption.NewService(encryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	// Initialize stores: MongoDB when configured, in-memory otherwise
	var (
		kvStore    ports.KVStore
		orderStore ports.OrderStore
		authStore  ports.ShopAuthStore
	)
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI != "" {
		client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(mongoURI))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer client.Disconnect(context.Background())

		dbName := os.Getenv("MONGODB_DATABASE")
		if dbName == "" {
			dbName = "mercata"
		}
		db := client.Database(dbName)
		kvStore = repository.NewMongoKVStore(db)
		orderStore = repository.NewMongoOrderStore(db)
		authStore = repository.NewMongoShopAuthStore(db)
	} else {
		logger.Warn().Msg("MONGODB_URI not set, using in-memory stores")
		mem := repository.NewMemoryStore()
		kvStore, orderStore, authStore = mem, mem, mem
	}

	// Process-wide default vendor credentials
	defaults := application.DefaultAuth{
		Platform:     getenv("VENDOR_PLATFORM", "mercata"),
		ClientID:     os.Getenv("VENDOR_CLIENT_ID"),
		RefreshToken: os.Getenv("VENDOR_REFRESH_TOKEN"),
		APIBase:      os.Getenv("VENDOR_API_BASE"),
		TokenURL:     os.Getenv("VENDOR_TOKEN_URL"),
	}

	credentialsService := application.NewCredentialsService(authStore, encryptionService, defaults, logger)

	// Vendor client with per-identity rate limiting
	rps := getenvFloat("VENDOR_RPS", 4)
	burst := getenvInt("VENDOR_BURST", 8)
	vendorClient := vendorapi.NewClient(rps, burst, 30*time.Second, logger)
	tokenManager := vendorapi.NewTokenManager(credentialsService, logger)
	paginator := vendorapi.NewPaginator(vendorClient, tokenManager, logger)

	// Multi-tier cache: memory, shared persistent store, optional Redis
	var redisTier ports.CacheTier
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		redisTier = cache.NewRedisTier(rdb, "mercata")
		logger.Info().Str("addr", addr).Msg("Redis cache tier enabled")
	}
	tiers := cache.NewMultiTier(cache.NewMemoryTier(), logger, cache.NewKVTier(kvStore, "cache"), redisTier)

	// Application services
	fanout := getenvInt("SYNC_FANOUT", 4)
	syncService := application.NewSyncService(
		credentialsService,
		paginator,
		orderStore,
		kvStore,
		getenv("VENDOR_ORDERS_PATH", "/orders"),
		getenv("VENDOR_ORDERS_KEY", "orders"),
		fanout,
		logger,
	)

	aggOpts := application.DefaultAggregatorOptions()
	aggOpts.Fanout = fanout
	if ttl := getenvInt("COUNTER_CACHE_TTL_SECONDS", 0); ttl > 0 {
		aggOpts.CacheTTL = time.Duration(ttl) * time.Second
	}
	aggregatorService := application.NewAggregatorService(credentialsService, paginator, tiers, aggOpts, logger)

	// Periodic sync sweep
	syncWorker := scheduler.NewWorker(
		syncService,
		getenvDuration("SYNC_INTERVAL", 0),
		application.SyncOptions{Statuses: []string{domain.OrderStatusPending}},
		logger,
	)
	syncWorker.Start()
	defer syncWorker.Stop()

	metrics.RegisterDefault()

	// Setup router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	r.Use(shopIDMiddleware)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "./docs/swagger.json")
	})

	// API routes
	handler := apiinfra.NewHandler(syncService, aggregatorService, credentialsService, tokenManager, logger)
	handler.Register(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info().Str("port", port).Msg("Starting API server")
	if err := http.ListenAndServe(":"+port, r); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}

// shopIDMiddleware lifts the X-Shop-ID header into the request context so
// handlers can default the tenant scope.
func shopIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shopID := r.Header.Get("X-Shop-ID"); shopID != "" {
			r = r.WithContext(domain.WithShopID(r.Context(), shopID))
		}
		next.ServeHTTP(w, r)
	})
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
