package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/osanz/go_market/internal/cart"
	"github.com/osanz/go_market/internal/catalog"
	"github.com/osanz/go_market/internal/coupon"
	h "github.com/osanz/go_market/internal/http"
	"github.com/osanz/go_market/internal/notify"
	"github.com/osanz/go_market/internal/order"
	"github.com/osanz/go_market/internal/payment"
	"github.com/osanz/go_market/internal/pricing"
)

type Config struct {
	HTTPPort          string
	MongoURI          string
	MongoDatabase     string
	RedisAddr         string
	PostgresHost      string
	PostgresPort      int
	PostgresUser      string
	PostgresPassword  string
	PostgresDB        string
	MigrationsDirPath string
	KafkaBrokers      string
	KafkaTopic        string
	CatalogURL        string
	PaymentURL        string
	TaxRate           float64
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:     getEnv("MONGO_DATABASE", "market"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		PostgresHost:      getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:      getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:      getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:  getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:        getEnv("POSTGRES_DB", "market"),
		MigrationsDirPath: getEnv("MIGRATIONS_PATH", "migrations"),
		KafkaBrokers:      getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "market.notifications"),
		CatalogURL:        getEnv("CATALOG_SERVICE_URL", "http://localhost:8081"),
		PaymentURL:        getEnv("PAYMENT_SERVICE_URL", "http://localhost:8082"),
		TaxRate:           getEnvFloat("TAX_RATE", pricing.DefaultTaxRate),
		RequestTimeout:    30 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	// Cart storage: MongoDB document per user plus Redis read cache.
	mongoDB, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}
	cartRepo := cart.NewMongoRepository(mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create cart indexes: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to ping Redis: %v", err)
	}
	defer redisClient.Close()
	cartCache := cart.NewRedisCache(redisClient)

	// Order storage: Postgres, shared with the coupon store.
	cred := &order.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsDirPath,
	}
	orderRepo, err := order.NewPostgresRepository(cred)
	if err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	defer orderRepo.Close()
	if err := orderRepo.RunMigrations(cred); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	couponStore := coupon.NewPostgresStore(orderRepo.DB())

	// External collaborators.
	catalogReader := catalog.NewHTTPReader(cfg.CatalogURL, 5*time.Second)
	paymentAuthority := payment.NewHTTPAuthority(cfg.PaymentURL, 10*time.Second)

	var notifier notify.Sink = notify.NopSink{}
	if cfg.KafkaBrokers != "" {
		sink := notify.NewKafkaSink(cfg.KafkaTopic, strings.Split(cfg.KafkaBrokers, ",")...)
		defer sink.Close()
		notifier = sink
	}

	calc := pricing.NewCalculator(cfg.TaxRate)
	cartService := cart.NewService(cartRepo, cartCache, catalogReader, couponStore, calc)
	orderService := order.NewService(orderRepo, cartService, couponStore, paymentAuthority, notifier)

	cartHandler := h.NewCartHandler(cartService, cfg.RequestTimeout)
	ordersHandler := h.NewOrdersHandler(orderService, cfg.RequestTimeout)

	// Setup router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(h.MockAuthMiddleware)
	r.Mount("/", h.Routes(cartHandler, ordersHandler))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "market"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("market starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
