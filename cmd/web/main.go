package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"tailorly/internal/authclient"
	"tailorly/internal/authctx"
	"tailorly/internal/config"
	"tailorly/internal/consul"
	"tailorly/internal/events"
	"tailorly/internal/gateway"
	"tailorly/internal/logger"
	"tailorly/internal/metrics"
	"tailorly/internal/session"
	"tailorly/internal/upstream"
	"tailorly/internal/wizard"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
)

const serviceName = "web"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.NewWithWriter(os.Stdout, cfg.LogOptions())
	logger.SetDefault(log)
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Starting web tier",
		"port", cfg.WebPort,
		"env", cfg.Env,
		"redis", cfg.UseRedis(),
		"consul", cfg.UseConsul(),
		"events", cfg.KafkaBrokers != "",
	)

	// Session storage
	var store session.Store
	if cfg.UseRedis() {
		store = session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := store.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Error("Failed to connect to Redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		log.Info("Connected to Redis")
	} else {
		store = session.NewMemoryStore(10 * time.Minute)
		log.Warn("REDIS_ADDR not set, sessions are kept in memory")
	}
	defer store.Close()
	sessions := session.NewManager(store, cfg.SessionMaxAge, log)

	// Remote API location
	var consulClient *consul.Client
	var resolver upstream.Resolver
	if cfg.UseConsul() {
		consulClient, err = consul.NewClientWithToken(cfg.ConsulAddr, cfg.ConsulToken)
		if err != nil {
			log.Error("Failed to create Consul client", "error", err)
			os.Exit(1)
		}
		log.Info("Connected to Consul", "api_service", cfg.APIServiceName)
		resolver = consul.NewResolver(consulClient, cfg.APIServiceName)
	}
	if cfg.APIBaseURL != "" {
		static, err := upstream.NewStatic(cfg.APIBaseURL)
		if err != nil {
			log.Error("Invalid API_BASE_URL", "error", err)
			os.Exit(1)
		}
		// An explicit base URL wins over discovery
		resolver = static
	}

	// Audit events
	var publisher events.Publisher = events.Nop{}
	if cfg.KafkaBrokers != "" {
		eventsCfg, err := events.LoadConfig()
		if err != nil {
			log.Error("Invalid Kafka configuration", "error", err)
			os.Exit(1)
		}
		kafka, err := events.NewKafkaPublisher(eventsCfg, log)
		if err != nil {
			log.Error("Failed to create Kafka producer", "error", err)
			os.Exit(1)
		}
		publisher = kafka
		log.Info("Publishing auth events", "topic", eventsCfg.Topic)
	}

	m := metrics.New()
	api := upstream.NewClient(resolver, cfg.APITimeout, log)
	auth := authctx.NewManager(sessions,
		authclient.New(resolver, cfg.APITimeout, log),
		authctx.WithPublisher(publisher),
		authctx.WithMetrics(m),
		authctx.WithLogger(log),
	)
	defer auth.Dispose()

	router := gateway.SetupRouter(gateway.Dependencies{
		Auth:           auth,
		Wizards:        wizard.NewStore(sessions, log),
		API:            api,
		Storage:        store,
		Metrics:        m,
		Logger:         log,
		AllowedOrigins: cfg.AllowedOrigins,
		Cookie: gateway.CookieOptions{
			Secure: cfg.Production(),
		},
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.WebPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Use static service ID to prevent duplicate registrations on restart
	serviceID := fmt.Sprintf("%s-%s", serviceName, cfg.WebHost)
	if consulClient != nil {
		register(log, consulClient, serviceID, cfg)
	}

	go func() {
		log.Info("Web tier listening", "port", cfg.WebPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down web tier")

	if consulClient != nil {
		if err := consulClient.Deregister(serviceID); err != nil {
			log.Warn("Failed to deregister from Consul", "error", err)
		} else {
			log.Info("Deregistered from Consul")
		}
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Web tier stopped")
}

// register announces this instance to Consul. Failure is logged, not fatal.
func register(log *slog.Logger, client *consul.Client, serviceID string, cfg *config.Config) {
	port, err := strconv.Atoi(cfg.WebPort)
	if err != nil {
		log.Warn("Skipping Consul registration, WEB_PORT is not numeric", "port", cfg.WebPort)
		return
	}

	// Deregister any existing instance with same ID (cleanup from previous crashes)
	_ = client.Deregister(serviceID)

	err = client.Register(&consul.ServiceConfig{
		ID:      serviceID,
		Name:    serviceName,
		Address: cfg.WebHost,
		Port:    port,
		Tags:    []string{"web", "frontend"},
		Check: &consul.HealthCheck{
			HTTP:            fmt.Sprintf("http://%s:%d/health", cfg.WebHost, port),
			Interval:        "10s",
			Timeout:         "3s",
			DeregisterAfter: "1m",
		},
	})
	if err != nil {
		log.Warn("Failed to register with Consul", "error", err)
		return
	}
	log.Info("Registered with Consul", "service_id", serviceID)
}
