package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/streamspace/fleetconsole/internal/cache"
	"github.com/streamspace/fleetconsole/internal/db"
	apperrors "github.com/streamspace/fleetconsole/internal/errors"
	"github.com/streamspace/fleetconsole/internal/handlers"
	"github.com/streamspace/fleetconsole/internal/ingest"
	"github.com/streamspace/fleetconsole/internal/logger"
	"github.com/streamspace/fleetconsole/internal/middleware"
	"github.com/streamspace/fleetconsole/internal/sessionhub"
)

func main() {
	port := getEnv("CONSOLE_PORT", "8000")
	logLevel := getEnv("LOG_LEVEL", "info")
	logPretty := getEnv("LOG_PRETTY", "false") == "true"
	rateLimitEnabled := getEnv("RATE_LIMIT_ENABLED", "true") == "true"
	auditLogEnabled := getEnv("AUDIT_LOG_ENABLED", "true") == "true"
	staleAfterSec := getEnvInt("INSTANCE_STALE_AFTER_SECONDS", 90)

	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "fleetconsole")
	dbPassword := getEnv("DB_PASSWORD", "fleetconsole")
	dbName := getEnv("DB_NAME", "fleetconsole")
	dbSSLMode := getEnv("DB_SSL_MODE", "disable")

	logger.Initialize(logLevel, logPretty)
	log := logger.GetLogger()

	log.Info().Msg("connecting to database")
	database, err := db.NewDatabase(db.Config{
		Host:     dbHost,
		Port:     dbPort,
		User:     dbUser,
		Password: dbPassword,
		DBName:   dbName,
		SSLMode:  dbSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	log.Info().Msg("running database migrations")
	if err := database.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	cacheEnabled := getEnv("CACHE_ENABLED", "false") == "true"
	redisCache, err := cache.NewCache(cache.Config{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       0,
		Enabled:  cacheEnabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize redis cache, continuing without it")
		redisCache, _ = cache.NewCache(cache.Config{Enabled: false})
	}
	defer redisCache.Close()

	hub := sessionhub.NewInstanceHub(database, time.Duration(staleAfterSec)*time.Second)
	fanout := sessionhub.NewFanoutBus()
	terminals := sessionhub.NewTerminalManager(hub, fanout, db.NewTerminalSessionDB(database))
	commands := sessionhub.NewCommandManager(hub, fanout, db.NewCommandSessionDB(database))
	pipeline := ingest.NewPipeline(database)
	relay := sessionhub.NewRelay(hub, terminals, commands, pipeline)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(apperrors.Recovery())
	router.Use(middleware.StructuredLogger())
	router.Use(middleware.Timeout(middleware.DefaultTimeoutConfig()))
	router.Use(middleware.AllowedHTTPMethods())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimiter(10 * 1024 * 1024))

	if auditLogEnabled {
		auditLogger := middleware.NewAuditLogger(database)
		router.Use(auditLogger.Middleware())
		log.Info().Msg("audit logging enabled")
	}

	router.Use(middleware.GzipWithExclusions(middleware.BestSpeed, []string{
		"/api/v1/ws/",
		"/api/v1/metrics",
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	router.GET("/api/v1/ws/instances/:id", func(c *gin.Context) {
		instanceID := c.Param("id")
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Str("instance_id", instanceID).Msg("instance link upgrade failed")
			return
		}
		relay.ServeInstance(conn, instanceID)
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireAPIKey(database))
	if rateLimitEnabled {
		v1.Use(middleware.NewAPIKeyRateLimiter().Middleware())
	}

	registrars := []func(*gin.RouterGroup){
		handlers.NewInstanceHandler(database, terminals, commands).RegisterRoutes,
		handlers.NewMetricsHandler(database).RegisterRoutes,
		handlers.NewTemplateHandler(database).RegisterRoutes,
		handlers.NewExtensionHandler(database).RegisterRoutes,
		handlers.NewUserHandler(database).RegisterRoutes,
		handlers.NewTeamHandler(database).RegisterRoutes,
		handlers.NewAPIKeyHandler(database).RegisterRoutes,
		handlers.NewAlertRuleHandler(database).RegisterRoutes,
		handlers.NewCostHandler(database).RegisterRoutes,
		handlers.NewScheduledTaskHandler(database).RegisterRoutes,
		handlers.NewDriftReportHandler(database).RegisterRoutes,
		handlers.NewSecurityHandler(database).RegisterRoutes,
	}
	for _, register := range registrars {
		register(v1)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: router,

		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("port", port).Msg("console server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("starting graceful shutdown")

	shutdownTimeout := 30 * time.Second
	if timeoutEnv := os.Getenv("SHUTDOWN_TIMEOUT"); timeoutEnv != "" {
		if duration, err := time.ParseDuration(timeoutEnv); err == nil {
			shutdownTimeout = duration
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("graceful shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
