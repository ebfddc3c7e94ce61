package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/ggorockee/shopfinder/docs"
	"github.com/ggorockee/shopfinder/internal/cache"
	"github.com/ggorockee/shopfinder/internal/config"
	"github.com/ggorockee/shopfinder/internal/database"
	"github.com/ggorockee/shopfinder/internal/handlers"
	applogger "github.com/ggorockee/shopfinder/internal/logger"
	"github.com/ggorockee/shopfinder/internal/middleware"
	"github.com/ggorockee/shopfinder/internal/places"
	"github.com/ggorockee/shopfinder/internal/services"
	"github.com/ggorockee/shopfinder/internal/telemetry"
	"github.com/ggorockee/shopfinder/web"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	poolMetricsInterval = 15 * time.Second
	janitorInterval     = 10 * time.Minute
	shutdownTimeout     = 10 * time.Second
)

// @title ShopFinder API
// @version 1.0.0
// @description Nearby shop search backed by the Google Places API
// @BasePath /api
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	if err := applogger.Init(cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer applogger.Sync()
	sugar := applogger.GetLogger("main")

	if cfg.Places.APIKey == "" {
		sugar.Warn("GOOGLE_PLACES_API_KEY is not set, upstream calls will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerShutdown, err := telemetry.InitTracer(ctx, telemetry.ServiceName, cfg.SigNozEndpoint)
	if err != nil {
		sugar.Errorw("Failed to initialize tracer", "error", err)
		tracerShutdown = func(context.Context) error { return nil }
	}
	meterShutdown, err := telemetry.InitMeter(ctx, telemetry.ServiceName, cfg.SigNozEndpoint)
	if err != nil {
		sugar.Errorw("Failed to initialize metrics", "error", err)
		meterShutdown = func(context.Context) error { return nil }
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracerShutdown(flushCtx); err != nil {
			sugar.Errorw("Error shutting down tracer", "error", err)
		}
		if err := meterShutdown(flushCtx); err != nil {
			sugar.Errorw("Error shutting down metrics", "error", err)
		}
	}()

	store, err := cache.Open(ctx, cfg)
	if err != nil {
		sugar.Fatalw("Failed to open cache", "driver", cfg.Cache.Driver, "error", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			sugar.Warnw("Error closing cache", "error", err)
		}
	}()
	sugar.Infow("Cache ready", "driver", cfg.Cache.Driver)

	if dbStore, ok := store.(*cache.DatabaseStore); ok {
		go database.StartConnectionPoolMetricsCollector(ctx, dbStore.DB(), poolMetricsInterval)
		go dbStore.StartJanitor(ctx, janitorInterval, func(err error) {
			sugar.Warnw("Failed to purge expired cache rows", "error", err)
		})
	}

	client := places.NewClient(cfg.Places, applogger.GetLogger("places.client"))
	placesService := services.NewPlacesService(
		client,
		store,
		services.OptionsFromConfig(cfg.Cache),
		applogger.GetLogger("places.service"),
	)

	app := fiber.New(fiber.Config{
		AppName:      "ShopFinder API",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","request_id":"${locals:requestid}","status":${status},"latency":"${latency}","ip":"${ip}","method":"${method}","path":"${path}","user_agent":"${ua}","error":"${error}"}` + "\n",
		TimeFormat: "2006-01-02T15:04:05Z07:00",
		TimeZone:   "UTC",
	}))
	app.Use(telemetry.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSAllowOrigins,
		AllowMethods: "GET, OPTIONS",
		AllowHeaders: "Accept, Content-Type, Origin, X-Request-ID",
		MaxAge:       86400,
	}))
	app.Use(middleware.PrometheusMiddleware())

	setupRoutes(app, cfg, placesService, store)

	go func() {
		<-ctx.Done()
		sugar.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			sugar.Errorw("Error shutting down server", "error", err)
		}
	}()

	sugar.Infow("Server starting", "port", cfg.Server.Port, "env", cfg.Server.Env)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		sugar.Errorw("Server stopped", "error", err)
		stop()
		os.Exit(1)
	}
}

func setupRoutes(app *fiber.App, cfg *config.Config, svc *services.PlacesService, store cache.Store) {
	if cfg.Server.MetricsInternalOnly {
		app.Get("/metrics", middleware.InternalOnly(), middleware.PrometheusHandler())
	} else {
		app.Get("/metrics", middleware.PrometheusHandler())
	}

	// Health check endpoints for k8s probes
	app.Get("/healthz", handlers.HealthCheck)

	api := app.Group("/api")
	api.Get("/health", handlers.LivenessCheck)
	api.Get("/readiness", handlers.ReadinessCheck(store))
	api.Get("/docs/*", swagger.HandlerDefault)

	handlers.SetupPlacesRoutes(api.Group("/places"), svc, applogger.GetLogger("places.handler"))

	// Frontend
	app.Use("/", filesystem.New(filesystem.Config{
		Root:  web.FS(),
		Index: "index.html",
	}))
}
