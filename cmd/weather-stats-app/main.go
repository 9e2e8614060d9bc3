package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/gwakaf/weather-stats-app/internal/api/http"
	"github.com/gwakaf/weather-stats-app/internal/backfill"
	"github.com/gwakaf/weather-stats-app/internal/config"
	"github.com/gwakaf/weather-stats-app/internal/logging"
	"github.com/gwakaf/weather-stats-app/internal/objectstore"
	"github.com/gwakaf/weather-stats-app/internal/quality"
	"github.com/gwakaf/weather-stats-app/internal/scheduler"
	"github.com/gwakaf/weather-stats-app/internal/trends"
	"github.com/gwakaf/weather-stats-app/internal/weather"
)

func main() {
	runBackfill := flag.Bool("backfill", false, "run the configured backfill window once and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("failed to load config: %v", err)
	}

	if err := logging.Init(cfg.Debug); err != nil {
		logging.Fatalf("failed to initialize logger: %v", err)
	}
	defer logging.Sync()

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	client := weather.NewClient(weather.ClientConfig{
		HTTPClient:  httpClient,
		MaxRetries:  cfg.Backfill.MaxRetries,
		BackoffBase: 1 * time.Second,
	})

	// The object store is optional: without it the API still serves live
	// weather, only persistence and read-back are disabled.
	var store objectstore.ObjectStore
	if gcs, err := objectstore.NewGCSStore(context.Background()); err != nil {
		logging.Warnf("object store unavailable, persistence disabled: %v", err)
	} else {
		store = gcs
	}
	writer := objectstore.NewWriter(store, cfg.Bucket)
	reader := objectstore.NewReader(store, cfg.Bucket)

	orchestrator := backfill.New(client, writer, cfg.Locations, cfg.Backfill.DelayBetweenRequests)
	validator := quality.NewValidator(reader, cfg.Locations)
	collector := trends.NewCollector(client)

	if *runBackfill {
		runConfiguredBackfill(orchestrator, cfg.Backfill)
		return
	}

	sched := scheduler.New(*cfg, orchestrator, validator, cfg.Locations)
	if err := sched.Start(); err != nil {
		logging.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-stats-app",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-stats-app",
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Instant:   client,
		Hours:     client,
		Stored:    reader,
		Trends:    collector,
		Locations: cfg.Locations,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logging.Errorf("fiber server stopped: %v", err)
		}
	}()
	logging.Infof("listening on :%s", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logging.Errorf("error during shutdown: %v", err)
	}
}

// runConfiguredBackfill executes the YAML-configured window for its single
// location and prints the run summary.
func runConfiguredBackfill(orchestrator *backfill.Orchestrator, cfg config.BackfillConfig) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Infof("running backfill for %s: %s to %s", cfg.Location, cfg.StartDate, cfg.EndDate)
	result := orchestrator.Run(ctx, cfg.StartDate, cfg.EndDate, cfg.Location, true)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logging.Fatalf("failed to encode run result: %v", err)
	}
	os.Stdout.Write(append(out, '\n'))

	if result.SuccessfulDays < result.TotalDays {
		os.Exit(1)
	}
}
