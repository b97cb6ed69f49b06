package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/jitsejan/noths-pipeline/internal/config"
	"github.com/jitsejan/noths-pipeline/internal/db"
	"github.com/jitsejan/noths-pipeline/internal/feefo"
	"github.com/jitsejan/noths-pipeline/internal/handlers"
	"github.com/jitsejan/noths-pipeline/internal/pipeline"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if cfg.DatabaseURL == "" {
		sugar.Fatal("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()

	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		sugar.Fatalw("Could not run migrations", "error", err)
	}
	sugar.Info("Migrations completed")

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalw("Could not connect to database", "error", err)
	}
	defer pool.Close()
	sugar.Info("Connected to database")

	repo := db.NewRepository(pool)
	client := feefo.NewClient(cfg.FeefoBaseURL, sugar)
	runner := pipeline.NewRunner(client, repo, sugar)

	// Setup Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				sugar.Infow("request", "status", v.Status, "uri", v.URI)
			} else {
				sugar.Errorw("request", "status", v.Status, "uri", v.URI, "error", v.Error)
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	h := handlers.New()
	runHandler := handlers.NewRunHandler(runner, repo, cfg.MerchantID, cfg.MaxPages, sugar)

	// Routes
	e.GET("/health", h.Health)
	e.GET("/products/summary", runHandler.Summaries)
	e.GET("/products/top", runHandler.TopByVolume)
	e.GET("/products/by-rating", runHandler.RankedByRating)

	admin := e.Group("/admin")
	admin.POST("/run", runHandler.Run)
	admin.GET("/status", runHandler.Status)

	sugar.Infow("Starting server", "port", cfg.Port, "merchant_id", cfg.MerchantID)
	if err := e.Start(":" + cfg.Port); err != nil {
		sugar.Fatalw("Failed to start server", "error", err)
	}
}
