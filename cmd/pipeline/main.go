// Command pipeline runs one batch pipeline execution and exits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/jitsejan/noths-pipeline/internal/config"
	"github.com/jitsejan/noths-pipeline/internal/db"
	"github.com/jitsejan/noths-pipeline/internal/feefo"
	"github.com/jitsejan/noths-pipeline/internal/pipeline"
	"github.com/jitsejan/noths-pipeline/internal/quality"
)

var (
	merchantID     = flag.String("merchant-id", "", "Merchant identifier (default: FEEFO_MERCHANT_ID)")
	maxPages       = flag.Int("max-pages", 0, "Maximum number of review pages to fetch (default: FEEFO_MAX_PAGES)")
	mode           = flag.String("mode", config.DefaultMode, "Raw write mode: merge, replace or append")
	includeRatings = flag.Bool("include-ratings", true, "Fetch catalog ratings for reviewed SKUs")
	periodDays     = flag.Int("period-days", 0, "Filter catalog ratings by trailing period in days (0 = all time)")
	since          = flag.String("since", "", "Start date filter (optional)")
	until          = flag.String("until", "", "End date filter (optional)")
)

func main() {
	flag.Parse()

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

	writeMode, err := db.ParseWriteMode(*mode)
	if err != nil {
		sugar.Fatalw("Invalid mode", "error", err)
	}

	params := pipeline.Params{
		MerchantID:     cfg.MerchantID,
		MaxPages:       cfg.MaxPages,
		Mode:           writeMode,
		IncludeRatings: *includeRatings,
		PeriodDays:     *periodDays,
		Since:          *since,
		Until:          *until,
	}
	if *merchantID != "" {
		params.MerchantID = *merchantID
	}
	if *maxPages > 0 {
		params.MaxPages = *maxPages
	}

	ctx := context.Background()

	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		sugar.Fatalw("Could not run migrations", "error", err)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalw("Could not connect to database", "error", err)
	}
	defer pool.Close()

	repo := db.NewRepository(pool)
	client := feefo.NewClient(cfg.FeefoBaseURL, sugar)
	runner := pipeline.NewRunner(client, repo, sugar)

	report, err := runner.Run(ctx, params)
	if err != nil {
		var assertErr *quality.AssertionError
		if errors.As(err, &assertErr) {
			for _, v := range assertErr.Violations {
				sugar.Errorw("assertion violation", "check", v.Check, "row", v.Row, "detail", v.Detail)
			}
		}
		sugar.Fatalw("Run failed", "merchant_id", params.MerchantID, "error", err)
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Fprintln(os.Stdout, string(out))
}
