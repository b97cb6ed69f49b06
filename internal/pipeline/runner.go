// Package pipeline orchestrates one batch run: fetch, normalize, aggregate,
// assert, persist.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jitsejan/noths-pipeline/internal/analytics"
	"github.com/jitsejan/noths-pipeline/internal/db"
	"github.com/jitsejan/noths-pipeline/internal/feefo"
	"github.com/jitsejan/noths-pipeline/internal/models"
	"github.com/jitsejan/noths-pipeline/internal/quality"
	"github.com/jitsejan/noths-pipeline/internal/staging"
)

// Fetcher supplies raw records from the review API.
type Fetcher interface {
	FetchReviews(ctx context.Context, q feefo.ReviewQuery) ([]feefo.Review, error)
	FetchProductRatings(ctx context.Context, merchantID string, skus []string, periodDays int) ([]feefo.ProductRating, error)
}

// Store persists raw records and the derived relations.
type Store interface {
	WriteRawReviews(ctx context.Context, mode db.WriteMode, reviews []feefo.Review, loadID, batchID string) (int, error)
	WriteRawProductRatings(ctx context.Context, mode db.WriteMode, ratings []feefo.ProductRating, loadID, batchID string) (int, error)
	ReplaceStagedReviews(ctx context.Context, merchantID string, rows []models.NormalizedReview) (int, error)
	ReplaceStagedRatings(ctx context.Context, merchantID string, rows []models.NormalizedProductRating) (int, error)
	ReplaceProductSummaries(ctx context.Context, merchantID string, rows []models.ProductSummary) (int, error)
}

// Params scope one pipeline run. MerchantID is required and threads through
// every stage.
type Params struct {
	MerchantID     string
	MaxPages       int
	Mode           db.WriteMode
	IncludeRatings bool
	PeriodDays     int
	Since          string
	Until          string
}

// Runner executes full pipeline runs. Runs for the same merchant must be
// serialized externally; the derived relations are replaced wholesale per
// merchant, not merged per key.
type Runner struct {
	fetcher    Fetcher
	store      Store
	normalizer *staging.Normalizer
	log        *zap.SugaredLogger
	now        func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(fetcher Fetcher, store Store, log *zap.SugaredLogger) *Runner {
	return &Runner{
		fetcher:    fetcher,
		store:      store,
		normalizer: staging.NewNormalizer(log),
		log:        log,
		now:        time.Now,
	}
}

// Run executes one batch run for one merchant: fetch raw records, persist them
// with the requested write mode, recompute the staged and summary relations
// wholesale, then apply the data-quality assertions. Assertion violations fail
// the run after materialization; they are never repaired or retried here.
func (r *Runner) Run(ctx context.Context, p Params) (models.RunReport, error) {
	if p.MerchantID == "" {
		return models.RunReport{}, fmt.Errorf("merchant id is required")
	}
	if p.Mode == "" {
		p.Mode = db.WriteMerge
	}

	start := r.now()
	report := models.RunReport{
		MerchantID: p.MerchantID,
		LoadID:     uuid.NewString(),
		BatchID:    uuid.NewString(),
		StartedAt:  start,
	}
	batch := staging.Batch{LoadID: report.LoadID, BatchID: report.BatchID}

	r.log.Infow("starting run",
		"merchant_id", p.MerchantID, "load_id", report.LoadID, "mode", p.Mode,
		"max_pages", p.MaxPages, "include_ratings", p.IncludeRatings)

	reviews, err := r.fetcher.FetchReviews(ctx, feefo.ReviewQuery{
		MerchantID: p.MerchantID,
		MaxPages:   p.MaxPages,
		Since:      p.Since,
		Until:      p.Until,
	})
	if err != nil {
		return report, fmt.Errorf("fetching reviews: %w", err)
	}
	report.ReviewsFetched = len(reviews)

	var ratings []feefo.ProductRating
	if p.IncludeRatings {
		skus := feefo.SKUsFromReviews(reviews)
		ratings, err = r.fetcher.FetchProductRatings(ctx, p.MerchantID, skus, p.PeriodDays)
		if err != nil {
			return report, fmt.Errorf("fetching product ratings: %w", err)
		}
		report.RatingsFetched = len(ratings)
	}

	if _, err := r.store.WriteRawReviews(ctx, p.Mode, reviews, report.LoadID, report.BatchID); err != nil {
		return report, fmt.Errorf("writing raw reviews: %w", err)
	}
	if _, err := r.store.WriteRawProductRatings(ctx, p.Mode, ratings, report.LoadID, report.BatchID); err != nil {
		return report, fmt.Errorf("writing raw product ratings: %w", err)
	}

	stagedReviews := r.normalizer.NormalizeReviews(p.MerchantID, batch, reviews)
	stagedRatings := r.normalizer.NormalizeProductRatings(p.MerchantID, batch, ratings)
	summaries := analytics.Aggregate(stagedReviews, stagedRatings)

	if report.StagedReviews, err = r.store.ReplaceStagedReviews(ctx, p.MerchantID, stagedReviews); err != nil {
		return report, fmt.Errorf("replacing staged reviews: %w", err)
	}
	if report.StagedRatings, err = r.store.ReplaceStagedRatings(ctx, p.MerchantID, stagedRatings); err != nil {
		return report, fmt.Errorf("replacing staged ratings: %w", err)
	}
	if report.Summaries, err = r.store.ReplaceProductSummaries(ctx, p.MerchantID, summaries); err != nil {
		return report, fmt.Errorf("replacing summaries: %w", err)
	}

	violations := quality.CheckStagedReviews(stagedReviews, r.now())
	violations = append(violations, quality.CheckStagedRatings(stagedRatings)...)
	if len(violations) > 0 {
		r.log.Errorw("run failed data-quality assertions",
			"merchant_id", p.MerchantID, "violations", len(violations))
		return report, &quality.AssertionError{Violations: violations}
	}

	report.Elapsed = r.now().Sub(start).String()
	r.log.Infow("run complete",
		"merchant_id", p.MerchantID,
		"reviews_fetched", report.ReviewsFetched,
		"staged_reviews", report.StagedReviews,
		"summaries", report.Summaries,
		"elapsed", report.Elapsed)
	return report, nil
}
