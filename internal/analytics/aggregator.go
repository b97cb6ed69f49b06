// Package analytics computes the per-product summary relation and its derived
// ranking views from the staging relations.
package analytics

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jitsejan/noths-pipeline/internal/models"
)

// Rating thresholds for the positive/negative counters. A rating of exactly 3
// counts toward neither.
var (
	negativeMax = decimal.NewFromInt(2)
	positiveMin = decimal.NewFromInt(4)
)

type groupKey struct {
	merchantID string
	sku        string
}

type accumulator struct {
	title        string
	serviceIDs   map[string]struct{}
	productSum   decimal.Decimal
	serviceSum   decimal.Decimal
	serviceRows  int64
	rows         int64
	first        time.Time
	latest       time.Time
	withText     int
	negative     int
	positive     int
}

// Aggregate groups staged review rows by (merchant, SKU), joins each group
// against at most one catalog rating, and emits one classified summary row per
// group. Groups come out in first-seen input order, which is the relation's
// natural row order. Catalog-only SKUs are never emitted: the join key comes
// from the review side.
func Aggregate(reviews []models.NormalizedReview, ratings []models.NormalizedProductRating) []models.ProductSummary {
	catalog := make(map[groupKey]*decimal.Decimal, len(ratings))
	for _, r := range ratings {
		catalog[groupKey{r.MerchantID, r.ProductSKU}] = r.ProductRating
	}

	groups := make(map[groupKey]*accumulator)
	var order []groupKey

	for _, row := range reviews {
		key := groupKey{row.MerchantID, row.ProductSKU}
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{serviceIDs: make(map[string]struct{})}
			groups[key] = acc
			order = append(order, key)
		}

		// Any observed non-empty title; first one wins.
		if acc.title == "" && row.ProductTitle != "" {
			acc.title = row.ProductTitle
		}

		acc.serviceIDs[row.ServiceID] = struct{}{}
		acc.productSum = acc.productSum.Add(row.ProductRating)
		acc.rows++
		if row.ServiceRating != nil {
			acc.serviceSum = acc.serviceSum.Add(*row.ServiceRating)
			acc.serviceRows++
		}

		if acc.rows == 1 || row.CreatedAt.Before(acc.first) {
			acc.first = row.CreatedAt
		}
		if acc.rows == 1 || row.CreatedAt.After(acc.latest) {
			acc.latest = row.CreatedAt
		}

		if row.ReviewText != nil && strings.TrimSpace(*row.ReviewText) != "" {
			acc.withText++
		}
		if row.ProductRating.LessThanOrEqual(negativeMax) {
			acc.negative++
		}
		if row.ProductRating.GreaterThanOrEqual(positiveMin) {
			acc.positive++
		}
	}

	summaries := make([]models.ProductSummary, 0, len(order))
	for _, key := range order {
		acc := groups[key]

		avgProduct := acc.productSum.Div(decimal.NewFromInt(acc.rows)).Round(2)

		s := models.ProductSummary{
			MerchantID:       key.merchantID,
			ProductSKU:       key.sku,
			ProductTitle:     acc.title,
			ReviewCount:      len(acc.serviceIDs),
			AvgProductRating: avgProduct,
			LatestReviewDate: acc.latest,
			FirstReviewDate:  acc.first,
			ReviewsWithText:  acc.withText,
			NegativeReviews:  acc.negative,
			PositiveReviews:  acc.positive,
			OverallSentiment: Classify(acc.negative, acc.positive),
		}

		if acc.serviceRows > 0 {
			avgService := acc.serviceSum.Div(decimal.NewFromInt(acc.serviceRows)).Round(2)
			s.AvgServiceRating = &avgService
		}

		// Left join: a SKU with no catalog entry keeps a nil rating and a nil
		// delta, the row itself is never dropped.
		if rating, ok := catalog[key]; ok && rating != nil {
			s.CatalogRating = rating
			delta := avgProduct.Sub(*rating).Round(2)
			s.RatingDelta = &delta
		}

		summaries = append(summaries, s)
	}

	return summaries
}
