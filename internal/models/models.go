package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sentiment labels derived from positive/negative review counts.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// NormalizedReview is one staged row per review-product line. Every field in
// the required set (merchant, rating bounds, moderation, verification, helpful
// votes, locale) is defaulted at the staging boundary and is never null
// downstream.
type NormalizedReview struct {
	ServiceID         string           `json:"service_id"`
	MerchantID        string           `json:"merchant_id"`
	ServiceRating     *decimal.Decimal `json:"service_rating"`
	RatingMin         int              `json:"rating_min"`
	RatingMax         int              `json:"rating_max"`
	ModerationStatus  string           `json:"moderation_status"`
	VerificationState string           `json:"verification_state"`
	HelpfulVotes      int              `json:"helpful_votes"`
	Locale            string           `json:"locale"`
	CreatedAt         time.Time        `json:"created_at"`
	LastUpdatedDate   time.Time        `json:"last_updated_date"`
	ProductSKU        string           `json:"product_sku"`
	ProductTitle      string           `json:"product_title"`
	ProductRating     decimal.Decimal  `json:"product_rating"`
	ReviewText        *string          `json:"review_text"`
	ProductCreatedAt  time.Time        `json:"product_created_at"`
	LoadID            string           `json:"load_id"`
	BatchID           string           `json:"batch_id"`
}

// NormalizedProductRating is one staged catalog rating per (merchant, SKU).
// The merchant id is stamped from the run parameter since the catalog source
// carries no merchant field of its own.
type NormalizedProductRating struct {
	MerchantID    string           `json:"merchant_id"`
	ProductSKU    string           `json:"product_sku"`
	ProductRating *decimal.Decimal `json:"product_rating"`
	LoadID        string           `json:"load_id"`
	BatchID       string           `json:"batch_id"`
}

// ProductSummary is the gold row per (merchant, SKU), fully recomputed on
// every run. CatalogRating and RatingDelta are nil for SKUs with no catalog
// match; AvgServiceRating is nil when no row in the group carried a service
// rating.
type ProductSummary struct {
	MerchantID       string           `json:"merchant_id"`
	ProductSKU       string           `json:"product_sku"`
	ProductTitle     string           `json:"product_title"`
	ReviewCount      int              `json:"review_count"`
	AvgProductRating decimal.Decimal  `json:"avg_product_review_rating"`
	AvgServiceRating *decimal.Decimal `json:"avg_service_rating"`
	CatalogRating    *decimal.Decimal `json:"catalog_rating"`
	RatingDelta      *decimal.Decimal `json:"rating_delta"`
	LatestReviewDate time.Time        `json:"latest_review_date"`
	FirstReviewDate  time.Time        `json:"first_review_date"`
	ReviewsWithText  int              `json:"reviews_with_text"`
	NegativeReviews  int              `json:"negative_reviews"`
	PositiveReviews  int              `json:"positive_reviews"`
	OverallSentiment string           `json:"overall_sentiment"`
}

// TopProduct is the top-by-volume projection of ProductSummary. It drops the
// service average, rating delta and first review date.
type TopProduct struct {
	MerchantID       string           `json:"merchant_id"`
	ProductSKU       string           `json:"product_sku"`
	ProductTitle     string           `json:"product_title"`
	ReviewCount      int              `json:"review_count"`
	AvgProductRating decimal.Decimal  `json:"avg_product_review_rating"`
	CatalogRating    *decimal.Decimal `json:"catalog_rating"`
	LatestReviewDate time.Time        `json:"latest_review_date"`
	ReviewsWithText  int              `json:"reviews_with_text"`
	NegativeReviews  int              `json:"negative_reviews"`
	PositiveReviews  int              `json:"positive_reviews"`
	OverallSentiment string           `json:"overall_sentiment"`
}

// RunReport captures per-relation row counts for one pipeline run.
type RunReport struct {
	MerchantID     string    `json:"merchant_id"`
	LoadID         string    `json:"load_id"`
	BatchID        string    `json:"batch_id"`
	ReviewsFetched int       `json:"reviews_fetched"`
	RatingsFetched int       `json:"ratings_fetched"`
	StagedReviews  int       `json:"staged_reviews"`
	StagedRatings  int       `json:"staged_ratings"`
	Summaries      int       `json:"summaries"`
	StartedAt      time.Time `json:"started_at"`
	Elapsed        string    `json:"elapsed"`
}
