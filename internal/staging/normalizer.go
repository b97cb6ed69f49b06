// Package staging flattens raw nested review records into null-free,
// merchant-scoped staging rows.
package staging

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jitsejan/noths-pipeline/internal/feefo"
	"github.com/jitsejan/noths-pipeline/internal/models"
)

// Defaults applied field-by-field at the staging boundary when an optional raw
// field is absent. Kept in one place so the "absence never blocks processing"
// contract stays auditable. Absence is always defaulted, never dropped; the
// only reason a row is excluded is a merchant mismatch after defaulting.
const (
	DefaultMerchantID        = "unknown"
	DefaultRatingMin         = 1
	DefaultRatingMax         = 5
	DefaultModerationStatus  = "unmoderated"
	DefaultVerificationState = "unverified"
	DefaultHelpfulVotes      = 0
	DefaultLocale            = "en_GB"
)

// Batch carries the lineage identifiers stamped on every staged row.
type Batch struct {
	LoadID  string
	BatchID string
}

// Normalizer turns raw review and catalog-rating records into the staging
// relations consumed by aggregation.
type Normalizer struct {
	log *zap.SugaredLogger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(log *zap.SugaredLogger) *Normalizer {
	return &Normalizer{log: log}
}

// NormalizeReviews flattens reviews to one row per review-product line,
// defaults every optional field, and keeps only rows whose defaulted merchant
// id equals the target merchant.
func (n *Normalizer) NormalizeReviews(target string, batch Batch, reviews []feefo.Review) []models.NormalizedReview {
	rows := make([]models.NormalizedReview, 0, len(reviews))
	dropped := 0

	for _, r := range reviews {
		merchantID := DefaultMerchantID
		if r.Merchant != nil && r.Merchant.Identifier != "" {
			merchantID = r.Merchant.Identifier
		}
		if merchantID != target {
			dropped++
			continue
		}

		createdAt := parseTime(r.Service.CreatedAt)

		for _, line := range r.Products {
			row := models.NormalizedReview{
				ServiceID:         r.Service.ID,
				MerchantID:        merchantID,
				RatingMin:         DefaultRatingMin,
				RatingMax:         DefaultRatingMax,
				ModerationStatus:  stringOr(r.ModerationStatus, DefaultModerationStatus),
				VerificationState: stringOr(r.VerificationState, DefaultVerificationState),
				HelpfulVotes:      intOr(r.Service.HelpfulVotes, DefaultHelpfulVotes),
				Locale:            stringOr(r.Locale, DefaultLocale),
				CreatedAt:         createdAt,
				LastUpdatedDate:   parseTime(r.LastUpdatedDate),
				ProductSKU:        line.Product.SKU,
				ProductTitle:      line.Product.Title,
				ProductRating:     ratingValue(line.Rating),
				ReviewText:        line.Review,
				ProductCreatedAt:  createdAt,
				LoadID:            batch.LoadID,
				BatchID:           batch.BatchID,
			}
			if line.CreatedAt != "" {
				row.ProductCreatedAt = parseTime(line.CreatedAt)
			}
			if r.Service.Rating != nil {
				if r.Service.Rating.Min != nil {
					row.RatingMin = *r.Service.Rating.Min
				}
				if r.Service.Rating.Max != nil {
					row.RatingMax = *r.Service.Rating.Max
				}
				if r.Service.Rating.Rating != nil {
					d := decimal.NewFromFloat(*r.Service.Rating.Rating)
					row.ServiceRating = &d
				}
			}
			rows = append(rows, row)
		}
	}

	n.log.Infow("normalized reviews",
		"merchant_id", target, "reviews", len(reviews), "rows", len(rows), "dropped", dropped)
	return rows
}

// NormalizeProductRatings stamps the run's merchant id on every catalog rating
// row. The catalog source has no merchant field of its own.
func (n *Normalizer) NormalizeProductRatings(target string, batch Batch, ratings []feefo.ProductRating) []models.NormalizedProductRating {
	rows := make([]models.NormalizedProductRating, 0, len(ratings))
	for _, r := range ratings {
		row := models.NormalizedProductRating{
			MerchantID: target,
			ProductSKU: r.SKU,
			LoadID:     batch.LoadID,
			BatchID:    batch.BatchID,
		}
		if r.Rating != nil && r.Rating.Rating != nil {
			d := decimal.NewFromFloat(*r.Rating.Rating)
			row.ProductRating = &d
		}
		rows = append(rows, row)
	}

	n.log.Infow("normalized product ratings", "merchant_id", target, "rows", len(rows))
	return rows
}

func stringOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

func intOr(n *int, def int) int {
	if n == nil {
		return def
	}
	return *n
}

func ratingValue(r *feefo.Rating) decimal.Decimal {
	if r == nil || r.Rating == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*r.Rating)
}

// timeFormats covers the date shapes the API emits.
var timeFormats = []string{
	"2006-01-02T15:04:05.000Z",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime parses an API timestamp, returning the zero time for empty or
// unrecognised input.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
