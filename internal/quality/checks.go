// Package quality holds the post-materialization assertions every run must
// pass. Violations indicate an upstream or normalization defect and fail the
// run; nothing here retries or repairs.
package quality

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jitsejan/noths-pipeline/internal/models"
)

var (
	catalogRatingMin = decimal.NewFromFloat(1.0)
	catalogRatingMax = decimal.NewFromFloat(5.0)
)

// Violation is one failing row of one check.
type Violation struct {
	Check  string `json:"check"`
	Row    string `json:"row"`
	Detail string `json:"detail"`
}

// AssertionError reports a run-level data-quality failure.
type AssertionError struct {
	Violations []Violation
}

func (e *AssertionError) Error() string {
	checks := make(map[string]int)
	for _, v := range e.Violations {
		checks[v.Check]++
	}
	parts := make([]string, 0, len(checks))
	for check, n := range checks {
		parts = append(parts, fmt.Sprintf("%s (%d rows)", check, n))
	}
	return fmt.Sprintf("data-quality assertions failed: %s", strings.Join(parts, ", "))
}

// CheckStagedReviews validates the staged review relation: the defaulted field
// set is never empty and no last-updated date lies in the future. Integer
// fields in the set (rating bounds, helpful votes) are non-null by
// construction of the staging schema.
func CheckStagedReviews(rows []models.NormalizedReview, now time.Time) []Violation {
	var violations []Violation
	for i, row := range rows {
		ref := fmt.Sprintf("stg_reviews[%d] service_id=%s sku=%s", i, row.ServiceID, row.ProductSKU)

		required := map[string]string{
			"merchant_id":        row.MerchantID,
			"moderation_status":  row.ModerationStatus,
			"verification_state": row.VerificationState,
			"locale":             row.Locale,
		}
		for field, value := range required {
			if value == "" {
				violations = append(violations, Violation{
					Check:  "stg_reviews_not_null",
					Row:    ref,
					Detail: field + " is empty",
				})
			}
		}

		if row.LastUpdatedDate.After(now) {
			violations = append(violations, Violation{
				Check:  "stg_reviews_last_updated_not_future",
				Row:    ref,
				Detail: fmt.Sprintf("last_updated_date %s exceeds %s", row.LastUpdatedDate.Format(time.RFC3339), now.Format(time.RFC3339)),
			})
		}
	}
	return violations
}

// CheckStagedRatings validates that every non-null catalog rating lies within
// [1.0, 5.0].
func CheckStagedRatings(rows []models.NormalizedProductRating) []Violation {
	var violations []Violation
	for i, row := range rows {
		if row.ProductRating == nil {
			continue
		}
		if row.ProductRating.LessThan(catalogRatingMin) || row.ProductRating.GreaterThan(catalogRatingMax) {
			violations = append(violations, Violation{
				Check:  "stg_product_ratings_in_range",
				Row:    fmt.Sprintf("stg_product_ratings[%d] sku=%s", i, row.ProductSKU),
				Detail: fmt.Sprintf("product_rating %s outside [1.0, 5.0]", row.ProductRating.String()),
			})
		}
	}
	return violations
}
