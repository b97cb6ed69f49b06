package staging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jitsejan/noths-pipeline/internal/feefo"
)

const testMerchant = "test-merchant"

func testNormalizer() *Normalizer {
	return NewNormalizer(zap.NewNop().Sugar())
}

func testBatch() Batch {
	return Batch{LoadID: "load-1", BatchID: "batch-1"}
}

func strPtr(s string) *string  { return &s }
func intPtr(n int) *int        { return &n }
func f64Ptr(f float64) *float64 { return &f }

func reviewWith(merchant string, lines ...feefo.ProductLine) feefo.Review {
	r := feefo.Review{
		URL: "https://reviews.example.com/1",
		Service: feefo.Service{
			ID:        "svc-1",
			CreatedAt: "2024-03-01T10:00:00.000Z",
			Rating:    &feefo.Rating{Min: intPtr(1), Max: intPtr(5), Rating: f64Ptr(5)},
		},
		Products: lines,
	}
	if merchant != "" {
		r.Merchant = &feefo.Merchant{Identifier: merchant}
	}
	return r
}

func productLine(sku string) feefo.ProductLine {
	return feefo.ProductLine{
		Product: feefo.ProductRef{SKU: sku, Title: "Product " + sku},
		Rating:  &feefo.Rating{Rating: f64Ptr(4)},
	}
}

func TestNormalizeReviewsAppliesDefaults(t *testing.T) {
	// Review with every optional field absent.
	r := feefo.Review{
		URL:      "https://reviews.example.com/1",
		Merchant: &feefo.Merchant{Identifier: testMerchant},
		Service:  feefo.Service{ID: "svc-1", CreatedAt: "2024-03-01T10:00:00.000Z"},
		Products: []feefo.ProductLine{productLine("SKU-1")},
	}

	rows := testNormalizer().NormalizeReviews(testMerchant, testBatch(), []feefo.Review{r})
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, testMerchant, row.MerchantID)
	assert.Equal(t, DefaultRatingMin, row.RatingMin)
	assert.Equal(t, DefaultRatingMax, row.RatingMax)
	assert.Equal(t, DefaultModerationStatus, row.ModerationStatus)
	assert.Equal(t, DefaultVerificationState, row.VerificationState)
	assert.Equal(t, DefaultHelpfulVotes, row.HelpfulVotes)
	assert.Equal(t, DefaultLocale, row.Locale)
	assert.Nil(t, row.ServiceRating)
	assert.Equal(t, "load-1", row.LoadID)
	assert.Equal(t, "batch-1", row.BatchID)
}

func TestNormalizeReviewsKeepsPresentValues(t *testing.T) {
	r := reviewWith(testMerchant, productLine("SKU-1"))
	r.ModerationStatus = strPtr("displayed")
	r.VerificationState = strPtr("verified")
	r.Locale = strPtr("fr_FR")
	r.Service.HelpfulVotes = intPtr(7)
	r.Service.Rating = &feefo.Rating{Min: intPtr(0), Max: intPtr(10), Rating: f64Ptr(9)}

	rows := testNormalizer().NormalizeReviews(testMerchant, testBatch(), []feefo.Review{r})
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "displayed", row.ModerationStatus)
	assert.Equal(t, "verified", row.VerificationState)
	assert.Equal(t, "fr_FR", row.Locale)
	assert.Equal(t, 7, row.HelpfulVotes)
	assert.Equal(t, 0, row.RatingMin)
	assert.Equal(t, 10, row.RatingMax)
	require.NotNil(t, row.ServiceRating)
	assert.Equal(t, "9", row.ServiceRating.String())
}

func TestNormalizeReviewsFlattensProductLines(t *testing.T) {
	r := reviewWith(testMerchant, productLine("SKU-A"), productLine("SKU-B"), productLine("SKU-C"))

	rows := testNormalizer().NormalizeReviews(testMerchant, testBatch(), []feefo.Review{r})
	require.Len(t, rows, 3)
	assert.Equal(t, "SKU-A", rows[0].ProductSKU)
	assert.Equal(t, "SKU-B", rows[1].ProductSKU)
	assert.Equal(t, "SKU-C", rows[2].ProductSKU)
	for _, row := range rows {
		assert.Equal(t, "svc-1", row.ServiceID)
	}
}

func TestNormalizeReviewsFiltersByMerchant(t *testing.T) {
	reviews := []feefo.Review{
		reviewWith(testMerchant, productLine("SKU-1")),
		reviewWith("other-merchant", productLine("SKU-2")),
		// No merchant at all: defaults to "unknown" and is filtered out.
		reviewWith("", productLine("SKU-3")),
	}

	rows := testNormalizer().NormalizeReviews(testMerchant, testBatch(), reviews)
	require.Len(t, rows, 1)
	assert.Equal(t, "SKU-1", rows[0].ProductSKU)
}

func TestNormalizeReviewsKeepsDefaultedUnknownMerchant(t *testing.T) {
	// When the run targets "unknown", rows without a merchant survive.
	rows := testNormalizer().NormalizeReviews(DefaultMerchantID, testBatch(), []feefo.Review{
		reviewWith("", productLine("SKU-1")),
	})
	require.Len(t, rows, 1)
	assert.Equal(t, DefaultMerchantID, rows[0].MerchantID)
}

func TestNormalizeReviewsNoProductLinesNoRows(t *testing.T) {
	rows := testNormalizer().NormalizeReviews(testMerchant, testBatch(), []feefo.Review{
		reviewWith(testMerchant),
	})
	assert.Empty(t, rows)
}

func TestNormalizeReviewsParsesDates(t *testing.T) {
	r := reviewWith(testMerchant, productLine("SKU-1"))
	r.Service.CreatedAt = "2024-02-29T12:30:00.000Z"
	r.LastUpdatedDate = "2024-03-01"

	rows := testNormalizer().NormalizeReviews(testMerchant, testBatch(), []feefo.Review{r})
	require.Len(t, rows, 1)
	assert.Equal(t, time.Date(2024, 2, 29, 12, 30, 0, 0, time.UTC), rows[0].CreatedAt)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rows[0].LastUpdatedDate)
}

func TestNormalizeProductRatingsStampsMerchant(t *testing.T) {
	ratings := []feefo.ProductRating{
		{SKU: "SKU-1", Rating: &feefo.RatingSummary{Rating: f64Ptr(4.5), Count: 10}},
		{SKU: "SKU-2"},
	}

	rows := testNormalizer().NormalizeProductRatings(testMerchant, testBatch(), ratings)
	require.Len(t, rows, 2)

	assert.Equal(t, testMerchant, rows[0].MerchantID)
	require.NotNil(t, rows[0].ProductRating)
	assert.Equal(t, "4.5", rows[0].ProductRating.String())

	assert.Equal(t, testMerchant, rows[1].MerchantID)
	assert.Nil(t, rows[1].ProductRating)
}
