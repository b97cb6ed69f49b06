package feefo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func f64(v float64) *float64 { return &v }

// newReviewServer serves paginated reviews and per-SKU product ratings,
// recording every request.
func newReviewServer(t *testing.T, totalPages int) (*httptest.Server, *[]*http.Request) {
	t.Helper()
	var requests []*http.Request

	mux := http.NewServeMux()
	mux.HandleFunc("/reviews/all", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 0 {
			page = 1
		}

		resp := reviewsResponse{
			Reviews: []Review{
				{
					URL:      fmt.Sprintf("https://reviews.example.com/%d-1", page),
					Merchant: &Merchant{Identifier: "test-merchant"},
					Service:  Service{ID: fmt.Sprintf("svc-%d-1", page), CreatedAt: "2024-03-01T10:00:00.000Z"},
					Products: []ProductLine{{
						Product: ProductRef{SKU: fmt.Sprintf("SKU-%03d", page), Title: "Test Product"},
						Rating:  &Rating{Rating: f64(5)},
					}},
				},
			},
		}
		resp.Summary.Meta.Pages = totalPages
		resp.Summary.Meta.Page = page
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/products/ratings", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r)
		sku := r.URL.Query().Get("product_sku")
		json.NewEncoder(w).Encode(productRatingsResponse{
			Products: []ProductRating{{SKU: sku, Rating: &RatingSummary{Rating: f64(4.5), Count: 10}}},
		})
	})

	return httptest.NewServer(mux), &requests
}

func testClient(baseURL string) *Client {
	c := NewClient(baseURL, zap.NewNop().Sugar())
	c.retryBase = time.Millisecond
	c.limiter.interval = 0
	return c
}

func TestFetchReviewsAllPages(t *testing.T) {
	srv, requests := newReviewServer(t, 3)
	defer srv.Close()

	reviews, err := testClient(srv.URL).FetchReviews(context.Background(), ReviewQuery{
		MerchantID: "test-merchant",
	})
	require.NoError(t, err)
	assert.Len(t, reviews, 3)
	assert.Len(t, *requests, 3)
}

func TestFetchReviewsMaxPagesLimitsCalls(t *testing.T) {
	srv, requests := newReviewServer(t, 3)
	defer srv.Close()

	reviews, err := testClient(srv.URL).FetchReviews(context.Background(), ReviewQuery{
		MerchantID: "test-merchant",
		MaxPages:   1,
	})
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
	assert.Len(t, *requests, 1)
}

func TestFetchReviewsQueryParams(t *testing.T) {
	srv, requests := newReviewServer(t, 1)
	defer srv.Close()

	_, err := testClient(srv.URL).FetchReviews(context.Background(), ReviewQuery{
		MerchantID: "test-merchant",
		Since:      "2024-01-01",
		Until:      "2024-06-30",
	})
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	q := (*requests)[0].URL.Query()
	assert.Equal(t, "test-merchant", q.Get("merchant_identifier"))
	assert.Equal(t, "2024-01-01", q.Get("since"))
	assert.Equal(t, "2024-06-30", q.Get("until"))
	assert.Equal(t, "1", q.Get("page"))
}

func TestFetchProductRatingsOneCallPerSKU(t *testing.T) {
	srv, requests := newReviewServer(t, 1)
	defer srv.Close()

	ratings, err := testClient(srv.URL).FetchProductRatings(context.Background(),
		"test-merchant", []string{"SKU-A", "SKU-B"}, 0)
	require.NoError(t, err)

	require.Len(t, ratings, 2)
	assert.Equal(t, "SKU-A", ratings[0].SKU)
	assert.Equal(t, "SKU-B", ratings[1].SKU)
	require.Len(t, *requests, 2)
	assert.Empty(t, (*requests)[0].URL.Query().Get("since_period"))
}

func TestFetchProductRatingsPeriodFormatting(t *testing.T) {
	for _, days := range []int{7, 30, 90, 365} {
		t.Run(fmt.Sprintf("%ddays", days), func(t *testing.T) {
			srv, requests := newReviewServer(t, 1)
			defer srv.Close()

			_, err := testClient(srv.URL).FetchProductRatings(context.Background(),
				"test-merchant", []string{"SKU-A"}, days)
			require.NoError(t, err)

			require.Len(t, *requests, 1)
			assert.Equal(t, fmt.Sprintf("%ddays", days), (*requests)[0].URL.Query().Get("since_period"))
		})
	}
}

func TestFetchReviewsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchReviews(context.Background(), ReviewQuery{MerchantID: "test-merchant"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestSKUsFromReviewsDeduplicates(t *testing.T) {
	reviews := []Review{
		{Products: []ProductLine{{Product: ProductRef{SKU: "DUPLICATE-SKU"}}}},
		{Products: []ProductLine{{Product: ProductRef{SKU: "DUPLICATE-SKU"}}}},
		{Products: []ProductLine{{Product: ProductRef{SKU: "UNIQUE-SKU"}}}},
	}
	assert.Equal(t, []string{"DUPLICATE-SKU", "UNIQUE-SKU"}, SKUsFromReviews(reviews))
}

func TestSKUsFromReviewsMultipleProductsPerReview(t *testing.T) {
	reviews := []Review{
		{Products: []ProductLine{
			{Product: ProductRef{SKU: "SKU-A"}},
			{Product: ProductRef{SKU: "SKU-B"}},
			{Product: ProductRef{SKU: "SKU-C"}},
		}},
	}
	assert.Equal(t, []string{"SKU-A", "SKU-B", "SKU-C"}, SKUsFromReviews(reviews))
}

func TestSKUsFromReviewsSkipsMissingSKU(t *testing.T) {
	reviews := []Review{
		{Products: []ProductLine{{Product: ProductRef{Title: "No SKU"}}}},
		{Products: []ProductLine{}},
		{Products: []ProductLine{{Product: ProductRef{SKU: "VALID-SKU"}}}},
	}
	assert.Equal(t, []string{"VALID-SKU"}, SKUsFromReviews(reviews))
}
