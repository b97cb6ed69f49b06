package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jitsejan/noths-pipeline/internal/feefo"
	"github.com/jitsejan/noths-pipeline/internal/models"
)

// WriteMode controls how raw records are persisted across runs.
type WriteMode string

const (
	// WriteMerge upserts raw rows by primary key. Idempotent.
	WriteMerge WriteMode = "merge"
	// WriteReplace clears the raw tables before inserting. Idempotent.
	WriteReplace WriteMode = "replace"
	// WriteAppend only inserts rows not already present.
	WriteAppend WriteMode = "append"
)

// ParseWriteMode validates a write mode string.
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(s) {
	case WriteMerge, WriteReplace, WriteAppend:
		return WriteMode(s), nil
	}
	return "", fmt.Errorf("invalid mode: %s (must be one of: merge, replace, append)", s)
}

// Repository handles database operations for raw, staged and summary data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WriteRawReviews persists fetched review records and their product lines
// according to the write mode. Returns the number of reviews written.
func (r *Repository) WriteRawReviews(ctx context.Context, mode WriteMode, reviews []feefo.Review, loadID, batchID string) (int, error) {
	if len(reviews) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning raw review write: %w", err)
	}
	defer tx.Rollback(ctx)

	if mode == WriteReplace {
		if _, err := tx.Exec(ctx, "DELETE FROM raw_reviews"); err != nil {
			return 0, fmt.Errorf("clearing raw reviews: %w", err)
		}
	}

	reviewConflict := "ON CONFLICT (url) DO NOTHING"
	if mode == WriteMerge {
		reviewConflict = `ON CONFLICT (url) DO UPDATE SET
			service_id = EXCLUDED.service_id,
			merchant_id = EXCLUDED.merchant_id,
			service_rating = EXCLUDED.service_rating,
			rating_min = EXCLUDED.rating_min,
			rating_max = EXCLUDED.rating_max,
			moderation_status = EXCLUDED.moderation_status,
			verification_state = EXCLUDED.verification_state,
			helpful_votes = EXCLUDED.helpful_votes,
			locale = EXCLUDED.locale,
			created_at = EXCLUDED.created_at,
			last_updated_date = EXCLUDED.last_updated_date,
			load_id = EXCLUDED.load_id,
			batch_id = EXCLUDED.batch_id`
	}

	batch := &pgx.Batch{}
	queued := 0
	for _, rev := range reviews {
		var merchantID *string
		if rev.Merchant != nil {
			merchantID = &rev.Merchant.Identifier
		}
		var serviceRating *float64
		var ratingMin, ratingMax *int
		if rev.Service.Rating != nil {
			serviceRating = rev.Service.Rating.Rating
			ratingMin = rev.Service.Rating.Min
			ratingMax = rev.Service.Rating.Max
		}

		batch.Queue(`
			INSERT INTO raw_reviews (
				url, service_id, merchant_id, service_rating, rating_min, rating_max,
				moderation_status, verification_state, helpful_votes, locale,
				created_at, last_updated_date, load_id, batch_id
			) VALUES (
				$1, $2, $3, $4, $5, $6,
				$7, $8, $9, $10,
				$11, $12, $13, $14
			) `+reviewConflict,
			rev.URL, rev.Service.ID, merchantID, serviceRating, ratingMin, ratingMax,
			rev.ModerationStatus, rev.VerificationState, rev.Service.HelpfulVotes, rev.Locale,
			parseTime(rev.Service.CreatedAt), parseTime(rev.LastUpdatedDate), loadID, batchID,
		)
		queued++

		for _, line := range rev.Products {
			var lineRating *float64
			if line.Rating != nil {
				lineRating = line.Rating.Rating
			}
			batch.Queue(`
				INSERT INTO raw_review_products (
					review_url, product_sku, product_title, product_rating, review_text, created_at
				) VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (review_url, product_sku) DO UPDATE SET
					product_title = EXCLUDED.product_title,
					product_rating = EXCLUDED.product_rating,
					review_text = EXCLUDED.review_text,
					created_at = EXCLUDED.created_at`,
				rev.URL, line.Product.SKU, line.Product.Title, lineRating, line.Review, parseTime(line.CreatedAt),
			)
			queued++
		}
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("writing raw review: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("closing raw review batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing raw reviews: %w", err)
	}
	return len(reviews), nil
}

// WriteRawProductRatings persists fetched catalog ratings according to the
// write mode.
func (r *Repository) WriteRawProductRatings(ctx context.Context, mode WriteMode, ratings []feefo.ProductRating, loadID, batchID string) (int, error) {
	if len(ratings) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning raw rating write: %w", err)
	}
	defer tx.Rollback(ctx)

	if mode == WriteReplace {
		if _, err := tx.Exec(ctx, "DELETE FROM raw_product_ratings"); err != nil {
			return 0, fmt.Errorf("clearing raw product ratings: %w", err)
		}
	}

	conflict := "ON CONFLICT (product_sku) DO NOTHING"
	if mode == WriteMerge {
		conflict = `ON CONFLICT (product_sku) DO UPDATE SET
			product_rating = EXCLUDED.product_rating,
			load_id = EXCLUDED.load_id,
			batch_id = EXCLUDED.batch_id`
	}

	batch := &pgx.Batch{}
	for _, rating := range ratings {
		var value *float64
		if rating.Rating != nil {
			value = rating.Rating.Rating
		}
		batch.Queue(`
			INSERT INTO raw_product_ratings (product_sku, product_rating, load_id, batch_id)
			VALUES ($1, $2, $3, $4) `+conflict,
			rating.SKU, value, loadID, batchID,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range ratings {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("writing raw product rating: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("closing raw rating batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing raw product ratings: %w", err)
	}
	return len(ratings), nil
}

// ReplaceStagedReviews replaces the merchant's staged review rows wholesale in
// one transaction: a partially computed replacement never becomes visible.
func (r *Repository) ReplaceStagedReviews(ctx context.Context, merchantID string, rows []models.NormalizedReview) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning staged review replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM stg_reviews WHERE merchant_id = $1", merchantID); err != nil {
		return 0, fmt.Errorf("clearing staged reviews: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO stg_reviews (
				service_id, merchant_id, service_rating, rating_min, rating_max,
				moderation_status, verification_state, helpful_votes, locale,
				created_at, last_updated_date,
				product_sku, product_title, product_rating, review_text, product_created_at,
				load_id, batch_id
			) VALUES (
				$1, $2, $3, $4, $5,
				$6, $7, $8, $9,
				$10, $11,
				$12, $13, $14, $15, $16,
				$17, $18
			)`,
			row.ServiceID, row.MerchantID, decimalPtr(row.ServiceRating), row.RatingMin, row.RatingMax,
			row.ModerationStatus, row.VerificationState, row.HelpfulVotes, row.Locale,
			timePtr(row.CreatedAt), timePtr(row.LastUpdatedDate),
			row.ProductSKU, row.ProductTitle, row.ProductRating, row.ReviewText, timePtr(row.ProductCreatedAt),
			row.LoadID, row.BatchID,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("inserting staged review: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("closing staged review batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing staged reviews: %w", err)
	}
	return len(rows), nil
}

// ReplaceStagedRatings replaces the merchant's staged catalog ratings
// wholesale in one transaction.
func (r *Repository) ReplaceStagedRatings(ctx context.Context, merchantID string, rows []models.NormalizedProductRating) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning staged rating replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM stg_product_ratings WHERE merchant_id = $1", merchantID); err != nil {
		return 0, fmt.Errorf("clearing staged ratings: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO stg_product_ratings (merchant_id, product_sku, product_rating, load_id, batch_id)
			VALUES ($1, $2, $3, $4, $5)`,
			row.MerchantID, row.ProductSKU, decimalPtr(row.ProductRating), row.LoadID, row.BatchID,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("inserting staged rating: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("closing staged rating batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing staged ratings: %w", err)
	}
	return len(rows), nil
}

// ReplaceProductSummaries replaces the merchant's summary rows wholesale in
// one transaction. Insertion order is the relation's natural row order and is
// preserved by the serial id.
func (r *Repository) ReplaceProductSummaries(ctx context.Context, merchantID string, rows []models.ProductSummary) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning summary replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM product_summaries WHERE merchant_id = $1", merchantID); err != nil {
		return 0, fmt.Errorf("clearing summaries: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO product_summaries (
				merchant_id, product_sku, product_title, review_count,
				avg_product_review_rating, avg_service_rating, catalog_rating, rating_delta,
				latest_review_date, first_review_date,
				reviews_with_text, negative_reviews, positive_reviews, overall_sentiment
			) VALUES (
				$1, $2, $3, $4,
				$5, $6, $7, $8,
				$9, $10,
				$11, $12, $13, $14
			)`,
			row.MerchantID, row.ProductSKU, row.ProductTitle, row.ReviewCount,
			row.AvgProductRating, decimalPtr(row.AvgServiceRating), decimalPtr(row.CatalogRating), decimalPtr(row.RatingDelta),
			row.LatestReviewDate, row.FirstReviewDate,
			row.ReviewsWithText, row.NegativeReviews, row.PositiveReviews, row.OverallSentiment,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("inserting summary: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("closing summary batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing summaries: %w", err)
	}
	return len(rows), nil
}

const summaryColumns = `merchant_id, product_sku, product_title, review_count,
	avg_product_review_rating, avg_service_rating, catalog_rating, rating_delta,
	latest_review_date, first_review_date,
	reviews_with_text, negative_reviews, positive_reviews, overall_sentiment`

// GetProductSummaries returns the merchant's summary rows in natural order.
func (r *Repository) GetProductSummaries(ctx context.Context, merchantID string) ([]models.ProductSummary, error) {
	query := fmt.Sprintf(`SELECT %s FROM product_summaries WHERE merchant_id = $1 ORDER BY id`, summaryColumns)
	return r.querySummaries(ctx, query, merchantID)
}

// GetTopByVolume returns at most five summary rows ordered by review count
// descending, ties broken by natural row order.
func (r *Repository) GetTopByVolume(ctx context.Context, merchantID string) ([]models.TopProduct, error) {
	query := fmt.Sprintf(`SELECT %s FROM product_summaries WHERE merchant_id = $1
		ORDER BY review_count DESC, id LIMIT 5`, summaryColumns)
	summaries, err := r.querySummaries(ctx, query, merchantID)
	if err != nil {
		return nil, err
	}

	top := make([]models.TopProduct, 0, len(summaries))
	for _, s := range summaries {
		top = append(top, models.TopProduct{
			MerchantID:       s.MerchantID,
			ProductSKU:       s.ProductSKU,
			ProductTitle:     s.ProductTitle,
			ReviewCount:      s.ReviewCount,
			AvgProductRating: s.AvgProductRating,
			CatalogRating:    s.CatalogRating,
			LatestReviewDate: s.LatestReviewDate,
			ReviewsWithText:  s.ReviewsWithText,
			NegativeReviews:  s.NegativeReviews,
			PositiveReviews:  s.PositiveReviews,
			OverallSentiment: s.OverallSentiment,
		})
	}
	return top, nil
}

// GetRankedByRating returns all summary rows ordered by average product review
// rating descending, then review count descending.
func (r *Repository) GetRankedByRating(ctx context.Context, merchantID string) ([]models.ProductSummary, error) {
	query := fmt.Sprintf(`SELECT %s FROM product_summaries WHERE merchant_id = $1
		ORDER BY avg_product_review_rating DESC, review_count DESC, id`, summaryColumns)
	return r.querySummaries(ctx, query, merchantID)
}

func (r *Repository) querySummaries(ctx context.Context, query string, merchantID string) ([]models.ProductSummary, error) {
	rows, err := r.pool.Query(ctx, query, merchantID)
	if err != nil {
		return nil, fmt.Errorf("querying summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.ProductSummary
	for rows.Next() {
		var s models.ProductSummary
		var avg string
		var avgService, catalog, delta sql.NullString

		if err := rows.Scan(
			&s.MerchantID, &s.ProductSKU, &s.ProductTitle, &s.ReviewCount,
			&avg, &avgService, &catalog, &delta,
			&s.LatestReviewDate, &s.FirstReviewDate,
			&s.ReviewsWithText, &s.NegativeReviews, &s.PositiveReviews, &s.OverallSentiment,
		); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}

		s.AvgProductRating, err = decimal.NewFromString(avg)
		if err != nil {
			return nil, fmt.Errorf("parsing avg rating: %w", err)
		}
		if s.AvgServiceRating, err = nullDecimal(avgService); err != nil {
			return nil, err
		}
		if s.CatalogRating, err = nullDecimal(catalog); err != nil {
			return nil, err
		}
		if s.RatingDelta, err = nullDecimal(delta); err != nil {
			return nil, err
		}

		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Status reports row counts per relation.
type Status struct {
	RawReviews        int `json:"raw_reviews"`
	RawProductRatings int `json:"raw_product_ratings"`
	StagedReviews     int `json:"staged_reviews"`
	StagedRatings     int `json:"staged_ratings"`
	Summaries         int `json:"summaries"`
}

// GetStatus returns row counts for the raw tables and the merchant's staged
// and summary relations.
func (r *Repository) GetStatus(ctx context.Context, merchantID string) (Status, error) {
	var s Status
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM raw_reviews),
			(SELECT COUNT(*) FROM raw_product_ratings),
			(SELECT COUNT(*) FROM stg_reviews WHERE merchant_id = $1),
			(SELECT COUNT(*) FROM stg_product_ratings WHERE merchant_id = $1),
			(SELECT COUNT(*) FROM product_summaries WHERE merchant_id = $1)`,
		merchantID,
	).Scan(&s.RawReviews, &s.RawProductRatings, &s.StagedReviews, &s.StagedRatings, &s.Summaries)
	if err != nil {
		return Status{}, fmt.Errorf("querying status: %w", err)
	}
	return s, nil
}

// rawTimeFormats covers the timestamp shapes the review API emits.
var rawTimeFormats = []string{
	"2006-01-02T15:04:05.000Z",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime parses an API timestamp, returning nil for empty or unrecognised
// input so the column stays NULL.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, format := range rawTimeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return &t
		}
	}
	return nil
}

// decimalPtr converts a *decimal.Decimal to interface{} for database insertion.
func decimalPtr(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return *d
}

// timePtr converts a zero time to NULL for database insertion.
func timePtr(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullDecimal(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, fmt.Errorf("parsing decimal: %w", err)
	}
	return &d, nil
}
