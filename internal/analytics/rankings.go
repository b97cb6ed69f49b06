package analytics

import (
	"sort"

	"github.com/jitsejan/noths-pipeline/internal/models"
)

// TopVolumeLimit is the row cap for the top-by-volume view.
const TopVolumeLimit = 5

// TopByVolume returns at most TopVolumeLimit summary rows ordered by review
// count descending. Ties keep the summary relation's natural row order; that
// tie-break is implementation-defined and input-order dependent.
func TopByVolume(summaries []models.ProductSummary) []models.TopProduct {
	ranked := make([]models.ProductSummary, len(summaries))
	copy(ranked, summaries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ReviewCount > ranked[j].ReviewCount
	})

	if len(ranked) > TopVolumeLimit {
		ranked = ranked[:TopVolumeLimit]
	}

	top := make([]models.TopProduct, 0, len(ranked))
	for _, s := range ranked {
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
	return top
}

// RankByRating returns every summary row ordered by average product review
// rating descending, then review count descending.
func RankByRating(summaries []models.ProductSummary) []models.ProductSummary {
	ranked := make([]models.ProductSummary, len(summaries))
	copy(ranked, summaries)
	sort.SliceStable(ranked, func(i, j int) bool {
		if cmp := ranked[i].AvgProductRating.Cmp(ranked[j].AvgProductRating); cmp != 0 {
			return cmp > 0
		}
		return ranked[i].ReviewCount > ranked[j].ReviewCount
	})
	return ranked
}
