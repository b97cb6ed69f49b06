package analytics

import "github.com/jitsejan/noths-pipeline/internal/models"

// Classify derives the three-valued sentiment label from the positive and
// negative review counts. The comparison is order-only; equal counts
// (including both zero) are neutral.
func Classify(negative, positive int) string {
	switch {
	case negative > positive:
		return models.SentimentNegative
	case positive > negative:
		return models.SentimentPositive
	default:
		return models.SentimentNeutral
	}
}
