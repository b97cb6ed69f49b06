package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jitsejan/noths-pipeline/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		negative int
		positive int
		want     string
	}{
		{"more negative", 3, 1, models.SentimentNegative},
		{"more positive", 1, 3, models.SentimentPositive},
		{"equal counts", 2, 2, models.SentimentNeutral},
		{"both zero", 0, 0, models.SentimentNeutral},
		{"only negative", 1, 0, models.SentimentNegative},
		{"only positive", 0, 1, models.SentimentPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.negative, tt.positive))
		})
	}
}
