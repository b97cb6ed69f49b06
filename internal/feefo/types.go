package feefo

// reviewsResponse is the raw API response from the reviews endpoint. Reviews
// are nested: each review embeds merchant, service and per-product sub-records.
type reviewsResponse struct {
	Reviews []Review `json:"reviews"`
	Summary struct {
		Meta struct {
			Pages int `json:"pages"`
			Page  int `json:"page"`
			Count int `json:"count"`
		} `json:"meta"`
	} `json:"summary"`
}

// productRatingsResponse is the raw API response from the product ratings
// endpoint.
type productRatingsResponse struct {
	Products []ProductRating `json:"products"`
}

// Review is one raw top-level review record.
type Review struct {
	URL               string        `json:"url"`
	Merchant          *Merchant     `json:"merchant,omitempty"`
	Locale            *string       `json:"locale,omitempty"`
	LastUpdatedDate   string        `json:"last_updated_date,omitempty"`
	ModerationStatus  *string       `json:"moderation_status,omitempty"`
	VerificationState *string       `json:"verification_state,omitempty"`
	Service           Service       `json:"service"`
	Products          []ProductLine `json:"products,omitempty"`
}

// Merchant identifies the tenant a review belongs to.
type Merchant struct {
	Identifier string `json:"identifier"`
}

// Service is the service-level part of a review.
type Service struct {
	ID           string  `json:"id"`
	Rating       *Rating `json:"rating,omitempty"`
	CreatedAt    string  `json:"created_at"`
	HelpfulVotes *int    `json:"helpful_votes,omitempty"`
}

// Rating is a rating value with its declared scale bounds.
type Rating struct {
	Min    *int     `json:"min,omitempty"`
	Max    *int     `json:"max,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
}

// ProductLine is one per-product sub-record embedded in a review.
type ProductLine struct {
	Product   ProductRef `json:"product"`
	Rating    *Rating    `json:"rating,omitempty"`
	Review    *string    `json:"review,omitempty"`
	CreatedAt string     `json:"created_at,omitempty"`
}

// ProductRef identifies the product a review line is about.
type ProductRef struct {
	SKU   string `json:"sku"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// ProductRating is one flat catalog rating record for a SKU.
type ProductRating struct {
	SKU    string         `json:"sku"`
	Title  string         `json:"title,omitempty"`
	Rating *RatingSummary `json:"rating,omitempty"`
}

// RatingSummary is the catalog-wide rating for a product.
type RatingSummary struct {
	Rating *float64 `json:"rating,omitempty"`
	Count  int      `json:"count,omitempty"`
}

// SKUsFromReviews extracts the unique product SKUs referenced by a batch of
// reviews, preserving first-seen order. Lines without a SKU are skipped.
func SKUsFromReviews(reviews []Review) []string {
	seen := make(map[string]struct{})
	var skus []string
	for _, r := range reviews {
		for _, line := range r.Products {
			sku := line.Product.SKU
			if sku == "" {
				continue
			}
			if _, dup := seen[sku]; dup {
				continue
			}
			seen[sku] = struct{}{}
			skus = append(skus, sku)
		}
	}
	return skus
}
