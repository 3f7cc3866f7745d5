package models

import "time"

// RawListing is a marketplace listing exactly as an adapter returned it,
// before it is merged into a canonical product
type RawListing struct {
	Marketplace Marketplace
	Name        string
	Price       string // empty when the marketplace shows none
	URL         string
	ImageURL    string // optional
	Reviews     []RawReview
	ScrapedAt   time.Time
}

// RawReview is a single scraped review
type RawReview struct {
	Text   string
	Rating float64
}

// SearchResult is one hit on a marketplace search page
type SearchResult struct {
	Name     string
	URL      string
	Price    string
	ImageURL string
}

// MatchCandidate is a search result scored against the requested product name
type MatchCandidate struct {
	SearchResult
	Score float64
}

// ProductReport holds computed analytics for one product
type ProductReport struct {
	Product            *Product
	SourceCount        int
	TotalReviews       int
	AverageRating      float64
	ReviewsBySource    map[Marketplace]int
	PriceBySource      map[Marketplace]string
	SentimentBreakdown map[string]int
	PendingModeration  int
	TopRated           []Review
}
