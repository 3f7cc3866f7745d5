package services

import (
	"context"
	"fmt"

	"github.com/Zakerman110/master-work-644/models"
	"github.com/Zakerman110/master-work-644/sentiment"
	"github.com/Zakerman110/master-work-644/storage"
	"github.com/Zakerman110/master-work-644/utils"
)

// MergeResult reports what one merge changed
type MergeResult struct {
	Binding        *models.SourceBinding
	ReviewsAdded   int
	ReviewsSkipped int
}

// Consolidator merges one marketplace listing into a canonical product.
// Merges for different marketplaces of the same product may run concurrently;
// callers must not run two merges for the same (product, marketplace) at once.
type Consolidator struct {
	products storage.ProductRepository
	reviews  storage.ReviewRepository
	logger   *utils.Logger
}

// NewConsolidator creates a new Consolidator
func NewConsolidator(products storage.ProductRepository, reviews storage.ReviewRepository, logger *utils.Logger) *Consolidator {
	return &Consolidator{products: products, reviews: reviews, logger: logger}
}

// Merge upserts the (product, marketplace) source binding with the listing's
// url and price, then stores every review whose text is not already bound to
// that source. Text equality is the only identity a review has.
func (c *Consolidator) Merge(ctx context.Context, productID int64, marketplace models.Marketplace, listing *models.RawListing) (*MergeResult, error) {
	binding, err := c.products.UpsertSourceBinding(ctx, productID, marketplace, listing.URL, listing.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert %s source: %w", marketplace, err)
	}

	seen, err := c.reviews.ListReviewTexts(ctx, binding.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s reviews: %w", marketplace, err)
	}

	result := &MergeResult{Binding: binding}
	var fresh []models.Review
	for _, r := range listing.Reviews {
		if _, dup := seen[r.Text]; dup {
			result.ReviewsSkipped++
			continue
		}
		seen[r.Text] = struct{}{}
		fresh = append(fresh, models.Review{
			Text:           r.Text,
			Rating:         r.Rating,
			ModelSentiment: sentiment.Neutral,
		})
	}

	if err := c.reviews.InsertReviews(ctx, binding.ID, fresh); err != nil {
		return nil, fmt.Errorf("failed to insert %s reviews: %w", marketplace, err)
	}
	result.ReviewsAdded = len(fresh)

	c.logger.Info("listing merged",
		"product_id", productID,
		"marketplace", marketplace,
		"reviews_added", result.ReviewsAdded,
		"reviews_skipped", result.ReviewsSkipped,
	)
	return result, nil
}
