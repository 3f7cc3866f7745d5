package services

import (
	"sort"

	"github.com/Zakerman110/master-work-644/models"
	"github.com/Zakerman110/master-work-644/utils"
)

const topRatedCount = 5

// InsightService computes review analytics for a consolidated product
type InsightService struct {
	logger *utils.Logger
}

// NewInsightService creates a new InsightService
func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate builds a report from a product loaded with its sources and reviews
func (s *InsightService) Generate(product *models.Product) *models.ProductReport {
	report := &models.ProductReport{
		Product:            product,
		ReviewsBySource:    make(map[models.Marketplace]int),
		PriceBySource:      make(map[models.Marketplace]string),
		SentimentBreakdown: make(map[string]int),
	}

	var all []models.Review
	for _, src := range product.Sources {
		if src.Marketplace != models.Self {
			report.SourceCount++
			report.PriceBySource[src.Marketplace] = src.Price
		}
		report.ReviewsBySource[src.Marketplace] += len(src.Reviews)
		all = append(all, src.Reviews...)
	}

	if len(all) == 0 {
		s.logger.Debug("no reviews to report on", "product_id", product.ID)
		return report
	}

	var ratingSum float64
	for i := range all {
		r := &all[i]
		report.TotalReviews++
		ratingSum += r.Rating
		report.SentimentBreakdown[r.Sentiment()]++
		if r.NeedsReview {
			report.PendingModeration++
		}
	}
	report.AverageRating = ratingSum / float64(report.TotalReviews)

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Rating > all[j].Rating
	})
	report.TopRated = all[:min(topRatedCount, len(all))]

	return report
}
