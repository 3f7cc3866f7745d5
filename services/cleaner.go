package services

import (
	"math"
	"strings"
	"time"

	"github.com/Zakerman110/master-work-644/models"
	"github.com/Zakerman110/master-work-644/utils"
)

// placeholders some marketplaces render instead of a price
var pricePlaceholders = map[string]bool{
	"n/a":                 true,
	"price not available": true,
	"немає в наявності":   true,
	"нет в наличии":       true,
}

// DataCleaner normalizes raw listings before they are merged
type DataCleaner struct {
	logger *utils.Logger
}

// NewDataCleaner creates a new DataCleaner
func NewDataCleaner(logger *utils.Logger) *DataCleaner {
	return &DataCleaner{logger: logger}
}

// Clean returns a trimmed copy of raw. Reviews with blank text are dropped and
// ratings are clamped into [0,5]. Duplicate review texts are left for the
// consolidator to resolve.
func (c *DataCleaner) Clean(raw *models.RawListing) *models.RawListing {
	out := &models.RawListing{
		Marketplace: raw.Marketplace,
		Name:        strings.TrimSpace(raw.Name),
		Price:       cleanPrice(raw.Price),
		URL:         strings.TrimSpace(raw.URL),
		ImageURL:    strings.TrimSpace(raw.ImageURL),
		ScrapedAt:   raw.ScrapedAt,
	}
	if out.ScrapedAt.IsZero() {
		out.ScrapedAt = time.Now()
	}

	dropped := 0
	for _, r := range raw.Reviews {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			dropped++
			continue
		}
		out.Reviews = append(out.Reviews, models.RawReview{Text: text, Rating: clampRating(r.Rating)})
	}
	if dropped > 0 {
		c.logger.Debug("dropped blank reviews", "marketplace", raw.Marketplace, "count", dropped)
	}
	return out
}

func cleanPrice(raw string) string {
	p := strings.Join(strings.Fields(raw), " ")
	if pricePlaceholders[strings.ToLower(p)] {
		return ""
	}
	return p
}

func clampRating(r float64) float64 {
	switch {
	case math.IsNaN(r), r < 0:
		return 0
	case r > 5:
		return 5
	}
	return r
}
