package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zakerman110/master-work-644/models"
	"github.com/Zakerman110/master-work-644/scraper"
	"github.com/Zakerman110/master-work-644/storage"
	"github.com/Zakerman110/master-work-644/utils"
)

const defaultSuggestionLimit = 10

// Catalog is what the outside world calls: detailed product lookups and name suggestions
type Catalog struct {
	products     storage.ProductRepository
	orchestrator *Orchestrator
	suggestions  scraper.Adapter
	limit        int
	timeout      time.Duration
	logger       *utils.Logger
}

// NewCatalog creates a Catalog. suggestions may be nil, in which case only
// stored products are suggested.
func NewCatalog(products storage.ProductRepository, orchestrator *Orchestrator, suggestions scraper.Adapter, timeout time.Duration, logger *utils.Logger) *Catalog {
	return &Catalog{
		products:     products,
		orchestrator: orchestrator,
		suggestions:  suggestions,
		limit:        defaultSuggestionLimit,
		timeout:      timeout,
		logger:       logger,
	}
}

// GetOrScrapeDetailedProduct returns the detailed product for name, scraping
// the marketplaces when it is not detailed yet. ErrProductNotFound means no
// marketplace had it; a later call will try again.
func (c *Catalog) GetOrScrapeDetailedProduct(ctx context.Context, name string) (*models.Product, error) {
	res, err := c.orchestrator.ScrapeAll(ctx, name, "")
	if err != nil {
		return nil, err
	}
	if !res.Product.IsDetailed {
		return nil, fmt.Errorf("%w: %q", ErrProductNotFound, strings.TrimSpace(name))
	}
	return res.Product, nil
}

// GetSuggestions returns stored products whose name contains name. When none
// are stored it searches the suggestion marketplace and stores each hit as a
// product that is not detailed yet.
func (c *Catalog) GetSuggestions(ctx context.Context, name, category string) ([]models.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: query is blank", ErrValidation)
	}

	stored, err := c.products.SearchByName(ctx, name, category, c.limit)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 || c.suggestions == nil {
		return stored, nil
	}

	results, err := c.searchSuggestions(ctx, name)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var products []models.Product
	for _, r := range results {
		if len(products) >= c.limit {
			break
		}
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		p, created, err := c.products.GetOrCreate(ctx, r.Name, category)
		if err != nil {
			return nil, err
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		if created && r.ImageURL != "" {
			if err := c.products.UpdateImageURL(ctx, p.ID, r.ImageURL); err != nil {
				return nil, err
			}
			p.ImageURL = r.ImageURL
		}
		products = append(products, *p)
	}

	c.logger.Info("suggestions scraped", "query", name, "source", c.suggestions.Marketplace(), "results", len(results), "products", len(products))
	return products, nil
}

func (c *Catalog) searchSuggestions(ctx context.Context, name string) ([]models.SearchResult, error) {
	m := c.suggestions.Marketplace()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	sess, err := c.suggestions.Open(ctx)
	if err != nil {
		return nil, scraper.NewAdapterError(m, "open", err)
	}
	defer sess.Close()

	searcher, ok := sess.(scraper.Searcher)
	if !ok {
		return nil, scraper.NewAdapterError(m, "search", errors.New("marketplace does not support search"))
	}

	results, err := searcher.Search(ctx, name)
	if errors.Is(err, scraper.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, scraper.NewAdapterError(m, "search", err)
	}
	return results, nil
}
