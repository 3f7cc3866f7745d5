package chrome

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/Zakerman110/master-work-644/config"
	"github.com/Zakerman110/master-work-644/models"
	"github.com/Zakerman110/master-work-644/scraper"
	"github.com/Zakerman110/master-work-644/utils"
)

// session owns one browser for the lifetime of a scrape task
type session struct {
	site       Site
	cfg        *config.Config
	logger     *utils.Logger
	limiter    *utils.RateLimiter
	pages      map[string]*models.RawListing // product pages loaded so far, by canonical URL
	browserCtx context.Context
	cancel     context.CancelFunc
}

// searchSession exposes the search hits of searchable sites
type searchSession struct {
	*session
}

func (s *searchSession) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	return s.search(ctx, query)
}

func (s *session) Close() error {
	s.cancel()
	return nil
}

// run executes actions in the browser, stopping when ctx ends
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.browserCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// navigate loads a page after waiting for the marketplace rate limit, retrying failed loads
func (s *session) navigate(ctx context.Context, pageURL string) error {
	return utils.RetryWithBackoff(ctx, s.cfg.MaxRetries, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		s.logger.Debug("loading page", "url", pageURL)
		if err := s.run(ctx, chromedp.Navigate(pageURL), chromedp.Sleep(s.cfg.PageSettle)); err != nil {
			return fmt.Errorf("navigate failed: %w", err)
		}
		return nil
	}, s.logger)
}

func (s *session) evaluate(ctx context.Context, tmpl string, selectors, out interface{}) error {
	js, err := script(tmpl, selectors)
	if err != nil {
		return err
	}
	if err := s.run(ctx, chromedp.Evaluate(js, out)); err != nil {
		return fmt.Errorf("JS extraction failed: %w", err)
	}
	return nil
}

// search returns the result tiles for query in page order, one per product page
func (s *session) search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if err := s.navigate(ctx, s.site.searchURL(query)); err != nil {
		return nil, err
	}

	var tiles []rawTile
	if err := s.evaluate(ctx, tilesJS, s.site.tileSelectors(), &tiles); err != nil {
		return nil, err
	}

	seen := utils.NewURLTracker()
	var results []models.SearchResult
	for _, t := range tiles {
		if t.Name == "" || t.URL == "" || !seen.Add(t.URL) {
			continue
		}
		results = append(results, models.SearchResult{
			Name:     t.Name,
			URL:      t.URL,
			Price:    t.Price,
			ImageURL: t.Image,
		})
	}
	s.logger.Debug("search results", "query", query, "tiles", len(tiles), "results", len(results))
	return results, nil
}

// Lookup takes the first search hit for query and loads its page
func (s *session) Lookup(ctx context.Context, query string) (*models.RawListing, error) {
	results, err := s.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, scraper.ErrNotFound
	}

	hit := results[0]
	listing, err := s.FetchDetails(ctx, hit.URL)
	if err != nil {
		return nil, err
	}
	if listing.Name == "" {
		listing.Name = hit.Name
	}
	if listing.Price == "" {
		listing.Price = hit.Price
	}
	if listing.ImageURL == "" {
		listing.ImageURL = hit.ImageURL
	}
	return listing, nil
}

// FetchDetails loads the product page and then its reviews. A page whose
// reviews cannot be read still yields the listing.
func (s *session) FetchDetails(ctx context.Context, productURL string) (*models.RawListing, error) {
	if productURL == "" {
		return nil, fmt.Errorf("empty product url: %w", utils.ErrPermanent)
	}
	if cached, ok := s.cached(productURL); ok {
		s.logger.Debug("product page already loaded in this session", "url", productURL)
		return cached, nil
	}

	if err := s.navigate(ctx, productURL); err != nil {
		return nil, err
	}
	var detail rawDetail
	if err := s.evaluate(ctx, detailJS, s.site.detailSelectors(), &detail); err != nil {
		return nil, err
	}

	listing := &models.RawListing{
		Marketplace: s.site.Marketplace,
		Name:        detail.Name,
		Price:       detail.Price,
		URL:         productURL,
		ImageURL:    detail.Image,
		ScrapedAt:   time.Now(),
	}

	reviews, err := s.reviews(ctx, productURL)
	switch {
	case err == nil:
		listing.Reviews = reviews
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return nil, err
	default:
		s.logger.Warn("failed to read reviews", "url", productURL, "error", err)
	}
	s.remember(listing)
	return listing, nil
}

// cached returns a copy of a listing already loaded from an equivalent URL
func (s *session) cached(productURL string) (*models.RawListing, bool) {
	l, ok := s.pages[utils.CanonicalURL(productURL)]
	if !ok {
		return nil, false
	}
	c := *l
	c.Reviews = append([]models.RawReview(nil), l.Reviews...)
	return &c, true
}

func (s *session) remember(listing *models.RawListing) {
	if s.pages == nil {
		s.pages = make(map[string]*models.RawListing)
	}
	c := *listing
	c.Reviews = append([]models.RawReview(nil), listing.Reviews...)
	s.pages[utils.CanonicalURL(listing.URL)] = &c
}

func (s *session) reviews(ctx context.Context, productURL string) ([]models.RawReview, error) {
	if s.site.ReviewItem == "" {
		return nil, nil
	}
	if reviewsURL := s.site.reviewsURL(productURL); reviewsURL != productURL {
		if err := s.navigate(ctx, reviewsURL); err != nil {
			return nil, err
		}
	}

	var raw []rawReview
	if err := s.evaluate(ctx, reviewsJS, s.site.reviewSelectors(), &raw); err != nil {
		return nil, err
	}

	out := make([]models.RawReview, 0, len(raw))
	for _, r := range raw {
		out = append(out, models.RawReview{Text: r.Text, Rating: parseRating(r.Rating, s.site.Rating)})
	}
	return out, nil
}
