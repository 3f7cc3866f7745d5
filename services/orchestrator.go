package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Zakerman110/master-work-644/models"
	"github.com/Zakerman110/master-work-644/scraper"
	"github.com/Zakerman110/master-work-644/search"
	"github.com/Zakerman110/master-work-644/storage"
	"github.com/Zakerman110/master-work-644/utils"
)

// TaskOutcome describes what happened on one marketplace during a scrape
type TaskOutcome struct {
	Marketplace  models.Marketplace
	Status       TaskStatus
	Err          error
	Query        string  // phrase that produced the match, for searchable marketplaces
	Score        float64 // match score of the chosen search hit
	ReviewsAdded int
	Elapsed      time.Duration
}

// ScrapeResult is the product after a scrape plus the per-marketplace outcomes.
// Cached is true when the product was already detailed and no adapter was contacted.
type ScrapeResult struct {
	Product  *models.Product
	Outcomes []TaskOutcome
	Cached   bool
}

// Merged returns how many marketplaces were consolidated in this run
func (r *ScrapeResult) Merged() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusMerged {
			n++
		}
	}
	return n
}

// Orchestrator fans a product scrape out to every marketplace adapter and
// merges results into the canonical product as they arrive
type Orchestrator struct {
	products     storage.ProductRepository
	consolidator *Consolidator
	cleaner      *DataCleaner
	raw          storage.RawStorage
	adapters     []scraper.Adapter
	taskTimeout  time.Duration
	mergeTimeout time.Duration
	logger       *utils.Logger

	flights singleflight.Group
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithRawStorage records every scraped listing before it is merged
func WithRawStorage(raw storage.RawStorage) OrchestratorOption {
	return func(o *Orchestrator) { o.raw = raw }
}

// WithTaskTimeout bounds each marketplace task
func WithTaskTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.taskTimeout = d
		}
	}
}

// WithMergeTimeout bounds the consolidation of one marketplace listing
func WithMergeTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.mergeTimeout = d
		}
	}
}

// NewOrchestrator creates an orchestrator over the given adapters
func NewOrchestrator(products storage.ProductRepository, consolidator *Consolidator, adapters []scraper.Adapter, logger *utils.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		products:     products,
		consolidator: consolidator,
		cleaner:      NewDataCleaner(logger),
		adapters:     adapters,
		taskTimeout:  90 * time.Second,
		mergeTimeout: 30 * time.Second,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ScrapeAll returns the canonical product for name, scraping every marketplace
// first unless the product is already detailed. Marketplace failures only show
// up in the outcomes; a product nobody could find comes back not detailed.
// Only repository failures and blank names are returned as errors.
//
// Concurrent calls that resolve to the same product share one scrape. Once
// started, the scrape runs to completion even if ctx is cancelled.
func (o *Orchestrator) ScrapeAll(ctx context.Context, name, category string) (*ScrapeResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: product name is blank", ErrValidation)
	}

	product, err := o.resolve(ctx, name, category)
	if err != nil {
		return nil, err
	}

	// one scrape per product, whatever category the caller passed
	key := strconv.FormatInt(product.ID, 10)
	work := context.WithoutCancel(ctx)
	ch := o.flights.DoChan(key, func() (interface{}, error) {
		return o.scrape(work, product.ID, name)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ScrapeResult), nil
	}
}

// resolve finds the product name refers to, creating a placeholder when there is none
func (o *Orchestrator) resolve(ctx context.Context, name, category string) (*models.Product, error) {
	product, err := o.products.FindByName(ctx, name, category)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	product, _, err = o.products.GetOrCreate(ctx, name, category)
	return product, err
}

func (o *Orchestrator) scrape(ctx context.Context, productID int64, name string) (*ScrapeResult, error) {
	// re-read inside the flight; a scrape that just finished may have detailed it
	product, err := o.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.IsDetailed {
		o.logger.Debug("product already detailed", "product_id", product.ID, "name", name)
		return &ScrapeResult{Product: product, Cached: true}, nil
	}

	queries := search.PartialNames(name)
	if len(queries) == 0 {
		queries = []string{name}
	}

	log := o.logger.With("product_id", product.ID, "name", name)
	log.Info("scraping marketplaces", "adapters", len(o.adapters), "queries", len(queries))

	outcomes := make([]TaskOutcome, len(o.adapters))
	var g errgroup.Group
	g.SetLimit(max(len(o.adapters), 1))
	for i, a := range o.adapters {
		g.Go(func() error {
			outcomes[i] = o.runTask(ctx, product.ID, a, name, queries)
			return nil
		})
	}
	_ = g.Wait()

	// only the orchestrator writes the detailed flag, after every task has joined
	n, err := o.products.CountSourceBindings(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		if err := o.products.SetDetailed(ctx, product.ID, true); err != nil {
			return nil, err
		}
	}

	full, err := o.products.GetByID(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	result := &ScrapeResult{Product: full, Outcomes: outcomes}
	log.Info("scrape finished", "merged", result.Merged(), "sources", n, "detailed", full.IsDetailed)
	return result, nil
}

type fetchResult struct {
	listing *models.RawListing
	match   models.MatchCandidate
	phrase  string
	err     error
}

// runTask scrapes one marketplace and merges the listing. It never fails the batch.
func (o *Orchestrator) runTask(ctx context.Context, productID int64, a scraper.Adapter, name string, queries []string) TaskOutcome {
	m := a.Marketplace()
	log := o.logger.With("product_id", productID, "marketplace", m)
	start := time.Now()
	outcome := TaskOutcome{Marketplace: m}

	taskCtx, cancel := context.WithTimeout(ctx, o.taskTimeout)
	defer cancel()

	ch := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- fetchResult{err: scraper.NewAdapterError(m, "fetch", fmt.Errorf("panic: %v", p))}
			}
		}()
		ch <- o.fetch(taskCtx, a, name, queries)
	}()

	var res fetchResult
	select {
	case res = <-ch:
	case <-taskCtx.Done():
		// a late result is dropped so nothing is merged after the task is given up
		res = fetchResult{err: scraper.NewAdapterError(m, "fetch", fmt.Errorf("%w after %s", scraper.ErrAdapterTimeout, o.taskTimeout))}
	}
	if res.err != nil && taskCtx.Err() == context.DeadlineExceeded && classify(res.err) == StatusAdapterError {
		res.err = fmt.Errorf("%w: %w", scraper.ErrAdapterTimeout, res.err)
	}

	outcome.Query, outcome.Score = res.phrase, res.match.Score
	if res.err != nil {
		outcome.Status, outcome.Err, outcome.Elapsed = classify(res.err), res.err, time.Since(start)
		if outcome.Status == StatusNoMatch {
			log.Info("no listing found", "elapsed", outcome.Elapsed)
		} else {
			log.Warn("marketplace task failed", "status", outcome.Status, "error", res.err, "elapsed", outcome.Elapsed)
		}
		return outcome
	}

	listing := o.cleaner.Clean(res.listing)
	listing.Marketplace = m
	if o.raw != nil {
		if err := o.raw.SaveRaw([]*models.RawListing{listing}); err != nil {
			log.Warn("failed to record raw listing", "error", err)
		}
	}

	mergeCtx, cancelMerge := context.WithTimeout(ctx, o.mergeTimeout)
	defer cancelMerge()
	merged, err := o.consolidator.Merge(mergeCtx, productID, m, listing)
	outcome.Elapsed = time.Since(start)
	if err != nil {
		outcome.Status, outcome.Err = classify(err), err
		log.Error("merge failed", "error", err)
		return outcome
	}

	outcome.Status = StatusMerged
	outcome.ReviewsAdded = merged.ReviewsAdded
	return outcome
}

// fetch runs inside one exclusive adapter session. Searchable marketplaces
// try each phrase in order and keep the best-scoring hit; the rest get one
// direct lookup of the full name.
func (o *Orchestrator) fetch(ctx context.Context, a scraper.Adapter, name string, queries []string) fetchResult {
	m := a.Marketplace()
	sess, err := a.Open(ctx)
	if err != nil {
		return fetchResult{err: scraper.NewAdapterError(m, "open", err)}
	}
	defer func() {
		if err := sess.Close(); err != nil {
			o.logger.Debug("failed to close session", "marketplace", m, "error", err)
		}
	}()

	searcher, ok := sess.(scraper.Searcher)
	if !ok {
		listing, err := sess.Lookup(ctx, name)
		if err != nil {
			return fetchResult{err: scraper.NewAdapterError(m, "lookup", err)}
		}
		if listing == nil {
			return fetchResult{err: ErrNoMatchFound}
		}
		return fetchResult{listing: listing}
	}

	var (
		tracker search.Tracker
		lastErr error
	)
	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		results, err := searcher.Search(ctx, q)
		if err != nil && !errors.Is(err, scraper.ErrNotFound) {
			lastErr = err
			o.logger.Debug("search failed", "marketplace", m, "query", q, "error", err)
			continue
		}
		if len(results) == 0 {
			o.logger.Debug("no search results", "marketplace", m, "query", q)
			continue
		}
		if match, ok := search.BestMatch(name, results); ok && tracker.Offer(q, match) {
			o.logger.Debug("best match improved", "marketplace", m, "query", q, "candidate", match.Name, "score", match.Score)
			if match.Score >= 100 {
				// nothing can beat an exact match
				break
			}
		}
	}

	best, phrase, found := tracker.Best()
	if !found {
		if err := ctx.Err(); err != nil {
			return fetchResult{err: scraper.NewAdapterError(m, "search", err)}
		}
		if lastErr != nil {
			return fetchResult{err: scraper.NewAdapterError(m, "search", lastErr)}
		}
		return fetchResult{err: ErrNoMatchFound}
	}

	listing, err := sess.FetchDetails(ctx, best.URL)
	if err != nil {
		return fetchResult{match: best, phrase: phrase, err: scraper.NewAdapterError(m, "details", err)}
	}
	if listing == nil {
		return fetchResult{match: best, phrase: phrase, err: ErrNoMatchFound}
	}
	if listing.URL == "" {
		listing.URL = best.URL
	}
	if listing.Price == "" {
		listing.Price = best.Price
	}
	if listing.ImageURL == "" {
		listing.ImageURL = best.ImageURL
	}
	return fetchResult{listing: listing, match: best, phrase: phrase}
}
