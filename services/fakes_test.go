package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Zakerman110/master-work-644/models"
	"github.com/Zakerman110/master-work-644/scraper"
)

// fakeAdapter serves canned listings. With searchable set its sessions also
// implement scraper.Searcher and answer from results by query.
type fakeAdapter struct {
	market     models.Marketplace
	searchable bool
	listing    *models.RawListing
	results    map[string][]models.SearchResult
	err        error
	delay      time.Duration
	gate       chan struct{} // when set, lookups block until it is closed
	panics     bool

	opens   atomic.Int32
	opened  chan struct{}
	mu      sync.Mutex
	queries []string
	fetched []string
}

func (a *fakeAdapter) Marketplace() models.Marketplace { return a.market }

func (a *fakeAdapter) Open(ctx context.Context) (scraper.Session, error) {
	a.opens.Add(1)
	if a.opened != nil {
		select {
		case a.opened <- struct{}{}:
		default:
		}
	}
	s := &fakeSession{a: a}
	if a.searchable {
		return &fakeSearchSession{fakeSession: s}, nil
	}
	return s, nil
}

func (a *fakeAdapter) searchedQueries() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.queries...)
}

func (a *fakeAdapter) fetchedURLs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.fetched...)
}

type fakeSession struct {
	a *fakeAdapter
}

func (s *fakeSession) wait(ctx context.Context) error {
	if s.a.panics {
		panic("selector exploded")
	}
	if s.a.gate != nil {
		select {
		case <-s.a.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.a.delay > 0 {
		select {
		case <-time.After(s.a.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *fakeSession) Lookup(ctx context.Context, query string) (*models.RawListing, error) {
	s.a.mu.Lock()
	s.a.queries = append(s.a.queries, query)
	s.a.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.a.err != nil {
		return nil, s.a.err
	}
	if s.a.listing == nil {
		return nil, scraper.ErrNotFound
	}
	return copyListing(s.a.listing), nil
}

func (s *fakeSession) FetchDetails(ctx context.Context, url string) (*models.RawListing, error) {
	s.a.mu.Lock()
	s.a.fetched = append(s.a.fetched, url)
	s.a.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.a.err != nil {
		return nil, s.a.err
	}
	if s.a.listing == nil {
		return nil, scraper.ErrNotFound
	}
	l := copyListing(s.a.listing)
	l.URL = url
	return l, nil
}

func (s *fakeSession) Close() error { return nil }

type fakeSearchSession struct {
	*fakeSession
}

func (s *fakeSearchSession) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	s.a.mu.Lock()
	s.a.queries = append(s.a.queries, query)
	s.a.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.a.err != nil {
		return nil, s.a.err
	}
	return s.a.results[query], nil
}

func copyListing(l *models.RawListing) *models.RawListing {
	c := *l
	c.Reviews = append([]models.RawReview(nil), l.Reviews...)
	return &c
}

func listing(m models.Marketplace, price string, reviews ...string) *models.RawListing {
	l := &models.RawListing{
		Marketplace: m,
		Name:        "listing on " + string(m),
		Price:       price,
		URL:         "https://" + string(m) + ".example/p/1",
	}
	for i, text := range reviews {
		l.Reviews = append(l.Reviews, models.RawReview{Text: text, Rating: float64(5 - i%5)})
	}
	return l
}

type memoryRawStorage struct {
	mu       sync.Mutex
	listings []*models.RawListing
}

func (s *memoryRawStorage) SaveRaw(listings []*models.RawListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings = append(s.listings, listings...)
	return nil
}

func (s *memoryRawStorage) Close() error { return nil }

type fakeClassifier struct {
	label      string
	confidence float64
	err        error
	calls      int
}

func (c *fakeClassifier) Classify(_ context.Context, _ string) (string, float64, error) {
	c.calls++
	if c.err != nil {
		return "", 0, c.err
	}
	return c.label, c.confidence, nil
}
