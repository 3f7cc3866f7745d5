package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zakerman110/master-work-644/models"
	"github.com/Zakerman110/master-work-644/scraper"
	"github.com/Zakerman110/master-work-644/storage"
	"github.com/Zakerman110/master-work-644/storage/storagetest"
	"github.com/Zakerman110/master-work-644/utils"
)

func setupOrchestrator(t *testing.T, adapters []*fakeAdapter, opts ...OrchestratorOption) (*Orchestrator, *storage.GormRepository) {
	t.Helper()
	repo := storagetest.NewRepository(t)
	logger := utils.NewNopLogger()

	list := make([]scraper.Adapter, len(adapters))
	for i, a := range adapters {
		list[i] = a
	}
	consolidator := NewConsolidator(repo, repo, logger)
	return NewOrchestrator(repo, consolidator, list, logger, opts...), repo
}

func outcomeFor(t *testing.T, res *ScrapeResult, m models.Marketplace) TaskOutcome {
	t.Helper()
	for _, o := range res.Outcomes {
		if o.Marketplace == m {
			return o
		}
	}
	t.Fatalf("no outcome for %s", m)
	return TaskOutcome{}
}

func reviewTexts(p *models.Product, m models.Marketplace) []string {
	var out []string
	for _, s := range p.Sources {
		if s.Marketplace != m {
			continue
		}
		for _, r := range s.Reviews {
			out = append(out, r.Text)
		}
	}
	return out
}

func TestScrapeAllMergesEveryMarketplace(t *testing.T) {
	raw := &memoryRawStorage{}
	rozetka := &fakeAdapter{market: models.Rozetka, listing: listing(models.Rozetka, "30 999 ₴", "Great phone", "Battery is weak")}
	comfy := &fakeAdapter{market: models.Comfy, listing: listing(models.Comfy, "31 499 ₴", "Great phone", "  ")}
	o, repo := setupOrchestrator(t, []*fakeAdapter{rozetka, comfy}, WithRawStorage(raw))

	res, err := o.ScrapeAll(context.Background(), "Samsung Galaxy S21", "")
	require.NoError(t, err)

	assert.False(t, res.Cached)
	assert.Equal(t, 2, res.Merged())
	assert.True(t, res.Product.IsDetailed)
	require.Len(t, res.Product.Sources, 2)

	// the same review text on different marketplaces is kept on both
	assert.ElementsMatch(t, []string{"Great phone", "Battery is weak"}, reviewTexts(res.Product, models.Rozetka))
	assert.Equal(t, []string{"Great phone"}, reviewTexts(res.Product, models.Comfy))

	n, err := repo.CountSourceBindings(context.Background(), res.Product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// direct lookups get the full name
	assert.Equal(t, []string{"Samsung Galaxy S21"}, rozetka.searchedQueries())

	assert.Len(t, raw.listings, 2)
	for _, l := range raw.listings {
		for _, r := range l.Reviews {
			assert.NotEmpty(t, r.Text)
		}
	}
}

func TestScrapeAllDetailedProductSkipsAdapters(t *testing.T) {
	rozetka := &fakeAdapter{market: models.Rozetka, listing: listing(models.Rozetka, "100", "ok")}
	o, _ := setupOrchestrator(t, []*fakeAdapter{rozetka})
	ctx := context.Background()

	first, err := o.ScrapeAll(ctx, "Pixel 8", "")
	require.NoError(t, err)
	require.True(t, first.Product.IsDetailed)

	second, err := o.ScrapeAll(ctx, "  pixel 8 ", "")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Empty(t, second.Outcomes)
	assert.Equal(t, first.Product.ID, second.Product.ID)
	assert.Len(t, second.Product.Sources, 1)
	assert.Equal(t, int32(1), rozetka.opens.Load())
}

func TestScrapeAllPartialFailure(t *testing.T) {
	adapters := []*fakeAdapter{
		{market: models.Rozetka, listing: listing(models.Rozetka, "100", "a", "b")},
		{market: models.Comfy, err: errors.New("connection reset")},
		{market: models.Allo, listing: listing(models.Allo, "105", "c")},
		{market: models.Foxtrot},
		{market: models.Citrus, delay: time.Second},
	}
	o, _ := setupOrchestrator(t, adapters, WithTaskTimeout(100*time.Millisecond))

	start := time.Now()
	res, err := o.ScrapeAll(context.Background(), "Sony WH-1000XM5", "")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.True(t, res.Product.IsDetailed)
	assert.Len(t, res.Product.Sources, 2)
	assert.Equal(t, 2, res.Merged())

	assert.Equal(t, StatusMerged, outcomeFor(t, res, models.Rozetka).Status)
	assert.Equal(t, StatusAdapterError, outcomeFor(t, res, models.Comfy).Status)
	assert.Equal(t, StatusMerged, outcomeFor(t, res, models.Allo).Status)
	assert.Equal(t, StatusNoMatch, outcomeFor(t, res, models.Foxtrot).Status)

	timedOut := outcomeFor(t, res, models.Citrus)
	assert.Equal(t, StatusTimeout, timedOut.Status)
	assert.True(t, errors.Is(timedOut.Err, scraper.ErrAdapterTimeout))

	var adapterErr *scraper.AdapterError
	require.True(t, errors.As(outcomeFor(t, res, models.Comfy).Err, &adapterErr))
	assert.Equal(t, models.Comfy, adapterErr.Marketplace)
}

func TestScrapeAllTotalFailureIsRetried(t *testing.T) {
	rozetka := &fakeAdapter{market: models.Rozetka}
	comfy := &fakeAdapter{market: models.Comfy, err: errors.New("503")}
	o, _ := setupOrchestrator(t, []*fakeAdapter{rozetka, comfy})
	ctx := context.Background()

	res, err := o.ScrapeAll(ctx, "Nonexistent Gadget 3000", "")
	require.NoError(t, err)
	assert.False(t, res.Product.IsDetailed)
	assert.Empty(t, res.Product.Sources)
	assert.Equal(t, 0, res.Merged())

	again, err := o.ScrapeAll(ctx, "Nonexistent Gadget 3000", "")
	require.NoError(t, err)
	assert.False(t, again.Cached)
	assert.Equal(t, res.Product.ID, again.Product.ID)
	assert.Equal(t, int32(2), rozetka.opens.Load())
	assert.Equal(t, int32(2), comfy.opens.Load())
}

func TestScrapeAllSearchesPhrasesInOrder(t *testing.T) {
	name := "Apple iPhone 12 128GB Purple"
	citrus := &fakeAdapter{
		market:     models.Citrus,
		searchable: true,
		listing:    &models.RawListing{Name: name, Price: "25 999 ₴", Reviews: []models.RawReview{{Text: "Nice colour", Rating: 5}}},
		results: map[string][]models.SearchResult{
			"Apple iPhone 12 128GB": {
				{Name: "Apple iPhone 12 128GB Purple (MJNP3)", URL: "https://citrus.example/iphone-12-purple", Price: "25 999 ₴"},
				{Name: "Apple iPhone 12 128GB Black", URL: "https://citrus.example/iphone-12-black"},
			},
			"Apple iPhone 12": {
				{Name: "Apple iPhone 12 mini", URL: "https://citrus.example/iphone-12-mini"},
			},
		},
	}
	rozetka := &fakeAdapter{market: models.Rozetka, searchable: true}
	o, _ := setupOrchestrator(t, []*fakeAdapter{citrus, rozetka})

	res, err := o.ScrapeAll(context.Background(), name, "")
	require.NoError(t, err)
	require.True(t, res.Product.IsDetailed)

	assert.Equal(t, []string{
		"Apple iPhone 12 128GB Purple",
		"Apple iPhone 12 128GB",
		"Apple iPhone 12",
		"Apple iPhone",
	}, citrus.searchedQueries())

	got := outcomeFor(t, res, models.Citrus)
	assert.Equal(t, StatusMerged, got.Status)
	assert.Equal(t, "Apple iPhone 12 128GB", got.Query)
	assert.Greater(t, got.Score, 80.0)
	assert.Equal(t, []string{"https://citrus.example/iphone-12-purple"}, citrus.fetchedURLs())

	require.Len(t, res.Product.Sources, 1)
	assert.Equal(t, "https://citrus.example/iphone-12-purple", res.Product.Sources[0].URL)
	assert.Equal(t, "25 999 ₴", res.Product.Sources[0].Price)

	assert.Equal(t, StatusNoMatch, outcomeFor(t, res, models.Rozetka).Status)
	assert.Empty(t, rozetka.fetchedURLs())
}

func TestScrapeAllSingleTokenSearchesName(t *testing.T) {
	citrus := &fakeAdapter{
		market:     models.Citrus,
		searchable: true,
		listing:    &models.RawListing{Price: "1"},
		results: map[string][]models.SearchResult{
			"Kindle": {{Name: "Kindle", URL: "https://citrus.example/kindle"}},
		},
	}
	o, _ := setupOrchestrator(t, []*fakeAdapter{citrus})

	res, err := o.ScrapeAll(context.Background(), "Kindle", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Kindle"}, citrus.searchedQueries())
	assert.Equal(t, 100.0, outcomeFor(t, res, models.Citrus).Score)
	assert.True(t, res.Product.IsDetailed)
}

func TestScrapeAllRejectsBlankName(t *testing.T) {
	rozetka := &fakeAdapter{market: models.Rozetka}
	o, _ := setupOrchestrator(t, []*fakeAdapter{rozetka})

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := o.ScrapeAll(context.Background(), name, "")
		assert.True(t, errors.Is(err, ErrValidation), "name %q", name)
	}
	assert.Zero(t, rozetka.opens.Load())
}

func TestScrapeAllRecoversAdapterPanic(t *testing.T) {
	broken := &fakeAdapter{market: models.Allo, panics: true}
	good := &fakeAdapter{market: models.Foxtrot, listing: listing(models.Foxtrot, "9")}
	o, _ := setupOrchestrator(t, []*fakeAdapter{broken, good})

	res, err := o.ScrapeAll(context.Background(), "Xiaomi Redmi Note 12", "")
	require.NoError(t, err)
	assert.Equal(t, StatusAdapterError, outcomeFor(t, res, models.Allo).Status)
	assert.Equal(t, StatusMerged, outcomeFor(t, res, models.Foxtrot).Status)
	assert.True(t, res.Product.IsDetailed)
}

func TestScrapeAllCoalescesConcurrentCalls(t *testing.T) {
	gate := make(chan struct{})
	rozetka := &fakeAdapter{
		market:  models.Rozetka,
		listing: listing(models.Rozetka, "1", "first"),
		gate:    gate,
		opened:  make(chan struct{}, 1),
	}
	o, _ := setupOrchestrator(t, []*fakeAdapter{rozetka})
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*ScrapeResult, 3)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.ScrapeAll(ctx, "Lenovo Legion 5", "")
			assert.NoError(t, err)
			results[i] = res
		}()
	}

	<-rozetka.opened
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), rozetka.opens.Load())
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, results[0].Product.ID, res.Product.ID)
		assert.True(t, res.Product.IsDetailed)
		assert.Len(t, reviewTexts(res.Product, models.Rozetka), 1)
	}
}

func TestScrapeAllSharesScrapeAcrossCategories(t *testing.T) {
	gate := make(chan struct{})
	rozetka := &fakeAdapter{
		market:  models.Rozetka,
		listing: listing(models.Rozetka, "1", "Great phone", "Bad battery"),
		gate:    gate,
		opened:  make(chan struct{}, 1),
	}
	o, repo := setupOrchestrator(t, []*fakeAdapter{rozetka})
	ctx := context.Background()

	stored, _, err := repo.GetOrCreate(ctx, "Pixel 8", "phones")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*ScrapeResult, 2)
	for i, category := range []string{"", "phones"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.ScrapeAll(ctx, "Pixel 8", category)
			assert.NoError(t, err)
			results[i] = res
		}()
	}

	<-rozetka.opened
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), rozetka.opens.Load())
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, stored.ID, res.Product.ID)
	}

	full, err := repo.GetByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Great phone", "Bad battery"}, reviewTexts(full, models.Rozetka))
}

// stuckReviews never finishes an insert until its context ends
type stuckReviews struct {
	storage.ReviewRepository
}

func (r stuckReviews) InsertReviews(ctx context.Context, _ int64, _ []models.Review) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestScrapeAllBoundsStuckMerge(t *testing.T) {
	repo := storagetest.NewRepository(t)
	logger := utils.NewNopLogger()
	rozetka := &fakeAdapter{market: models.Rozetka, listing: listing(models.Rozetka, "1", "Great phone")}
	consolidator := NewConsolidator(repo, stuckReviews{repo}, logger)
	o := NewOrchestrator(repo, consolidator, []scraper.Adapter{rozetka}, logger, WithMergeTimeout(50*time.Millisecond))

	start := time.Now()
	res, err := o.ScrapeAll(context.Background(), "Pixel 8", "")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	got := outcomeFor(t, res, models.Rozetka)
	assert.Equal(t, StatusTimeout, got.Status)
	assert.True(t, errors.Is(got.Err, context.DeadlineExceeded))
}

func TestScrapeAllCallerCancellationDoesNotAbortScrape(t *testing.T) {
	gate := make(chan struct{})
	rozetka := &fakeAdapter{
		market:  models.Rozetka,
		listing: listing(models.Rozetka, "1"),
		gate:    gate,
		opened:  make(chan struct{}, 1),
	}
	o, repo := setupOrchestrator(t, []*fakeAdapter{rozetka})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.ScrapeAll(ctx, "Dell XPS 13", "")
		done <- err
	}()

	<-rozetka.opened
	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))

	close(gate)
	assert.Eventually(t, func() bool {
		p, err := repo.FindByName(context.Background(), "Dell XPS 13", "")
		return err == nil && p.IsDetailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want TaskStatus
	}{
		{nil, StatusMerged},
		{ErrNoMatchFound, StatusNoMatch},
		{scraper.ErrNotFound, StatusNoMatch},
		{scraper.NewAdapterError(models.Comfy, "lookup", context.DeadlineExceeded), StatusTimeout},
		{scraper.NewAdapterError(models.Comfy, "lookup", errors.New("boom")), StatusAdapterError},
		{&storage.RepositoryError{Op: "insert_reviews", Err: errors.New("disk full")}, StatusRepositoryError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classify(tc.err), "%v", tc.err)
	}
}
