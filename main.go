package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/Zakerman110/master-work-644/config"
	"github.com/Zakerman110/master-work-644/scraper"
	"github.com/Zakerman110/master-work-644/scraper/chrome"
	"github.com/Zakerman110/master-work-644/sentiment"
	"github.com/Zakerman110/master-work-644/services"
	"github.com/Zakerman110/master-work-644/storage"
	"github.com/Zakerman110/master-work-644/utils"
)

// application is everything a command needs, built once per run
type application struct {
	cfg          *config.Config
	logger       *utils.Logger
	db           *gorm.DB
	repo         *storage.GormRepository
	raw          storage.RawStorage
	orchestrator *services.Orchestrator
	catalog      *services.Catalog
	reviews      *services.ReviewService
	insights     *services.InsightService
}

func main() {
	// ================== Bootstrap ====================
	cfg := config.Load()
	logger, err := utils.NewLogger(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// withApp opens storage and builds services only for commands that run
	withApp := func(fn func(a *application, c *cli.Context) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			a, err := newApplication(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()
			return fn(a, c)
		}
	}

	app := &cli.App{
		Name:  "aggregator",
		Usage: "consolidate product listings and reviews across Ukrainian marketplaces",
		Commands: []*cli.Command{
			{
				Name:      "product",
				Usage:     "show a detailed product, scraping every marketplace if needed",
				ArgsUsage: "<name>",
				Action: withApp(func(a *application, c *cli.Context) error {
					return a.product(c.Context, joinArgs(c))
				}),
			},
			{
				Name:      "scrape",
				Usage:     "scrape a product and print what each marketplace returned",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "category", Usage: "product category"},
				},
				Action: withApp(func(a *application, c *cli.Context) error {
					return a.scrape(c.Context, joinArgs(c), c.String("category"))
				}),
			},
			{
				Name:      "suggest",
				Usage:     "suggest product names matching a query",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "category", Usage: "restrict to a category"},
				},
				Action: withApp(func(a *application, c *cli.Context) error {
					return a.suggest(c.Context, joinArgs(c), c.String("category"))
				}),
			},
			{
				Name:      "report",
				Usage:     "print review analytics for a stored product",
				ArgsUsage: "<name>",
				Action: withApp(func(a *application, c *cli.Context) error {
					return a.report(c.Context, joinArgs(c))
				}),
			},
			{
				Name:  "review",
				Usage: "submit and moderate user reviews",
				Subcommands: []*cli.Command{
					{
						Name:  "add",
						Usage: "submit a review for a product",
						Flags: []cli.Flag{
							&cli.Int64Flag{Name: "product-id", Required: true},
							&cli.StringFlag{Name: "text", Required: true},
							&cli.Float64Flag{Name: "rating", Value: 5},
						},
						Action: withApp(func(a *application, c *cli.Context) error {
							return a.addReview(c.Context, c.Int64("product-id"), c.String("text"), c.Float64("rating"))
						}),
					},
					{
						Name:  "pending",
						Usage: "list reviews waiting for moderation",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Value: 20},
						},
						Action: withApp(func(a *application, c *cli.Context) error {
							return a.pendingReviews(c.Context, c.Int("limit"))
						}),
					},
					{
						Name:  "label",
						Usage: "set the sentiment of a review",
						Flags: []cli.Flag{
							&cli.Int64Flag{Name: "id", Required: true},
							&cli.StringFlag{Name: "sentiment", Required: true},
						},
						Action: withApp(func(a *application, c *cli.Context) error {
							return a.reviews.Correct(c.Context, c.Int64("id"), c.String("sentiment"))
						}),
					},
				},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error("command failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func newApplication(cfg *config.Config, logger *utils.Logger) (*application, error) {
	logger.Info("starting aggregator",
		"db_driver", cfg.DBDriver,
		"marketplaces", cfg.Marketplaces,
		"adapter_timeout", cfg.AdapterTimeout,
		"rate_delay_ms", cfg.RateLimitDelay,
		"retries", cfg.MaxRetries,
	)

	// =================== Database Setup ========================================
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "sqlite":
		db, err = storage.OpenSQLite(cfg.SQLitePath, logger)
	case "postgres":
		db, err = storage.OpenPostgres(cfg.DatabaseURL, logger)
	default:
		err = fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		storage.Close(db)
		return nil, err
	}
	repo := storage.NewGormRepository(db)

	// =============== Scrapers ===================================
	adapters, err := chrome.NewAdapters(cfg.Marketplaces, cfg, logger)
	if err != nil {
		storage.Close(db)
		return nil, err
	}
	registry := scraper.NewRegistry(adapters...)

	var suggestions scraper.Adapter
	if site, ok := chrome.SiteFor(cfg.SuggestionSource); ok {
		if a, ok := registry.Get(site.Marketplace); ok {
			suggestions = a
		} else {
			suggestions = chrome.NewAdapter(site, cfg, logger)
		}
	} else if cfg.SuggestionSource != "" {
		logger.Warn("unknown suggestion source, only stored products will be suggested", "source", cfg.SuggestionSource)
	}

	// ========= Services ===========================
	opts := []services.OrchestratorOption{services.WithTaskTimeout(cfg.AdapterTimeout)}
	var raw storage.RawStorage
	if cfg.CSVFilePath != "" {
		raw = storage.NewCSVWriter(cfg.CSVFilePath, logger)
		opts = append(opts, services.WithRawStorage(raw))
	}

	consolidator := services.NewConsolidator(repo, repo, logger)
	orchestrator := services.NewOrchestrator(repo, consolidator, registry.All(), logger, opts...)
	classifier := sentiment.NewHTTPClassifier(cfg.SentimentURL, 30*time.Second)

	return &application{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		repo:         repo,
		raw:          raw,
		orchestrator: orchestrator,
		catalog:      services.NewCatalog(repo, orchestrator, suggestions, cfg.AdapterTimeout, logger),
		reviews:      services.NewReviewService(repo, repo, classifier, cfg.SentimentReviewThreshold, logger),
		insights:     services.NewInsightService(logger),
	}, nil
}

func (a *application) close() {
	if a.raw != nil {
		if err := a.raw.Close(); err != nil {
			a.logger.Warn("failed to close raw storage", "error", err)
		}
	}
	storage.Close(a.db)
}

func (a *application) product(ctx context.Context, name string) error {
	p, err := a.catalog.GetOrScrapeDetailedProduct(ctx, name)
	if errors.Is(err, services.ErrProductNotFound) {
		fmt.Printf(" No marketplace has %q right now, try again later\n", name)
		return nil
	}
	if err != nil {
		return err
	}
	services.PrintProductReport(os.Stdout, a.insights.Generate(p))
	return nil
}

func (a *application) scrape(ctx context.Context, name, category string) error {
	res, err := a.orchestrator.ScrapeAll(ctx, name, category)
	if err != nil {
		return err
	}
	services.PrintScrapeOutcomes(os.Stdout, res)
	fmt.Printf(" %s: %d marketplaces, detailed=%t\n", res.Product.Name, len(res.Product.Sources), res.Product.IsDetailed)
	if a.cfg.CSVFilePath != "" {
		fmt.Println(" Raw listings →", a.cfg.CSVFilePath)
	}
	return nil
}

func (a *application) suggest(ctx context.Context, query, category string) error {
	products, err := a.catalog.GetSuggestions(ctx, query, category)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Println(" No suggestions")
		return nil
	}
	for _, p := range products {
		mark := " "
		if p.IsDetailed {
			mark = "*"
		}
		fmt.Printf(" %s %5d  %s\n", mark, p.ID, p.Name)
	}
	return nil
}

func (a *application) report(ctx context.Context, name string) error {
	found, err := a.repo.FindByName(ctx, name, "")
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %q is not stored, run `product` first", services.ErrProductNotFound, name)
	}
	if err != nil {
		return err
	}
	p, err := a.repo.GetByID(ctx, found.ID)
	if err != nil {
		return err
	}
	services.PrintProductReport(os.Stdout, a.insights.Generate(p))
	return nil
}

func (a *application) addReview(ctx context.Context, productID int64, text string, rating float64) error {
	r, err := a.reviews.Submit(ctx, productID, text, rating)
	if err != nil {
		return err
	}
	fmt.Printf(" Review %d stored: %s (%.2f)", r.ID, r.ModelSentiment, r.Confidence)
	if r.NeedsReview {
		fmt.Print(", queued for moderation")
	}
	fmt.Println()
	return nil
}

func (a *application) pendingReviews(ctx context.Context, limit int) error {
	reviews, err := a.reviews.Pending(ctx, limit)
	if err != nil {
		return err
	}
	for _, r := range reviews {
		fmt.Printf(" %5d  %-10s %.2f  %s\n", r.ID, r.ModelSentiment, r.Confidence, truncateLine(r.Text, 60))
	}
	fmt.Printf(" %d awaiting moderation\n", len(reviews))
	return nil
}

func joinArgs(c *cli.Context) string {
	return strings.Join(c.Args().Slice(), " ")
}

func truncateLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-3]) + "..."
	}
	return s
}
