package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zakerman110/master-work-644/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// RepositoryError is a persistence failure
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// RawStorage receives raw listings as they are scraped, before consolidation
type RawStorage interface {
	SaveRaw(listings []*models.RawListing) error
	Close() error
}

// ProductRepository persists canonical products and their marketplace sources
type ProductRepository interface {
	// FindByName matches the name case-insensitively. An empty category matches
	// any category, preferring detailed products.
	FindByName(ctx context.Context, name, category string) (*models.Product, error)
	GetOrCreate(ctx context.Context, name, category string) (*models.Product, bool, error)
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	// SearchByName returns products whose name contains query, case-insensitively
	SearchByName(ctx context.Context, query, category string, limit int) ([]models.Product, error)
	UpdateImageURL(ctx context.Context, productID int64, imageURL string) error
	SetDetailed(ctx context.Context, productID int64, detailed bool) error

	UpsertSourceBinding(ctx context.Context, productID int64, marketplace models.Marketplace, url, price string) (*models.SourceBinding, error)
	ListSourceBindings(ctx context.Context, productID int64) ([]models.SourceBinding, error)
	// CountSourceBindings counts marketplace sources, leaving out user-submitted ones
	CountSourceBindings(ctx context.Context, productID int64) (int64, error)
}

// ReviewRepository persists reviews of source bindings
type ReviewRepository interface {
	ListReviewTexts(ctx context.Context, sourceID int64) (map[string]struct{}, error)
	InsertReviews(ctx context.Context, sourceID int64, reviews []models.Review) error
	GetReview(ctx context.Context, id int64) (*models.Review, error)
	SetHumanSentiment(ctx context.Context, id int64, sentiment string) error
	ListNeedingModeration(ctx context.Context, limit int) ([]models.Review, error)
}
