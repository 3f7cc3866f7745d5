// Package scraper defines the contract between the consolidation engine and
// the per-marketplace scrapers.
package scraper

import (
	"context"

	"github.com/Zakerman110/master-work-644/models"
)

// Adapter is one marketplace. Open hands out an exclusive Session for a
// single scrape task; the caller must Close it when the task ends.
type Adapter interface {
	Marketplace() models.Marketplace
	Open(ctx context.Context) (Session, error)
}

// Session is the per-task resource of an adapter (a browser, a connection).
// It is never shared between tasks.
type Session interface {
	// Lookup searches for query and returns details of the first hit.
	// Returns ErrNotFound when the search has no results.
	Lookup(ctx context.Context, query string) (*models.RawListing, error)

	// FetchDetails loads a product page and its reviews.
	FetchDetails(ctx context.Context, url string) (*models.RawListing, error)

	Close() error
}

// Searcher is implemented by sessions that can list search results, which
// lets the caller rank hits across several query phrases.
// An empty result with a nil error means the search returned no hits.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// Registry holds the configured adapters by marketplace
type Registry struct {
	adapters map[models.Marketplace]Adapter
	order    []models.Marketplace
}

// NewRegistry builds a registry; a later adapter for the same marketplace replaces an earlier one
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Marketplace]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) {
	m := a.Marketplace()
	if _, ok := r.adapters[m]; !ok {
		r.order = append(r.order, m)
	}
	r.adapters[m] = a
}

func (r *Registry) Get(m models.Marketplace) (Adapter, bool) {
	a, ok := r.adapters[m]
	return a, ok
}

// All returns adapters in registration order
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, m := range r.order {
		out = append(out, r.adapters[m])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }
