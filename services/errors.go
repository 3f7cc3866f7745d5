package services

import (
	"context"
	"errors"

	"github.com/Zakerman110/master-work-644/scraper"
	"github.com/Zakerman110/master-work-644/storage"
)

var (
	// ErrValidation rejects blank queries and malformed input before any work is done
	ErrValidation = errors.New("validation failed")

	// ErrNoMatchFound means a marketplace answered but no hit cleared the matching bar
	ErrNoMatchFound = errors.New("no matching listing")

	// ErrProductNotFound means no marketplace produced a listing for the product
	ErrProductNotFound = errors.New("product not found")

	// ErrDuplicateReview rejects a user review whose text is already stored for the product
	ErrDuplicateReview = errors.New("duplicate review")
)

// TaskStatus is the outcome of one marketplace task
type TaskStatus string

const (
	StatusMerged          TaskStatus = "merged"
	StatusNoMatch         TaskStatus = "no_match"
	StatusTimeout         TaskStatus = "timeout"
	StatusAdapterError    TaskStatus = "adapter_error"
	StatusRepositoryError TaskStatus = "repository_error"
)

func classify(err error) TaskStatus {
	var repoErr *storage.RepositoryError
	switch {
	case err == nil:
		return StatusMerged
	case errors.Is(err, ErrNoMatchFound), errors.Is(err, scraper.ErrNotFound):
		return StatusNoMatch
	case errors.Is(err, scraper.ErrAdapterTimeout), errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	case errors.As(err, &repoErr):
		return StatusRepositoryError
	default:
		return StatusAdapterError
	}
}
