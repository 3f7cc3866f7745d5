package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zakerman110/master-work-644/models"
)

var (
	// ErrNotFound means the marketplace has no listing for the query
	ErrNotFound = errors.New("listing not found")

	// ErrAdapterTimeout means a task ran past its deadline
	ErrAdapterTimeout = errors.New("adapter timed out")
)

// AdapterError is a transport or parse failure inside an adapter
type AdapterError struct {
	Marketplace models.Marketplace
	Op          string
	Err         error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Marketplace, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// NewAdapterError wraps err, mapping context deadline errors to ErrAdapterTimeout
func NewAdapterError(m models.Marketplace, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrAdapterTimeout) {
		err = fmt.Errorf("%w: %w", ErrAdapterTimeout, err)
	}
	return &AdapterError{Marketplace: m, Op: op, Err: err}
}
