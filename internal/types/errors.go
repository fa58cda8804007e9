package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNoCategories = errors.New("no categories configured")
	ErrEmptyMarkup  = errors.New("empty markup fragment")
)

// FetchError wraps errors that occur while fetching a catalog page.
type FetchError struct {
	URL        string
	Page       int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s page %d (status %d): %v", e.URL, e.Page, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s page %d: %v", e.URL, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError wraps errors that occur while extracting a category page's
// markup. An unparseable page ends that category's run; it is never
// escalated as a cycle failure.
type ParseError struct {
	Category string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in category %q: %v", e.Category, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors from the persistence collaborator.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
