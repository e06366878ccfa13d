package models

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultLimit is the number of recommendations returned when none is requested.
	DefaultLimit = 5
	// MaxLimit caps the number of recommendations per request.
	MaxLimit = 100
)

// ErrEmptyQuery is returned for queries that are blank after trimming.
var ErrEmptyQuery = errors.New("please enter your movie preferences")

// ErrInvalidLimit is returned for negative limits.
var ErrInvalidLimit = errors.New("limit must not be negative")

// RecommendQuery is a free-text description of the movies a user wants.
type RecommendQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Validate trims the query, rejects blank text, and normalizes the limit:
// 0 becomes DefaultLimit and anything above MaxLimit is capped.
func (q *RecommendQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return ErrEmptyQuery
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLimit, q.Limit)
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return nil
}
