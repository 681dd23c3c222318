package models

import (
	"fmt"
	"strings"
)

// SearchQuery represents an utterance search request with optional filters.
type SearchQuery struct {
	Query   string `json:"query"`
	Prefix  string `json:"prefix,omitempty"`
	Speaker string `json:"speaker,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// Returns an error if the query is empty; otherwise normalizes the limit.
func (q *SearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return nil
}
