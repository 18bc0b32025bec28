package capability

import (
	"context"
	"errors"
	"fmt"
)

var ErrSearchKeyRequired = errors.New("SerpAPI key is required")

// StubSearch answers every query with one synthetic result.
type StubSearch struct{}

func (StubSearch) Search(_ context.Context, query, apiKey string) ([]SearchResult, error) {
	if apiKey == "" {
		return nil, ErrSearchKeyRequired
	}
	return []SearchResult{{
		Title: fmt.Sprintf("Search results for: %s", query),
		Snippet: fmt.Sprintf("Here are the latest results for your query about %s. "+
			"This is a simulated response standing in for a real search API.", query),
		URL: "https://example.com",
	}}, nil
}
