package db

import (
	"context"
	"time"
)

// Store is the backend facade. Consumers depend on the narrow sub-interfaces.
type Store interface {
	Pinger
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Searcher issues FT.SEARCH round trips against the remote index.
type Searcher interface {
	Search(ctx context.Context, q *Query) (*SearchResult, error)
	// Count runs the full query (text and filters) with a zero-width window
	// (LIMIT 0 0) and returns only the total match count.
	Count(ctx context.Context, q *Query) (int64, error)
	// SupportsHighlight reports whether the backend can return server-side
	// highlight fragments.
	SupportsHighlight(ctx context.Context) bool
}
