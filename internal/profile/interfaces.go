package profile

import (
	"context"
	"time"
)

// Store persists scraped profiles keyed by handle (case-insensitive).
type Store interface {
	Get(ctx context.Context, handle string) (ScrapedProfile, error)
	Upsert(ctx context.Context, p ScrapedProfile) (ScrapedProfile, error)
	ListAll(ctx context.Context) ([]ScrapedProfile, error)
	IsFresh(p ScrapedProfile) bool
}

// Registry queries the external, authoritative store of registered users.
// Implementations return ErrNotFound when the handle has no binding and
// ErrRegistryUnavailable on any non-2xx/non-404 outcome.
type Registry interface {
	Lookup(ctx context.Context, handle string) (RegistryUser, error)
}

// Scraper drives a browser (or probe fetch) against the source site and
// returns the extracted, normalized profile for one handle.
type Scraper interface {
	Scrape(ctx context.Context, handle string) (ScrapedProfile, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
