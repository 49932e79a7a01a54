package profile

import "errors"

// Error taxonomy for acquisition. Callers match with errors.Is; lower
// layers wrap these with fmt.Errorf("...: %w", ...) for context.
var (
	// ErrLaunch means no usable browser executable could be resolved or
	// the browser process failed to start.
	ErrLaunch = errors.New("browser launch failed")

	// ErrNavigationTimeout means the document did not reach a
	// minimal-ready state within the navigation budget.
	ErrNavigationTimeout = errors.New("navigation timed out")

	// ErrNavigation covers network/DNS failures while loading the page.
	ErrNavigation = errors.New("navigation failed")

	// ErrRegistryUnavailable means the registry answered with something
	// other than a hit or a clean 404; callers fall through to the
	// cache/scrape path.
	ErrRegistryUnavailable = errors.New("registry unavailable")

	// ErrNotFound is returned by lookups with no matching record.
	ErrNotFound = errors.New("not found")

	// ErrScrapeFailed is the terminal acquisition failure: the page never
	// yielded an identity signal.
	ErrScrapeFailed = errors.New("scrape failed")
)
