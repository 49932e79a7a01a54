// Package archive keeps raw HTML snapshots of scraped pages for
// provenance. Archival is best effort: the orchestrator logs failures
// and moves on, so a broken provider never blocks a result.
package archive

import (
	"context"
	"fmt"
	"time"
)

// Provider writes one snapshot and returns its URI.
type Provider interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
}

// NoOp discards snapshots.
type NoOp struct{}

// Put drops the snapshot and returns an empty URI.
func (NoOp) Put(context.Context, string, []byte) (string, error) {
	return "", nil
}

// SnapshotPath builds the canonical object path for one scrape.
func SnapshotPath(prefix, handle string, at time.Time) string {
	if prefix == "" {
		prefix = "pages"
	}
	return fmt.Sprintf("%s/%s/%d.html", prefix, handle, at.Unix())
}
