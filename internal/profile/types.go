// Package profile defines core types shared across subsystems.
package profile

import "time"

// ScrapedProfile is the canonical extracted record for one handle.
// Handle is the username segment of the source URL and is the unique,
// case-insensitive key in the store. Optional fields are nil when no
// heuristic produced a value.
type ScrapedProfile struct {
	ID          int64     `json:"id,omitempty"`
	Handle      string    `json:"handle"`
	FullName    *string   `json:"fullName"`
	Bio         *string   `json:"bio"`
	AvatarURL   *string   `json:"avatarUrl"`
	Followers   *string   `json:"followers"`
	SourceURL   string    `json:"sourceUrl"`
	LastScraped time.Time `json:"lastScraped"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RegistryUser is the payload returned by the external authoritative
// registry for a registered handle.
type RegistryUser struct {
	Handle    string  `json:"handle"`
	FullName  *string `json:"fullName"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatarUrl"`
	Followers *string `json:"followers"`
}

// Source identifies where an acquisition result came from.
type Source string

// Acquisition result origins.
const (
	SourceRegistry Source = "registry"
	SourceCache    Source = "cache"
	SourceScrape   Source = "scrape"
)

// Result is what the orchestrator hands back to the HTTP layer.
type Result struct {
	Profile ScrapedProfile `json:"data"`
	Cached  bool           `json:"cached"`
	Source  Source         `json:"source"`
}

// Extracted holds the raw field values produced by the heuristic chains
// before normalization. Any field may be nil.
type Extracted struct {
	FullName  *string
	Bio       *string
	AvatarURL *string
	Followers *string
}

// Empty reports whether no heuristic produced any value at all.
func (e Extracted) Empty() bool {
	return e.FullName == nil && e.Bio == nil && e.AvatarURL == nil && e.Followers == nil
}

// String returns a helper for building optional field values.
func String(s string) *string {
	return &s
}
