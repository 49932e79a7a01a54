// Package store persists scraped profiles in an embedded sqlite
// database. WAL journal mode keeps concurrent readers safe while a
// single writer upserts; writes are single-record with no cross-record
// invariants, so no additional locking is layered on top.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/socialproof/profile-engine/internal/profile"
)

//go:embed schema.sql
var schema string

// Config controls the sqlite-backed profile store.
type Config struct {
	// Path is the database file; ":memory:" is accepted for tests.
	Path string
	// TTL is the freshness window; records older than this are stale.
	TTL time.Duration
}

// ProfileStore implements profile.Store over sqlite.
type ProfileStore struct {
	db    *sql.DB
	ttl   time.Duration
	clock profile.Clock
}

// Open creates (or opens) the database, applies the schema and switches
// to WAL journal mode.
func Open(ctx context.Context, cfg Config, clock profile.Clock) (*ProfileStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("store ttl must be > 0")
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &ProfileStore{db: db, ttl: cfg.TTL, clock: clock}, nil
}

// Close releases the underlying database handle.
func (s *ProfileStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *ProfileStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

const selectColumns = `id, username, full_name, bio, avatar_url, followers, url, last_scraped, created_at, updated_at`

// Get returns the record for handle, matching case-insensitively.
// Missing handles map to profile.ErrNotFound.
func (s *ProfileStore) Get(ctx context.Context, handle string) (profile.ScrapedProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM scraped_profiles WHERE username = ? COLLATE NOCASE`,
		handle,
	)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.ScrapedProfile{}, fmt.Errorf("%w: %s", profile.ErrNotFound, handle)
	}
	if err != nil {
		return profile.ScrapedProfile{}, fmt.Errorf("get profile %s: %w", handle, err)
	}
	return p, nil
}

// Upsert inserts or replaces the record for p.Handle. On update every
// field is overwritten (last-write-wins, no history) and updated_at and
// last_scraped are bumped; created_at is preserved.
func (s *ProfileStore) Upsert(ctx context.Context, p profile.ScrapedProfile) (profile.ScrapedProfile, error) {
	if p.Handle == "" {
		return profile.ScrapedProfile{}, fmt.Errorf("upsert: handle is required")
	}
	now := s.clock.Now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO scraped_profiles
	(username, full_name, bio, avatar_url, followers, url, last_scraped, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(username) DO UPDATE SET
	full_name    = excluded.full_name,
	bio          = excluded.bio,
	avatar_url   = excluded.avatar_url,
	followers    = excluded.followers,
	url          = excluded.url,
	last_scraped = excluded.last_scraped,
	updated_at   = excluded.updated_at`,
		p.Handle, p.FullName, p.Bio, p.AvatarURL, p.Followers, p.SourceURL, now, now, now,
	)
	if err != nil {
		return profile.ScrapedProfile{}, fmt.Errorf("upsert profile %s: %w", p.Handle, err)
	}
	return s.Get(ctx, p.Handle)
}

// ListAll returns every stored profile ordered by handle.
func (s *ProfileStore) ListAll(ctx context.Context) ([]profile.ScrapedProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM scraped_profiles ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []profile.ScrapedProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

// IsFresh reports whether the record was scraped within the TTL window.
func (s *ProfileStore) IsFresh(p profile.ScrapedProfile) bool {
	return s.clock.Now().Sub(p.LastScraped) < s.ttl
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (profile.ScrapedProfile, error) {
	var (
		p        profile.ScrapedProfile
		fullName sql.NullString
		bio      sql.NullString
		avatar   sql.NullString
		follows  sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.Handle, &fullName, &bio, &avatar, &follows,
		&p.SourceURL, &p.LastScraped, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return profile.ScrapedProfile{}, err
	}
	p.FullName = nullable(fullName)
	p.Bio = nullable(bio)
	p.AvatarURL = nullable(avatar)
	p.Followers = nullable(follows)
	return p, nil
}

func nullable(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
