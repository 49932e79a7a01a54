package acquire

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/socialproof/profile-engine/internal/metrics"
	"github.com/socialproof/profile-engine/internal/profile"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)

type fakeRegistry struct {
	user profile.RegistryUser
	err  error
}

func (r *fakeRegistry) Lookup(context.Context, string) (profile.RegistryUser, error) {
	if r.err != nil {
		return profile.RegistryUser{}, r.err
	}
	return r.user, nil
}

type fakeStore struct {
	records   map[string]profile.ScrapedProfile
	fresh     bool
	getErr    error
	upsertErr error
	upsertGot []profile.ScrapedProfile
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]profile.ScrapedProfile{}}
}

func (s *fakeStore) Get(_ context.Context, handle string) (profile.ScrapedProfile, error) {
	if s.getErr != nil {
		return profile.ScrapedProfile{}, s.getErr
	}
	rec, ok := s.records[handle]
	if !ok {
		return profile.ScrapedProfile{}, fmt.Errorf("%w: %s", profile.ErrNotFound, handle)
	}
	return rec, nil
}

func (s *fakeStore) Upsert(_ context.Context, p profile.ScrapedProfile) (profile.ScrapedProfile, error) {
	s.upsertGot = append(s.upsertGot, p)
	if s.upsertErr != nil {
		return profile.ScrapedProfile{}, s.upsertErr
	}
	p.ID = 1
	s.records[p.Handle] = p
	return p, nil
}

func (s *fakeStore) ListAll(context.Context) ([]profile.ScrapedProfile, error) {
	var out []profile.ScrapedProfile
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

func (s *fakeStore) IsFresh(profile.ScrapedProfile) bool { return s.fresh }

// fakeScraper stands in for the whole browser pipeline; launches counts
// how many times a session would have been spent.
type fakeScraper struct {
	result   profile.ScrapedProfile
	err      error
	launches int
}

func (f *fakeScraper) Scrape(_ context.Context, handle string) (profile.ScrapedProfile, error) {
	f.launches++
	if f.err != nil {
		return profile.ScrapedProfile{}, f.err
	}
	res := f.result
	res.Handle = handle
	return res, nil
}

func scrapedAlice() profile.ScrapedProfile {
	return profile.ScrapedProfile{
		Handle:      "alice",
		FullName:    profile.String("Alice A."),
		Bio:         profile.String("Builder"),
		AvatarURL:   profile.String("https://pbs/profile_images/1/alice_400x400.jpg"),
		Followers:   profile.String("1.2K"),
		SourceURL:   "https://x.com/alice",
		LastScraped: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newOrchestrator(reg *fakeRegistry, store *fakeStore, scraper *fakeScraper) *Orchestrator {
	metrics.Init()
	return New(reg, store, scraper, &fakeClock{now: testNow}, zap.NewNop())
}

func TestCachePrecedence(t *testing.T) {
	store := newFakeStore()
	store.records["alice"] = scrapedAlice()
	store.fresh = true
	scraper := &fakeScraper{}

	o := newOrchestrator(&fakeRegistry{err: profile.ErrNotFound}, store, scraper)
	res, err := o.Acquire(context.Background(), "alice", false)
	require.NoError(t, err)

	require.True(t, res.Cached)
	require.Equal(t, profile.SourceCache, res.Source)
	require.Zero(t, scraper.launches, "fresh cache must not launch a session")
}

func TestRegistryPrecedence(t *testing.T) {
	store := newFakeStore()
	store.records["alice"] = scrapedAlice()
	store.fresh = true
	scraper := &fakeScraper{}
	reg := &fakeRegistry{user: profile.RegistryUser{
		Handle:   "alice",
		FullName: profile.String("Alice Registered"),
	}}

	o := newOrchestrator(reg, store, scraper)
	res, err := o.Acquire(context.Background(), "alice", false)
	require.NoError(t, err)

	require.Equal(t, profile.SourceRegistry, res.Source)
	require.Equal(t, "Alice Registered", *res.Profile.FullName,
		"registry data wins over a fresh cache record")
	require.Equal(t, testNow, res.Profile.LastScraped,
		"registry hits carry the lookup time, not a zero timestamp")
	require.Zero(t, scraper.launches)
}

func TestStaleCacheTriggersScrape(t *testing.T) {
	store := newFakeStore()
	store.records["alice"] = scrapedAlice()
	store.fresh = false
	scraper := &fakeScraper{result: scrapedAlice()}

	o := newOrchestrator(&fakeRegistry{err: profile.ErrNotFound}, store, scraper)
	res, err := o.Acquire(context.Background(), "alice", false)
	require.NoError(t, err)

	require.False(t, res.Cached)
	require.Equal(t, profile.SourceScrape, res.Source)
	require.Equal(t, 1, scraper.launches)
	require.Len(t, store.upsertGot, 1, "scrape result must be persisted")
}

func TestMissingEverywhereScrapesAndPersists(t *testing.T) {
	store := newFakeStore()
	scraper := &fakeScraper{result: scrapedAlice()}

	o := newOrchestrator(&fakeRegistry{err: profile.ErrNotFound}, store, scraper)
	res, err := o.Acquire(context.Background(), "alice", false)
	require.NoError(t, err)

	require.False(t, res.Cached)
	require.Equal(t, "alice", res.Profile.Handle)
	require.Contains(t, store.records, "alice")
}

func TestRefreshBypassesFreshCache(t *testing.T) {
	store := newFakeStore()
	store.records["alice"] = scrapedAlice()
	store.fresh = true
	scraper := &fakeScraper{result: scrapedAlice()}

	o := newOrchestrator(&fakeRegistry{err: profile.ErrNotFound}, store, scraper)
	res, err := o.Acquire(context.Background(), "alice", true)
	require.NoError(t, err)

	require.False(t, res.Cached)
	require.Equal(t, 1, scraper.launches, "force must always scrape")
}

func TestRegistryUnavailableFallsThroughToCache(t *testing.T) {
	store := newFakeStore()
	store.records["alice"] = scrapedAlice()
	store.fresh = true
	scraper := &fakeScraper{}

	o := newOrchestrator(&fakeRegistry{err: profile.ErrRegistryUnavailable}, store, scraper)
	res, err := o.Acquire(context.Background(), "alice", false)
	require.NoError(t, err)

	require.Equal(t, profile.SourceCache, res.Source)
	require.Zero(t, scraper.launches)
}

func TestScrapeFailureIsTerminal(t *testing.T) {
	store := newFakeStore()
	scraper := &fakeScraper{err: profile.ErrNavigationTimeout}

	o := newOrchestrator(&fakeRegistry{err: profile.ErrNotFound}, store, scraper)
	_, err := o.Acquire(context.Background(), "alice", false)
	require.ErrorIs(t, err, profile.ErrScrapeFailed,
		"session-level failures map to the terminal scrape failure")
	require.Empty(t, store.upsertGot)
}

func TestStoreWriteFailureStillReturnsResult(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("disk full")
	scraper := &fakeScraper{result: scrapedAlice()}

	o := newOrchestrator(&fakeRegistry{err: profile.ErrNotFound}, store, scraper)
	res, err := o.Acquire(context.Background(), "alice", false)
	require.NoError(t, err, "a cache-write failure must not block the result")
	require.Equal(t, "alice", res.Profile.Handle)
	require.False(t, res.Cached)
}

func TestStoreReadFailureStillScrapes(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("io error")
	scraper := &fakeScraper{result: scrapedAlice()}

	o := newOrchestrator(&fakeRegistry{err: profile.ErrNotFound}, store, scraper)
	res, err := o.Acquire(context.Background(), "alice", false)
	require.NoError(t, err)
	require.Equal(t, 1, scraper.launches)
	require.Equal(t, profile.SourceScrape, res.Source)
}

func TestAvatarUsesAcquisitionPath(t *testing.T) {
	store := newFakeStore()
	store.records["alice"] = scrapedAlice()
	store.fresh = true

	o := newOrchestrator(&fakeRegistry{err: profile.ErrNotFound}, store, &fakeScraper{})
	url, err := o.Avatar(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "https://pbs/profile_images/1/alice_400x400.jpg", url)
}

func TestAvatarMissingIsNotFound(t *testing.T) {
	store := newFakeStore()
	rec := scrapedAlice()
	rec.AvatarURL = nil
	store.records["alice"] = rec
	store.fresh = true

	o := newOrchestrator(&fakeRegistry{err: profile.ErrNotFound}, store, &fakeScraper{})
	_, err := o.Avatar(context.Background(), "alice")
	require.ErrorIs(t, err, profile.ErrNotFound)
}
