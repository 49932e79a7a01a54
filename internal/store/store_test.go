package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/socialproof/profile-engine/internal/profile"
)

// fakeClock lets tests move time forward across the freshness boundary.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func openTestStore(t *testing.T) (*ProfileStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	s, err := Open(context.Background(), Config{
		Path: filepath.Join(t.TempDir(), "profiles.db"),
		TTL:  24 * time.Hour,
	}, clock)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s, clock
}

func sampleProfile(handle string) profile.ScrapedProfile {
	return profile.ScrapedProfile{
		Handle:    handle,
		FullName:  profile.String("Alice A."),
		Bio:       profile.String("Builder"),
		AvatarURL: profile.String("https://pbs/profile_images/1/alice_400x400.jpg"),
		Followers: profile.String("1.2K"),
		SourceURL: "https://x.com/" + handle,
	}
}

func TestUpsertAndGet(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	saved, err := s.Upsert(ctx, sampleProfile("alice"))
	require.NoError(t, err)
	require.Equal(t, "alice", saved.Handle)
	require.NotNil(t, saved.FullName)
	require.Equal(t, "Alice A.", *saved.FullName)
	require.False(t, saved.LastScraped.IsZero())

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, saved.ID, got.ID)
}

func TestGetIsCaseInsensitive(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, sampleProfile("Alice"))
	require.NoError(t, err)

	got, err := s.Get(ctx, "aLiCe")
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Handle)
}

func TestGetMissingHandle(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.Get(context.Background(), "nobody")
	require.ErrorIs(t, err, profile.ErrNotFound)
}

func TestUpsertOverwritesAndBumpsTimestamps(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()

	first, err := s.Upsert(ctx, sampleProfile("alice"))
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Hour)
	updated := sampleProfile("alice")
	updated.Bio = profile.String("Builder of things")
	second, err := s.Upsert(ctx, updated)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID, "upsert must update in place")
	require.Equal(t, "Builder of things", *second.Bio)
	require.True(t, second.LastScraped.After(first.LastScraped))
	require.True(t, second.UpdatedAt.After(first.UpdatedAt))
	require.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())
}

func TestUpsertCaseInsensitiveConflict(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, sampleProfile("alice"))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, sampleProfile("ALICE"))
	require.NoError(t, err)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "differently-cased handles are one identity")
}

func TestUpsertRequiresHandle(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.Upsert(context.Background(), profile.ScrapedProfile{SourceURL: "https://x.com/x"})
	require.Error(t, err)
}

func TestNullFieldsRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, profile.ScrapedProfile{
		Handle:    "ghost",
		SourceURL: "https://x.com/ghost",
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "ghost")
	require.NoError(t, err)
	require.Nil(t, got.FullName)
	require.Nil(t, got.Bio)
	require.Nil(t, got.AvatarURL)
	require.Nil(t, got.Followers)
}

func TestFreshnessBoundary(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()

	saved, err := s.Upsert(ctx, sampleProfile("alice"))
	require.NoError(t, err)

	clock.now = saved.LastScraped.Add(24*time.Hour - time.Second)
	require.True(t, s.IsFresh(saved), "one second inside the window is fresh")

	clock.now = saved.LastScraped.Add(24*time.Hour + time.Second)
	require.False(t, s.IsFresh(saved), "one second past the window is stale")
}

func TestListAll(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for _, h := range []string{"carol", "alice", "bob"} {
		_, err := s.Upsert(ctx, sampleProfile(h))
		require.NoError(t, err)
	}

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "alice", all[0].Handle)
	require.Equal(t, "bob", all[1].Handle)
	require.Equal(t, "carol", all[2].Handle)
}
