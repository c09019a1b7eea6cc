package media

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retroludo/retrodex/internal/database/testutil"
	"github.com/retroludo/retrodex/internal/models"
)

func newTestStore(t *testing.T, now *time.Time) *DatabaseStore {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := NewDatabaseStore(db, WithClock(func() time.Time { return *now }))
	require.NoError(t, err)
	return store
}

func TestUpsertReplacesOnUniqueKey(t *testing.T) {
	now := time.Now()
	store := newTestStore(t, &now)
	ctx := context.Background()

	key := EntryKey{Kind: KindGame, EntityID: "g1", MediaType: "box-2D", Region: RegionFrance}

	require.NoError(t, store.Upsert(ctx, key, "https://cdn.example/a.png", 4321, time.Hour))
	firstWrite := now

	now = now.Add(10 * time.Minute)
	require.NoError(t, store.Upsert(ctx, key, "https://cdn.example/b.png", 4321, time.Hour))

	var count int64
	require.NoError(t, store.db.Model(&models.MediaCacheEntry{}).Count(&count).Error)
	require.EqualValues(t, 1, count, "upsert must never duplicate the unique key")

	entry, err := store.Lookup(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "https://cdn.example/b.png", entry.URL)
	require.True(t, entry.CachedAt.After(firstWrite), "cached_at must be refreshed")
	require.Equal(t, time.Hour, entry.ExpiresAt.Sub(entry.CachedAt))
}

func TestUpsertLastWriterWinsUnderConcurrentCallers(t *testing.T) {
	now := time.Now()
	store := newTestStore(t, &now)
	ctx := context.Background()

	// sqlite locks the whole database on write; a single connection keeps the
	// racing goroutines from tripping over the file lock.
	sqlDB, err := store.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	key := EntryKey{Kind: KindGame, EntityID: "g1", MediaType: "box-2D", Region: RegionEurope}

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.Upsert(ctx, key, fmt.Sprintf("https://cdn.example/box-%d.png", i), 4321, time.Hour)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, store.db.Model(&models.MediaCacheEntry{}).Count(&count).Error)
	require.EqualValues(t, 1, count, "racing writers must collapse onto the unique key")

	entry, err := store.Lookup(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.True(t, entry.IsValid)
	require.Contains(t, entry.URL, "https://cdn.example/box-")
}

func TestUpsertNegativeEntry(t *testing.T) {
	now := time.Now()
	store := newTestStore(t, &now)
	ctx := context.Background()

	key := EntryKey{Kind: KindConsole, EntityID: "c1", MediaType: "minicon", Region: RegionNone}
	require.NoError(t, store.Upsert(ctx, key, "", 75, time.Hour))

	entry, err := store.Lookup(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, entry, "negative entries still occupy the slot")
	require.False(t, entry.IsValid)
	require.False(t, entry.Usable(now))
}

func TestLookupIgnoresExpiredRows(t *testing.T) {
	now := time.Now()
	store := newTestStore(t, &now)
	ctx := context.Background()

	key := EntryKey{Kind: KindGame, EntityID: "g1", MediaType: "wheel", Region: RegionWorld}
	require.NoError(t, store.Upsert(ctx, key, "https://cdn.example/w.png", 4321, time.Minute))

	now = now.Add(time.Minute) // expires_at is not strictly in the future anymore

	entry, err := store.Lookup(ctx, key)
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestInvalidateMarksEntityRows(t *testing.T) {
	now := time.Now()
	store := newTestStore(t, &now)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, EntryKey{KindGame, "g1", "box-2D", RegionFrance}, "https://cdn.example/a.png", 4321, time.Hour))
	require.NoError(t, store.Upsert(ctx, EntryKey{KindGame, "g1", "wheel", RegionWorld}, "https://cdn.example/b.png", 4321, time.Hour))
	require.NoError(t, store.Upsert(ctx, EntryKey{KindGame, "g2", "wheel", RegionWorld}, "https://cdn.example/c.png", 8765, time.Hour))

	require.NoError(t, store.Invalidate(ctx, KindGame, "g1"))

	// Invalidated rows are expired in place, so lookups treat the slots as
	// free and the next resolution refetches them.
	for _, key := range []EntryKey{
		{KindGame, "g1", "box-2D", RegionFrance},
		{KindGame, "g1", "wheel", RegionWorld},
	} {
		entry, err := store.Lookup(ctx, key)
		require.NoError(t, err)
		require.Nil(t, entry)
	}

	var invalidated int64
	require.NoError(t, store.db.Model(&models.MediaCacheEntry{}).
		Where("entity_id = ? AND is_valid = ?", "g1", false).
		Count(&invalidated).Error)
	require.EqualValues(t, 2, invalidated, "rows stay until maintenance purges them")

	untouched, err := store.Lookup(ctx, EntryKey{KindGame, "g2", "wheel", RegionWorld})
	require.NoError(t, err)
	require.NotNil(t, untouched)
	require.True(t, untouched.IsValid)
}

func TestPurgeExpiredHonoursGraceWindow(t *testing.T) {
	now := time.Now()
	store := newTestStore(t, &now)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, EntryKey{KindGame, "old", "box-2D", RegionFrance}, "x", 1, time.Minute))
	require.NoError(t, store.Upsert(ctx, EntryKey{KindGame, "live", "box-2D", RegionFrance}, "y", 2, 48*time.Hour))

	now = now.Add(25 * time.Hour)

	// The stale row expired 25h ago; a 48h grace keeps it around.
	removed, err := store.PurgeExpired(ctx, 48*time.Hour)
	require.NoError(t, err)
	require.Zero(t, removed)

	removed, err = store.PurgeExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var count int64
	require.NoError(t, store.db.Model(&models.MediaCacheEntry{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}
