package media

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retroludo/retrodex/internal/database/testutil"
)

// fakeFetcher scripts provider responses per (type, region) pair and records
// the order of fetch attempts.
type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]string
	calls   []string
}

func newFakeFetcher(results map[string]string) *fakeFetcher {
	return &fakeFetcher{results: results}
}

func pairKey(mediaType string, region Region) string {
	return fmt.Sprintf("%s/%s", mediaType, region)
}

func (f *fakeFetcher) Fetch(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := pairKey(req.MediaType, req.Region)
	f.calls = append(f.calls, key)
	return f.results[key], nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestResolver(t *testing.T, fetcher Fetcher, now *time.Time) (*Resolver, *DatabaseStore) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := func() time.Time { return *now }

	store, err := NewDatabaseStore(db, WithClock(clock))
	require.NoError(t, err)

	tags, err := NewTagSet([]string{"box-2D", "wheel", "minicon"})
	require.NoError(t, err)

	resolver, err := NewResolver(store, fetcher, tags, time.Hour, WithResolverClock(clock))
	require.NoError(t, err)

	return resolver, store
}

func gameRef() EntityRef {
	return EntityRef{Kind: KindGame, EntityID: "game-1", SourceID: 4321, SystemSourceID: 75}
}

func TestResolvePrefersTypeMajorOrder(t *testing.T) {
	now := time.Now()
	fetcher := newFakeFetcher(nil)
	resolver, store := newTestResolver(t, fetcher, &now)

	ctx := context.Background()
	ref := gameRef()

	// A hit exists for the best region of the worse type and for the worst
	// region of the better type. The better type must win.
	require.NoError(t, store.Upsert(ctx, EntryKey{ref.Kind, ref.EntityID, "wheel", RegionUSA}, "https://cdn.example/wheel-us.png", ref.SourceID, time.Hour))
	require.NoError(t, store.Upsert(ctx, EntryKey{ref.Kind, ref.EntityID, "box-2D", RegionJapan}, "https://cdn.example/box-jp.png", ref.SourceID, time.Hour))

	url, err := resolver.Resolve(ctx, ref, []string{"box-2D", "wheel"}, []Region{RegionUSA, RegionJapan}, ResolveOptions{})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/box-jp.png", url)
	require.Zero(t, fetcher.callCount(), "stored hit must not trigger upstream calls")
}

func TestResolveNegativeEntriesNeverHit(t *testing.T) {
	now := time.Now()
	fetcher := newFakeFetcher(nil)
	resolver, store := newTestResolver(t, fetcher, &now)

	ctx := context.Background()
	ref := gameRef()

	types := []string{"box-2D", "wheel"}
	regions := []Region{RegionFrance, RegionWorld}
	for _, mediaType := range types {
		for _, region := range regions {
			require.NoError(t, store.Upsert(ctx, EntryKey{ref.Kind, ref.EntityID, mediaType, region}, "", ref.SourceID, time.Hour))
		}
	}

	url, err := resolver.Resolve(ctx, ref, types, regions, ResolveOptions{CacheOnly: true})
	require.NoError(t, err)
	require.Empty(t, url)
	require.Zero(t, fetcher.callCount())
}

func TestResolveCacheOnlySkipsUpstream(t *testing.T) {
	now := time.Now()
	fetcher := newFakeFetcher(map[string]string{
		pairKey("box-2D", RegionFrance): "https://cdn.example/box-fr.png",
	})
	resolver, _ := newTestResolver(t, fetcher, &now)

	url, err := resolver.Resolve(context.Background(), gameRef(), []string{"box-2D"}, []Region{RegionFrance}, ResolveOptions{CacheOnly: true})
	require.NoError(t, err)
	require.Empty(t, url)
	require.Zero(t, fetcher.callCount())
}

func TestResolveIdempotentWithinTTL(t *testing.T) {
	now := time.Now()
	fetcher := newFakeFetcher(nil) // provider has nothing
	resolver, _ := newTestResolver(t, fetcher, &now)

	ctx := context.Background()
	ref := gameRef()
	types := []string{"box-2D", "wheel"}
	regions := []Region{RegionFrance, RegionWorld}

	url, err := resolver.Resolve(ctx, ref, types, regions, ResolveOptions{})
	require.NoError(t, err)
	require.Empty(t, url)
	require.Equal(t, 4, fetcher.callCount(), "one probe per pair on first pass")

	url, err = resolver.Resolve(ctx, ref, types, regions, ResolveOptions{})
	require.NoError(t, err)
	require.Empty(t, url)
	require.Equal(t, 4, fetcher.callCount(), "negative entries must absorb the second pass")
}

func TestResolveRefetchesAfterExpiry(t *testing.T) {
	now := time.Now()
	fetcher := newFakeFetcher(map[string]string{
		pairKey("box-2D", RegionFrance): "https://cdn.example/box-fr.png",
	})
	resolver, store := newTestResolver(t, fetcher, &now)

	ctx := context.Background()
	ref := gameRef()

	url, err := resolver.Resolve(ctx, ref, []string{"box-2D"}, []Region{RegionFrance}, ResolveOptions{})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/box-fr.png", url)
	require.Equal(t, 1, fetcher.callCount())

	// Still inside the TTL: pure cache hit.
	url, err = resolver.Resolve(ctx, ref, []string{"box-2D"}, []Region{RegionFrance}, ResolveOptions{})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/box-fr.png", url)
	require.Equal(t, 1, fetcher.callCount())

	now = now.Add(2 * time.Hour)

	entry, err := store.Lookup(ctx, EntryKey{ref.Kind, ref.EntityID, "box-2D", RegionFrance})
	require.NoError(t, err)
	require.Nil(t, entry, "expired entries must not be returned by lookup")

	url, err = resolver.Resolve(ctx, ref, []string{"box-2D"}, []Region{RegionFrance}, ResolveOptions{})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/box-fr.png", url)
	require.Equal(t, 2, fetcher.callCount(), "expiry must trigger a re-fetch")
}

func TestResolveEndToEndScenario(t *testing.T) {
	now := time.Now()
	fetcher := newFakeFetcher(map[string]string{
		pairKey("wheel", RegionWorld): "https://cdn.example/wheel-wor.png",
	})
	resolver, store := newTestResolver(t, fetcher, &now)

	ctx := context.Background()
	ref := gameRef()
	types := []string{"box-2D", "wheel"}
	regions := []Region{RegionFrance, RegionWorld}

	url, err := resolver.Resolve(ctx, ref, types, regions, ResolveOptions{})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/wheel-wor.png", url)

	require.Equal(t, []string{
		pairKey("box-2D", RegionFrance),
		pairKey("box-2D", RegionWorld),
		pairKey("wheel", RegionFrance),
		pairKey("wheel", RegionWorld),
	}, fetcher.calls, "pairs must be probed type-major, region-minor")

	// The three misses were recorded as occupied negative slots.
	for _, probe := range []EntryKey{
		{ref.Kind, ref.EntityID, "box-2D", RegionFrance},
		{ref.Kind, ref.EntityID, "box-2D", RegionWorld},
		{ref.Kind, ref.EntityID, "wheel", RegionFrance},
	} {
		entry, err := store.Lookup(ctx, probe)
		require.NoError(t, err)
		require.NotNil(t, entry)
		require.False(t, entry.IsValid)
		require.Empty(t, entry.URL)
	}

	winner, err := store.Lookup(ctx, EntryKey{ref.Kind, ref.EntityID, "wheel", RegionWorld})
	require.NoError(t, err)
	require.NotNil(t, winner)
	require.True(t, winner.IsValid)
	require.Equal(t, "https://cdn.example/wheel-wor.png", winner.URL)
	require.NotNil(t, winner.SourceID)
	require.Equal(t, ref.SourceID, *winner.SourceID)
}

func TestResolveRejectsUnknownTagsAndRegions(t *testing.T) {
	now := time.Now()
	resolver, _ := newTestResolver(t, newFakeFetcher(nil), &now)

	ctx := context.Background()

	var inputErr *InputError

	_, err := resolver.Resolve(ctx, gameRef(), []string{"fanart-4D"}, []Region{RegionFrance}, ResolveOptions{})
	require.ErrorContains(t, err, "unknown media type")
	require.ErrorAs(t, err, &inputErr, "argument rejections must be typed so callers can map them")

	_, err = resolver.Resolve(ctx, gameRef(), []string{"box-2D"}, []Region{Region("atlantis")}, ResolveOptions{})
	require.ErrorContains(t, err, "unknown region")
	require.ErrorAs(t, err, &inputErr)

	_, err = resolver.Resolve(ctx, gameRef(), []string{"box-2D", "box-2D"}, []Region{RegionFrance}, ResolveOptions{})
	require.ErrorContains(t, err, "duplicate media type")
	require.ErrorAs(t, err, &inputErr)
}

func TestResolveWithoutUpstreamIdentifiers(t *testing.T) {
	now := time.Now()
	fetcher := newFakeFetcher(map[string]string{
		pairKey("box-2D", RegionFrance): "https://cdn.example/box-fr.png",
	})
	resolver, _ := newTestResolver(t, fetcher, &now)

	ref := EntityRef{Kind: KindGame, EntityID: "unlinked-game"}
	url, err := resolver.Resolve(context.Background(), ref, []string{"box-2D"}, []Region{RegionFrance}, ResolveOptions{})
	require.NoError(t, err)
	require.Empty(t, url)
	require.Zero(t, fetcher.callCount(), "entities without source ids must not reach the provider")
}
