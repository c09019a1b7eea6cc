package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/retroludo/retrodex/pkg/logger"
	"github.com/retroludo/retrodex/pkg/metrics"
)

// DefaultCacheTTL bounds how long a resolution outcome, positive or negative,
// is trusted before the provider is consulted again.
const DefaultCacheTTL = 30 * 24 * time.Hour

// InputError reports a resolution rejected for malformed arguments. Every
// other resolver error is a store failure or caller cancellation.
type InputError struct {
	msg string
}

func (e *InputError) Error() string { return e.msg }

func inputErrorf(format string, args ...any) error {
	return &InputError{msg: fmt.Sprintf(format, args...)}
}

// ResolveOptions tunes a single resolution.
type ResolveOptions struct {
	// CacheOnly suppresses upstream fetches entirely; rendering paths that
	// must not block on network I/O set this.
	CacheOnly bool
}

// Resolver finds the best available media URL for an entity across an ordered
// {type x region} preference matrix, consulting the cache first and the
// upstream provider on a full miss.
type Resolver struct {
	store   Store
	fetcher Fetcher
	tags    *TagSet
	ttl     time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithResolverClock overrides the resolver clock for tests.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver wires the cache store, provider adapter and accepted tag set.
func NewResolver(store Store, fetcher Fetcher, tags *TagSet, ttl time.Duration, opts ...ResolverOption) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("media resolver: store is required")
	}
	if fetcher == nil {
		return nil, errors.New("media resolver: fetcher is required")
	}
	if tags == nil {
		return nil, errors.New("media resolver: tag set is required")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	resolver := &Resolver{
		store:   store,
		fetcher: fetcher,
		tags:    tags,
		ttl:     ttl,
		now:     time.Now,
		log:     logger.WithModule("media.resolver"),
	}
	for _, opt := range opts {
		opt(resolver)
	}
	return resolver, nil
}

// Resolve returns the best available URL for ref, or the empty string when no
// media exists anywhere in the preference matrix. Absence is a normal outcome;
// only store failures and caller cancellation produce errors.
//
// Pairs are tried type-major, region-minor: every region of the most preferred
// media type is exhausted before the next type is considered. A stored hit on
// any pair short-circuits the whole search.
func (r *Resolver) Resolve(ctx context.Context, ref EntityRef, typesByPriority []string, regionsByPriority []Region, opts ResolveOptions) (string, error) {
	if r == nil {
		return "", errors.New("media resolver: resolver not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := r.validate(ref, typesByPriority, regionsByPriority); err != nil {
		return "", err
	}

	now := r.now()

	// Pass 1: stored entries only. Occupied slots (unexpired negatives) are
	// remembered so the fetch pass does not re-probe them within the TTL.
	occupied := make(map[EntryKey]struct{})
	for _, mediaType := range typesByPriority {
		for _, region := range regionsByPriority {
			key := EntryKey{Kind: ref.Kind, EntityID: ref.EntityID, MediaType: mediaType, Region: region}

			entry, err := r.store.Lookup(ctx, key)
			if err != nil {
				return "", fmt.Errorf("media resolver: lookup: %w", err)
			}
			if entry == nil {
				continue
			}
			if entry.Usable(now) {
				metrics.MediaCacheLookups.WithLabelValues("hit").Inc()
				return entry.URL, nil
			}
			metrics.MediaCacheLookups.WithLabelValues("negative").Inc()
			occupied[key] = struct{}{}
		}
	}

	metrics.MediaCacheLookups.WithLabelValues("miss").Inc()

	if opts.CacheOnly {
		return "", nil
	}

	// Without upstream identifiers there is nothing to fetch; treat as plain
	// absence rather than an error, the catalog row simply is not linked yet.
	if ref.SourceID <= 0 || ref.SystemSourceID <= 0 {
		r.log.Debug("entity has no upstream identifiers, skipping fetch",
			zap.String("kind", string(ref.Kind)),
			zap.String("entity_id", ref.EntityID),
		)
		return "", nil
	}

	// Pass 2: same order, one fetch per unoccupied pair. The first non-empty
	// provider result is persisted and wins; every empty or failed probe is
	// persisted as a negative entry so the pair is not retried inside the TTL.
	for _, mediaType := range typesByPriority {
		for _, region := range regionsByPriority {
			key := EntryKey{Kind: ref.Kind, EntityID: ref.EntityID, MediaType: mediaType, Region: region}
			if _, taken := occupied[key]; taken {
				continue
			}

			url, err := r.fetcher.Fetch(ctx, r.request(ref, mediaType, region))
			if err != nil {
				// The adapter only errors on caller cancellation.
				return "", err
			}

			if url == "" {
				metrics.MediaUpstreamFetches.WithLabelValues("empty").Inc()
				if err := r.store.Upsert(ctx, key, "", ref.SourceID, r.ttl); err != nil {
					return "", fmt.Errorf("media resolver: record negative entry: %w", err)
				}
				continue
			}

			metrics.MediaUpstreamFetches.WithLabelValues("found").Inc()
			if err := r.store.Upsert(ctx, key, url, ref.SourceID, r.ttl); err != nil {
				return "", fmt.Errorf("media resolver: record entry: %w", err)
			}
			return url, nil
		}
	}

	return "", nil
}

func (r *Resolver) validate(ref EntityRef, types []string, regions []Region) error {
	if !ref.Kind.Valid() {
		return inputErrorf("media resolver: unknown entity kind %q", ref.Kind)
	}
	if ref.EntityID == "" {
		return inputErrorf("media resolver: entity id is required")
	}
	if len(types) == 0 {
		return inputErrorf("media resolver: type priority list is empty")
	}
	if len(regions) == 0 {
		return inputErrorf("media resolver: region priority list is empty")
	}

	seenTypes := make(map[string]struct{}, len(types))
	for _, mediaType := range types {
		if !r.tags.Contains(mediaType) {
			return inputErrorf("media resolver: unknown media type %q", mediaType)
		}
		if _, dup := seenTypes[mediaType]; dup {
			return inputErrorf("media resolver: duplicate media type %q in priority list", mediaType)
		}
		seenTypes[mediaType] = struct{}{}
	}

	seenRegions := make(map[Region]struct{}, len(regions))
	for _, region := range regions {
		if _, ok := knownRegions[region]; !ok {
			return inputErrorf("media resolver: unknown region %q", region)
		}
		if _, dup := seenRegions[region]; dup {
			return inputErrorf("media resolver: duplicate region %q in priority list", region)
		}
		seenRegions[region] = struct{}{}
	}

	return nil
}

func (r *Resolver) request(ref EntityRef, mediaType string, region Region) Request {
	req := Request{
		SystemID:  ref.SystemSourceID,
		MediaType: mediaType,
		Region:    region,
	}
	if ref.Kind == KindGame {
		req.ItemID = ref.SourceID
	}
	return req
}
