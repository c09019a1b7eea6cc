package media

import (
	"context"
	"time"

	"github.com/retroludo/retrodex/internal/models"
)

// Store persists media cache entries keyed by (kind, entity, type, region).
//
// Lookup returns unexpired entries only; negative entries (empty URL or
// IsValid false) are still returned so callers can tell an occupied slot from
// an empty one. Store failures are hard errors with no local recovery.
type Store interface {
	// Lookup returns the entry for key, or nil when no unexpired entry exists.
	Lookup(ctx context.Context, key EntryKey) (*models.MediaCacheEntry, error)

	// Upsert atomically creates or replaces the entry for key. CachedAt is set
	// to now, ExpiresAt to now+ttl, and IsValid follows url being non-empty.
	Upsert(ctx context.Context, key EntryKey, url string, sourceID int64, ttl time.Duration) error

	// Invalidate marks every entry belonging to the entity as invalid and
	// expired, freeing the slots for refetch. Used when upstream identifiers
	// change.
	Invalidate(ctx context.Context, kind Kind, entityID string) error

	// PurgeExpired deletes entries expired by more than olderThan and returns
	// the number of rows removed.
	PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}
