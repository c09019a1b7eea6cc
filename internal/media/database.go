package media

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/retroludo/retrodex/internal/models"
)

// DatabaseStore implements Store on the primary SQL database.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// DatabaseStoreOption customises a DatabaseStore.
type DatabaseStoreOption func(*DatabaseStore)

// WithClock overrides the store clock, primarily for expiry tests.
func WithClock(now func() time.Time) DatabaseStoreOption {
	return func(s *DatabaseStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDatabaseStore constructs a database-backed media cache store.
func NewDatabaseStore(db *gorm.DB, opts ...DatabaseStoreOption) (*DatabaseStore, error) {
	if db == nil {
		return nil, errors.New("media store: db is required")
	}

	store := &DatabaseStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Lookup returns the unexpired entry for key, or nil on miss.
func (s *DatabaseStore) Lookup(ctx context.Context, key EntryKey) (*models.MediaCacheEntry, error) {
	if s == nil {
		return nil, errors.New("media store: store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var entry models.MediaCacheEntry
	err := s.db.WithContext(ctx).Take(&entry,
		"entity_kind = ? AND entity_id = ? AND media_type = ? AND region = ?",
		string(key.Kind), key.EntityID, key.MediaType, string(key.Region)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Expired rows stay in place until maintenance purges them; lookups treat
	// them as absent.
	if !s.now().Before(entry.ExpiresAt) {
		return nil, nil
	}

	return &entry, nil
}

// Upsert creates or replaces the entry for key via a native conflict clause so
// concurrent writers racing on the same key settle on last-writer-wins.
func (s *DatabaseStore) Upsert(ctx context.Context, key EntryKey, url string, sourceID int64, ttl time.Duration) error {
	if s == nil {
		return errors.New("media store: store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now()
	entry := models.MediaCacheEntry{
		EntityKind: string(key.Kind),
		EntityID:   key.EntityID,
		MediaType:  key.MediaType,
		Region:     string(key.Region),
		URL:        url,
		IsValid:    url != "",
		CachedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}
	if sourceID > 0 {
		entry.SourceID = &sourceID
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "entity_kind"},
				{Name: "entity_id"},
				{Name: "media_type"},
				{Name: "region"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"url", "source_id", "is_valid", "cached_at", "expires_at",
			}),
		}).Create(&entry).Error
}

// Invalidate flags every entry for the entity as invalid and expires it, so
// stale URLs stop being served immediately and the slots free for refetching.
func (s *DatabaseStore) Invalidate(ctx context.Context, kind Kind, entityID string) error {
	if s == nil {
		return errors.New("media store: store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return s.db.WithContext(ctx).
		Model(&models.MediaCacheEntry{}).
		Where("entity_kind = ? AND entity_id = ?", string(kind), entityID).
		Updates(map[string]interface{}{
			"is_valid":   false,
			"expires_at": s.now(),
		}).Error
}

// PurgeExpired removes entries whose expiry lies further in the past than the
// grace duration.
func (s *DatabaseStore) PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, errors.New("media store: store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if olderThan < 0 {
		olderThan = 0
	}

	cutoff := s.now().Add(-olderThan)
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&models.MediaCacheEntry{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
