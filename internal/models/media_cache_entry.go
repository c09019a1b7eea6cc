package models

import "time"

// MediaCacheEntry caches the outcome of one upstream media probe for a single
// (entity, media type, region) slot.
//
// An empty URL is a deliberate negative result: the slot is occupied so the
// provider is not re-queried before ExpiresAt, but it never satisfies a
// resolution. IsValid false marks a known-bad row that is likewise skipped.
type MediaCacheEntry struct {
	EntityKind string `gorm:"primaryKey;size:16"`
	EntityID   string `gorm:"primaryKey;size:64"`
	MediaType  string `gorm:"primaryKey;size:64"`
	Region     string `gorm:"primaryKey;size:8"`

	URL       string `gorm:"size:512"`
	SourceID  *int64
	IsValid   bool      `gorm:"not null;default:false"`
	CachedAt  time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
}

// TableName keeps the table name stable across gorm naming strategy changes.
func (MediaCacheEntry) TableName() string {
	return "media_cache_entries"
}

// Usable reports whether the entry is a servable positive result at now.
func (e *MediaCacheEntry) Usable(now time.Time) bool {
	return e != nil && e.IsValid && e.URL != "" && now.Before(e.ExpiresAt)
}
