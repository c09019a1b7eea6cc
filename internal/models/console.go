package models

// Console is a video-game system in the catalog.
//
// SourceID holds the console's identifier in the upstream media provider's
// database. It is nullable because manually created consoles may not be linked
// upstream yet; media resolution is only possible once it is set.
type Console struct {
	BaseModel

	Name         string `gorm:"size:128;not null" json:"name"`
	Slug         string `gorm:"uniqueIndex;size:128;not null" json:"slug"`
	Manufacturer string `gorm:"size:128" json:"manufacturer"`
	ReleaseYear  int    `json:"release_year,omitempty"`
	Generation   int    `json:"generation,omitempty"`
	Summary      string `gorm:"type:text" json:"summary,omitempty"`
	SourceID     *int64 `gorm:"index" json:"source_id,omitempty"`

	Games []Game `gorm:"foreignKey:ConsoleID" json:"-"`
}
