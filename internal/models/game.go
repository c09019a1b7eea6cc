package models

import "gorm.io/datatypes"

// Game is a single catalog entry belonging to a console.
//
// SourceID mirrors Console.SourceID: the game's identifier in the upstream
// media provider's database, required before any media can be fetched for it.
// Attributes carries loosely structured editorial extras (links, alternate
// titles, rom notes) that do not warrant their own columns.
type Game struct {
	BaseModel

	ConsoleID   string         `gorm:"index;not null" json:"console_id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Slug        string         `gorm:"uniqueIndex;size:255;not null" json:"slug"`
	Genre       string         `gorm:"size:128" json:"genre,omitempty"`
	Developer   string         `gorm:"size:128" json:"developer,omitempty"`
	Publisher   string         `gorm:"size:128" json:"publisher,omitempty"`
	ReleaseYear int            `json:"release_year,omitempty"`
	Players     int            `json:"players,omitempty"`
	Rating      float32        `json:"rating,omitempty"`
	Synopsis    string         `gorm:"type:text" json:"synopsis,omitempty"`
	SourceID    *int64         `gorm:"index" json:"source_id,omitempty"`
	Attributes  datatypes.JSON `json:"attributes,omitempty"`

	Console *Console `gorm:"foreignKey:ConsoleID" json:"-"`
}
