package database

import (
	"gorm.io/gorm"

	"github.com/retroludo/retrodex/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Console{},
		&models.Game{},
		&models.MediaCacheEntry{},
	)
}

// SeedData populates a starter console list on an empty catalog. Seeding is
// idempotent: existing slugs are left untouched.
func SeedData(db *gorm.DB) error {
	consoles := []models.Console{
		{Name: "Nintendo Entertainment System", Slug: "nes", Manufacturer: "Nintendo", ReleaseYear: 1983, Generation: 3},
		{Name: "Super Nintendo", Slug: "snes", Manufacturer: "Nintendo", ReleaseYear: 1990, Generation: 4},
		{Name: "Mega Drive", Slug: "megadrive", Manufacturer: "Sega", ReleaseYear: 1988, Generation: 4},
		{Name: "PlayStation", Slug: "playstation", Manufacturer: "Sony", ReleaseYear: 1994, Generation: 5},
	}

	for _, console := range consoles {
		if err := db.Where(models.Console{Slug: console.Slug}).
			Attrs(console).
			FirstOrCreate(&models.Console{}).Error; err != nil {
			return err
		}
	}

	return nil
}
