package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/retroludo/retrodex/internal/models"
)

var (
	// ErrConsoleNotFound indicates the requested console does not exist.
	ErrConsoleNotFound = errors.New("console service: console not found")
	// ErrConsoleSlugTaken indicates the slug is already used by another console.
	ErrConsoleSlugTaken = errors.New("console service: slug already in use")
)

// ConsoleService manages CRUD operations for catalog consoles.
type ConsoleService struct {
	db *gorm.DB
}

// NewConsoleService constructs a console service once a database handle is supplied.
func NewConsoleService(db *gorm.DB) (*ConsoleService, error) {
	if db == nil {
		return nil, errors.New("console service: db is required")
	}
	return &ConsoleService{db: db}, nil
}

// ListConsolesOptions controls console filtering.
type ListConsolesOptions struct {
	Manufacturer string
	Search       string
	Page         int
	PerPage      int
}

// CreateConsoleInput captures the fields accepted when creating a console.
type CreateConsoleInput struct {
	Name         string
	Slug         string
	Manufacturer string
	ReleaseYear  int
	Generation   int
	Summary      string
	SourceID     *int64
}

// UpdateConsoleInput describes mutable console fields. Nil pointers mean no change.
type UpdateConsoleInput struct {
	Name         *string
	Manufacturer *string
	ReleaseYear  *int
	Generation   *int
	Summary      *string
	SourceID     *int64
}

// List retrieves consoles matching the supplied options, newest generation last.
func (s *ConsoleService) List(ctx context.Context, opts ListConsolesOptions) ([]models.Console, int64, error) {
	if s == nil {
		return nil, 0, errors.New("console service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Console{})
	if manufacturer := strings.TrimSpace(opts.Manufacturer); manufacturer != "" {
		query = query.Where("manufacturer = ?", manufacturer)
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if opts.PerPage > 0 {
		page := opts.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * opts.PerPage).Limit(opts.PerPage)
	}

	var consoles []models.Console
	if err := query.Order("generation, LOWER(name)").Find(&consoles).Error; err != nil {
		return nil, 0, err
	}
	return consoles, total, nil
}

// Get retrieves a console by identifier or slug.
func (s *ConsoleService) Get(ctx context.Context, idOrSlug string) (*models.Console, error) {
	if s == nil {
		return nil, errors.New("console service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return nil, errors.New("console service: id is required")
	}

	var console models.Console
	err := s.db.WithContext(ctx).First(&console, "id = ? OR slug = ?", idOrSlug, idOrSlug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConsoleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &console, nil
}

// Create persists a new console.
func (s *ConsoleService) Create(ctx context.Context, input CreateConsoleInput) (*models.Console, error) {
	if s == nil {
		return nil, errors.New("console service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("console service: name is required")
	}

	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = slugify(name)
	}

	console := models.Console{
		Name:         name,
		Slug:         slug,
		Manufacturer: strings.TrimSpace(input.Manufacturer),
		ReleaseYear:  input.ReleaseYear,
		Generation:   input.Generation,
		Summary:      strings.TrimSpace(input.Summary),
		SourceID:     input.SourceID,
	}

	if err := s.ensureSlugFree(ctx, slug, ""); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(&console).Error; err != nil {
		return nil, err
	}
	return &console, nil
}

// Update applies the provided changes to an existing console.
func (s *ConsoleService) Update(ctx context.Context, id string, input UpdateConsoleInput) (*models.Console, error) {
	if s == nil {
		return nil, errors.New("console service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	console, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errors.New("console service: name is required")
		}
		console.Name = name
	}
	if input.Manufacturer != nil {
		console.Manufacturer = strings.TrimSpace(*input.Manufacturer)
	}
	if input.ReleaseYear != nil {
		console.ReleaseYear = *input.ReleaseYear
	}
	if input.Generation != nil {
		console.Generation = *input.Generation
	}
	if input.Summary != nil {
		console.Summary = strings.TrimSpace(*input.Summary)
	}
	if input.SourceID != nil {
		console.SourceID = input.SourceID
	}

	if err := s.db.WithContext(ctx).Save(console).Error; err != nil {
		return nil, err
	}
	return console, nil
}

// Delete removes a console and its games.
func (s *ConsoleService) Delete(ctx context.Context, id string) error {
	if s == nil {
		return errors.New("console service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	console, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("console_id = ?", console.ID).Delete(&models.Game{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Console{}, "id = ?", console.ID).Error
	})
}

func (s *ConsoleService) ensureSlugFree(ctx context.Context, slug, excludeID string) error {
	query := s.db.WithContext(ctx).Model(&models.Console{}).Where("slug = ?", slug)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrConsoleSlugTaken
	}
	return nil
}
