package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/retroludo/retrodex/internal/models"
)

var (
	// ErrGameNotFound indicates the requested game does not exist.
	ErrGameNotFound = errors.New("game service: game not found")
	// ErrGameSlugTaken indicates the slug is already used by another game.
	ErrGameSlugTaken = errors.New("game service: slug already in use")
)

// GameService manages CRUD operations for catalog games.
type GameService struct {
	db *gorm.DB
}

// NewGameService constructs a game service once a database handle is supplied.
func NewGameService(db *gorm.DB) (*GameService, error) {
	if db == nil {
		return nil, errors.New("game service: db is required")
	}
	return &GameService{db: db}, nil
}

// ListGamesOptions controls game filtering.
type ListGamesOptions struct {
	ConsoleID string
	Genre     string
	Search    string
	Page      int
	PerPage   int
}

// CreateGameInput captures the fields accepted when creating a game.
type CreateGameInput struct {
	ConsoleID   string
	Title       string
	Slug        string
	Genre       string
	Developer   string
	Publisher   string
	ReleaseYear int
	Players     int
	Rating      float32
	Synopsis    string
	SourceID    *int64
	Attributes  datatypes.JSON
}

// UpdateGameInput describes mutable game fields. Nil pointers mean no change.
type UpdateGameInput struct {
	Title       *string
	Genre       *string
	Developer   *string
	Publisher   *string
	ReleaseYear *int
	Players     *int
	Rating      *float32
	Synopsis    *string
	SourceID    *int64
	Attributes  datatypes.JSON
}

// List retrieves games matching the supplied options ordered by title.
func (s *GameService) List(ctx context.Context, opts ListGamesOptions) ([]models.Game, int64, error) {
	if s == nil {
		return nil, 0, errors.New("game service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Game{})
	if consoleID := strings.TrimSpace(opts.ConsoleID); consoleID != "" {
		query = query.Where("console_id = ?", consoleID)
	}
	if genre := strings.TrimSpace(opts.Genre); genre != "" {
		query = query.Where("genre = ?", genre)
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
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

	var games []models.Game
	if err := query.Order("LOWER(title)").Find(&games).Error; err != nil {
		return nil, 0, err
	}
	return games, total, nil
}

// Get retrieves a game by identifier or slug.
func (s *GameService) Get(ctx context.Context, idOrSlug string) (*models.Game, error) {
	if s == nil {
		return nil, errors.New("game service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return nil, errors.New("game service: id is required")
	}

	var game models.Game
	err := s.db.WithContext(ctx).First(&game, "id = ? OR slug = ?", idOrSlug, idOrSlug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// Create persists a new game under an existing console.
func (s *GameService) Create(ctx context.Context, input CreateGameInput) (*models.Game, error) {
	if s == nil {
		return nil, errors.New("game service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.New("game service: title is required")
	}
	consoleID := strings.TrimSpace(input.ConsoleID)
	if consoleID == "" {
		return nil, errors.New("game service: console id is required")
	}

	var console models.Console
	if err := s.db.WithContext(ctx).First(&console, "id = ?", consoleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConsoleNotFound
		}
		return nil, err
	}

	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = slugify(console.Slug + " " + title)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Game{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrGameSlugTaken
	}

	game := models.Game{
		ConsoleID:   console.ID,
		Title:       title,
		Slug:        slug,
		Genre:       strings.TrimSpace(input.Genre),
		Developer:   strings.TrimSpace(input.Developer),
		Publisher:   strings.TrimSpace(input.Publisher),
		ReleaseYear: input.ReleaseYear,
		Players:     input.Players,
		Rating:      input.Rating,
		Synopsis:    strings.TrimSpace(input.Synopsis),
		SourceID:    input.SourceID,
		Attributes:  input.Attributes,
	}

	if err := s.db.WithContext(ctx).Create(&game).Error; err != nil {
		return nil, err
	}
	return &game, nil
}

// Update applies the provided changes to an existing game.
func (s *GameService) Update(ctx context.Context, id string, input UpdateGameInput) (*models.Game, error) {
	if s == nil {
		return nil, errors.New("game service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	game, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, errors.New("game service: title is required")
		}
		game.Title = title
	}
	if input.Genre != nil {
		game.Genre = strings.TrimSpace(*input.Genre)
	}
	if input.Developer != nil {
		game.Developer = strings.TrimSpace(*input.Developer)
	}
	if input.Publisher != nil {
		game.Publisher = strings.TrimSpace(*input.Publisher)
	}
	if input.ReleaseYear != nil {
		game.ReleaseYear = *input.ReleaseYear
	}
	if input.Players != nil {
		game.Players = *input.Players
	}
	if input.Rating != nil {
		game.Rating = *input.Rating
	}
	if input.Synopsis != nil {
		game.Synopsis = strings.TrimSpace(*input.Synopsis)
	}
	if input.SourceID != nil {
		game.SourceID = input.SourceID
	}
	if input.Attributes != nil {
		game.Attributes = input.Attributes
	}

	if err := s.db.WithContext(ctx).Save(game).Error; err != nil {
		return nil, err
	}
	return game, nil
}

// Delete removes a game by identifier.
func (s *GameService) Delete(ctx context.Context, id string) error {
	if s == nil {
		return errors.New("game service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	game, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&models.Game{}, "id = ?", game.ID).Error
}
