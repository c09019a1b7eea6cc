package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/retroludo/retrodex/internal/services"
	appErrors "github.com/retroludo/retrodex/pkg/errors"
	"github.com/retroludo/retrodex/pkg/response"
)

// GameHandler exposes CRUD endpoints for catalog games.
type GameHandler struct {
	service  *services.GameService
	consoles *services.ConsoleService
}

func NewGameHandler(service *services.GameService, consoles *services.ConsoleService) (*GameHandler, error) {
	if service == nil || consoles == nil {
		return nil, errors.New("game handler: game and console services are required")
	}
	return &GameHandler{service: service, consoles: consoles}, nil
}

type createGameRequest struct {
	ConsoleID   string         `json:"console_id" validate:"required"`
	Title       string         `json:"title" validate:"required,max=255"`
	Slug        string         `json:"slug" validate:"max=255"`
	Genre       string         `json:"genre" validate:"max=128"`
	Developer   string         `json:"developer" validate:"max=128"`
	Publisher   string         `json:"publisher" validate:"max=128"`
	ReleaseYear int            `json:"release_year"`
	Players     int            `json:"players"`
	Rating      float32        `json:"rating"`
	Synopsis    string         `json:"synopsis"`
	SourceID    *int64         `json:"source_id"`
	Attributes  datatypes.JSON `json:"attributes"`
}

type updateGameRequest struct {
	Title       *string        `json:"title" validate:"omitempty,max=255"`
	Genre       *string        `json:"genre" validate:"omitempty,max=128"`
	Developer   *string        `json:"developer" validate:"omitempty,max=128"`
	Publisher   *string        `json:"publisher" validate:"omitempty,max=128"`
	ReleaseYear *int           `json:"release_year"`
	Players     *int           `json:"players"`
	Rating      *float32       `json:"rating"`
	Synopsis    *string        `json:"synopsis"`
	SourceID    *int64         `json:"source_id"`
	Attributes  datatypes.JSON `json:"attributes"`
}

// GET /api/games
func (h *GameHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 50)

	games, total, err := h.service.List(c.Request.Context(), services.ListGamesOptions{
		ConsoleID: c.Query("console_id"),
		Genre:     c.Query("genre"),
		Search:    c.Query("search"),
		Page:      page,
		PerPage:   perPage,
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, games, &response.Meta{Page: page, PerPage: perPage, Total: total})
}

// GET /api/games/:id (accepts an id or a slug)
func (h *GameHandler) Get(c *gin.Context) {
	game, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrGameNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}
	response.Success(c, http.StatusOK, game)
}

// GET /api/consoles/:id/games (accepts a console id or slug)
func (h *GameHandler) ListByConsole(c *gin.Context) {
	console, err := h.consoles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrConsoleNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 50)

	games, total, err := h.service.List(c.Request.Context(), services.ListGamesOptions{
		ConsoleID: console.ID,
		Genre:     c.Query("genre"),
		Search:    c.Query("search"),
		Page:      page,
		PerPage:   perPage,
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, games, &response.Meta{Page: page, PerPage: perPage, Total: total})
}

// POST /api/games
func (h *GameHandler) Create(c *gin.Context) {
	var body createGameRequest
	if !bindAndValidate(c, &body) {
		return
	}

	game, err := h.service.Create(c.Request.Context(), services.CreateGameInput{
		ConsoleID:   body.ConsoleID,
		Title:       body.Title,
		Slug:        body.Slug,
		Genre:       body.Genre,
		Developer:   body.Developer,
		Publisher:   body.Publisher,
		ReleaseYear: body.ReleaseYear,
		Players:     body.Players,
		Rating:      body.Rating,
		Synopsis:    body.Synopsis,
		SourceID:    body.SourceID,
		Attributes:  body.Attributes,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConsoleNotFound):
			response.Error(c, appErrors.NewBadRequest("console does not exist"))
		case errors.Is(err, services.ErrGameSlugTaken):
			response.Error(c, appErrors.ErrConflict)
		default:
			response.Error(c, appErrors.ErrInternalServer)
		}
		return
	}

	response.Success(c, http.StatusCreated, game)
}

// PUT /api/games/:id
func (h *GameHandler) Update(c *gin.Context) {
	var body updateGameRequest
	if !bindAndValidate(c, &body) {
		return
	}

	game, err := h.service.Update(c.Request.Context(), c.Param("id"), services.UpdateGameInput{
		Title:       body.Title,
		Genre:       body.Genre,
		Developer:   body.Developer,
		Publisher:   body.Publisher,
		ReleaseYear: body.ReleaseYear,
		Players:     body.Players,
		Rating:      body.Rating,
		Synopsis:    body.Synopsis,
		SourceID:    body.SourceID,
		Attributes:  body.Attributes,
	})
	if err != nil {
		if errors.Is(err, services.ErrGameNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, game)
}

// DELETE /api/games/:id
func (h *GameHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrGameNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
