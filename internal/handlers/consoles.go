package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/retroludo/retrodex/internal/services"
	appErrors "github.com/retroludo/retrodex/pkg/errors"
	"github.com/retroludo/retrodex/pkg/response"
)

// ConsoleHandler exposes CRUD endpoints for catalog consoles.
type ConsoleHandler struct {
	service *services.ConsoleService
}

func NewConsoleHandler(service *services.ConsoleService) (*ConsoleHandler, error) {
	if service == nil {
		return nil, errors.New("console handler: service is required")
	}
	return &ConsoleHandler{service: service}, nil
}

type createConsoleRequest struct {
	Name         string `json:"name" validate:"required,max=128"`
	Slug         string `json:"slug" validate:"max=128"`
	Manufacturer string `json:"manufacturer" validate:"max=128"`
	ReleaseYear  int    `json:"release_year"`
	Generation   int    `json:"generation"`
	Summary      string `json:"summary"`
	SourceID     *int64 `json:"source_id"`
}

type updateConsoleRequest struct {
	Name         *string `json:"name" validate:"omitempty,max=128"`
	Manufacturer *string `json:"manufacturer" validate:"omitempty,max=128"`
	ReleaseYear  *int    `json:"release_year"`
	Generation   *int    `json:"generation"`
	Summary      *string `json:"summary"`
	SourceID     *int64  `json:"source_id"`
}

// GET /api/consoles
func (h *ConsoleHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 50)

	consoles, total, err := h.service.List(c.Request.Context(), services.ListConsolesOptions{
		Manufacturer: c.Query("manufacturer"),
		Search:       c.Query("search"),
		Page:         page,
		PerPage:      perPage,
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, consoles, &response.Meta{Page: page, PerPage: perPage, Total: total})
}

// GET /api/consoles/:id (accepts an id or a slug)
func (h *ConsoleHandler) Get(c *gin.Context) {
	console, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrConsoleNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}
	response.Success(c, http.StatusOK, console)
}

// POST /api/consoles
func (h *ConsoleHandler) Create(c *gin.Context) {
	var body createConsoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	console, err := h.service.Create(c.Request.Context(), services.CreateConsoleInput{
		Name:         body.Name,
		Slug:         body.Slug,
		Manufacturer: body.Manufacturer,
		ReleaseYear:  body.ReleaseYear,
		Generation:   body.Generation,
		Summary:      body.Summary,
		SourceID:     body.SourceID,
	})
	if err != nil {
		if errors.Is(err, services.ErrConsoleSlugTaken) {
			response.Error(c, appErrors.ErrConflict)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusCreated, console)
}

// PUT /api/consoles/:id
func (h *ConsoleHandler) Update(c *gin.Context) {
	var body updateConsoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	console, err := h.service.Update(c.Request.Context(), c.Param("id"), services.UpdateConsoleInput{
		Name:         body.Name,
		Manufacturer: body.Manufacturer,
		ReleaseYear:  body.ReleaseYear,
		Generation:   body.Generation,
		Summary:      body.Summary,
		SourceID:     body.SourceID,
	})
	if err != nil {
		if errors.Is(err, services.ErrConsoleNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, console)
}

// DELETE /api/consoles/:id
func (h *ConsoleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrConsoleNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
