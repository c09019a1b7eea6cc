package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/retroludo/retrodex/internal/media"
	"github.com/retroludo/retrodex/internal/services"
	appErrors "github.com/retroludo/retrodex/pkg/errors"
	"github.com/retroludo/retrodex/pkg/metrics"
	"github.com/retroludo/retrodex/pkg/response"
)

// DefaultRegionPriority is the region preference applied when a request does
// not name its own. The sentinel comes last so region-independent media still
// resolves for callers that never think about regions.
var DefaultRegionPriority = []media.Region{
	media.RegionEurope, media.RegionUSA, media.RegionWorld, media.RegionJapan, media.RegionNone,
}

// MediaHandler resolves media URLs for catalog entities and exposes the admin
// cache maintenance endpoints.
type MediaHandler struct {
	consoles *services.ConsoleService
	games    *services.GameService
	resolver *media.Resolver
	store    media.Store

	defaultTypes   []string
	defaultRegions []media.Region
}

// MediaHandlerConfig bundles the collaborators of a MediaHandler.
// DefaultTypes and DefaultRegions replace the built-in priority lists when set.
type MediaHandlerConfig struct {
	Consoles *services.ConsoleService
	Games    *services.GameService
	Resolver *media.Resolver
	Store    media.Store

	DefaultTypes   []string
	DefaultRegions []media.Region
}

func NewMediaHandler(cfg MediaHandlerConfig) (*MediaHandler, error) {
	if cfg.Consoles == nil || cfg.Games == nil {
		return nil, errors.New("media handler: console and game services are required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("media handler: resolver is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("media handler: store is required")
	}

	types := cfg.DefaultTypes
	if len(types) == 0 {
		types = media.DefaultMediaTags
	}
	regions := cfg.DefaultRegions
	if len(regions) == 0 {
		regions = DefaultRegionPriority
	}

	return &MediaHandler{
		consoles:       cfg.Consoles,
		games:          cfg.Games,
		resolver:       cfg.Resolver,
		store:          cfg.Store,
		defaultTypes:   types,
		defaultRegions: regions,
	}, nil
}

// MediaDisabled answers media routes when no provider is configured.
func MediaDisabled(c *gin.Context) {
	response.Error(c, appErrors.New("MEDIA_DISABLED", "media resolution is not configured", http.StatusServiceUnavailable))
}

// GET /api/consoles/:id/media
func (h *MediaHandler) ConsoleMedia(c *gin.Context) {
	console, err := h.consoles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrConsoleNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	ref := media.EntityRef{Kind: media.KindConsole, EntityID: console.ID}
	if console.SourceID != nil {
		ref.SourceID = *console.SourceID
		ref.SystemSourceID = *console.SourceID
	}

	h.resolve(c, ref)
}

// GET /api/games/:id/media
func (h *MediaHandler) GameMedia(c *gin.Context) {
	game, err := h.games.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrGameNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	ref := media.EntityRef{Kind: media.KindGame, EntityID: game.ID}
	if game.SourceID != nil {
		ref.SourceID = *game.SourceID
	}

	// The provider needs the owning console's upstream id for game lookups.
	// An orphaned game just resolves without one; a store failure surfaces.
	console, err := h.consoles.Get(c.Request.Context(), game.ConsoleID)
	switch {
	case err == nil:
		if console.SourceID != nil {
			ref.SystemSourceID = *console.SourceID
		}
	case errors.Is(err, services.ErrConsoleNotFound):
	default:
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	h.resolve(c, ref)
}

// resolve parses the shared query parameters, runs the resolver and writes the
// outcome. Absence is a success with a null url, never a 404.
func (h *MediaHandler) resolve(c *gin.Context, ref media.EntityRef) {
	types := parseListQuery(c, "types")
	if len(types) == 0 {
		types = h.defaultTypes
	}

	regions := h.defaultRegions
	if codes := parseListQuery(c, "regions"); len(codes) != 0 {
		parsed, err := media.ParseRegions(codes)
		if err != nil {
			response.Error(c, appErrors.NewBadRequest(err.Error()))
			return
		}
		regions = parsed
	}

	opts := media.ResolveOptions{CacheOnly: parseBoolQuery(c, "cache_only")}

	url, err := h.resolver.Resolve(c.Request.Context(), ref, types, regions, opts)
	if err != nil {
		if c.Request.Context().Err() != nil {
			// Client went away; no response will be read.
			c.Abort()
			return
		}
		var inputErr *media.InputError
		if errors.As(err, &inputErr) {
			response.Error(c, appErrors.NewBadRequest(inputErr.Error()))
			return
		}
		// Anything else is a store failure; never echo it to the client.
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	payload := gin.H{"url": nil}
	if url != "" {
		payload["url"] = url
	}
	response.Success(c, http.StatusOK, payload)
}

type invalidateMediaRequest struct {
	Kind     string `json:"kind" validate:"required,oneof=game console"`
	EntityID string `json:"entity_id" validate:"required"`
}

// POST /api/admin/media/invalidate
//
// Marks every cached entry for the entity invalid so the next resolution
// refetches. Used after an entity's upstream identifiers change.
func (h *MediaHandler) Invalidate(c *gin.Context) {
	var body invalidateMediaRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.store.Invalidate(c.Request.Context(), media.Kind(body.Kind), body.EntityID); err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"invalidated": true})
}

type purgeMediaRequest struct {
	// OlderThan is a grace window (Go duration string) counted past expiry;
	// empty purges everything already expired.
	OlderThan string `json:"older_than"`
}

// POST /api/admin/media/purge
func (h *MediaHandler) Purge(c *gin.Context) {
	var body purgeMediaRequest
	if !bindAndValidate(c, &body) {
		return
	}

	var olderThan time.Duration
	if body.OlderThan != "" {
		parsed, err := time.ParseDuration(body.OlderThan)
		if err != nil || parsed < 0 {
			response.Error(c, appErrors.NewBadRequest("older_than must be a non-negative duration"))
			return
		}
		olderThan = parsed
	}

	removed, err := h.store.PurgeExpired(c.Request.Context(), olderThan)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	metrics.MediaCachePurged.Add(float64(removed))

	response.Success(c, http.StatusOK, gin.H{"purged": removed})
}
