package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/retroludo/retrodex/internal/auth"
	"github.com/retroludo/retrodex/internal/handlers"
	"github.com/retroludo/retrodex/internal/media"
	"github.com/retroludo/retrodex/internal/middleware"
	"github.com/retroludo/retrodex/internal/models"
	"github.com/retroludo/retrodex/internal/services"
)

// Deps bundles everything the router needs. Media fields may be nil when
// media resolution is disabled; the media routes then answer 503.
type Deps struct {
	DB       *gorm.DB
	JWT      *iauth.JWTService
	Resolver *media.Resolver
	Store    media.Store

	MediaTypes   []string
	MediaRegions []media.Region
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}

	consoleSvc, err := services.NewConsoleService(deps.DB)
	if err != nil {
		return nil, err
	}
	gameSvc, err := services.NewGameService(deps.DB)
	if err != nil {
		return nil, err
	}
	userSvc, err := services.NewUserService(deps.DB)
	if err != nil {
		return nil, err
	}
	sessionSvc, err := services.NewSessionService(deps.DB)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.NoRoute(middleware.NotFoundHandler)

	r.GET("/health", handlers.NewHealthHandler(deps.DB).Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler, err := handlers.NewAuthHandler(userSvc, sessionSvc, deps.JWT)
	if err != nil {
		return nil, err
	}
	consoleHandler, err := handlers.NewConsoleHandler(consoleSvc)
	if err != nil {
		return nil, err
	}
	gameHandler, err := handlers.NewGameHandler(gameSvc, consoleSvc)
	if err != nil {
		return nil, err
	}

	// Public catalog reads
	r.GET("/api/consoles", consoleHandler.List)
	r.GET("/api/consoles/:id", consoleHandler.Get)
	r.GET("/api/consoles/:id/games", gameHandler.ListByConsole)
	r.GET("/api/games", gameHandler.List)
	r.GET("/api/games/:id", gameHandler.Get)

	// Public auth routes
	r.POST("/api/auth/login", authHandler.Login)

	requireAuth := middleware.Auth(deps.JWT)

	// Authenticated auth routes
	r.GET("/api/auth/me", requireAuth, authHandler.Me)
	r.POST("/api/auth/logout", requireAuth, authHandler.Logout)

	// Editorial writes
	requireEditor := middleware.RequireRole(models.RoleEditor)
	edit := r.Group("/api", requireAuth, requireEditor)
	{
		edit.POST("/consoles", consoleHandler.Create)
		edit.PUT("/consoles/:id", consoleHandler.Update)
		edit.DELETE("/consoles/:id", consoleHandler.Delete)
		edit.POST("/games", gameHandler.Create)
		edit.PUT("/games/:id", gameHandler.Update)
		edit.DELETE("/games/:id", gameHandler.Delete)
	}

	if deps.Resolver != nil && deps.Store != nil {
		mediaHandler, err := handlers.NewMediaHandler(handlers.MediaHandlerConfig{
			Consoles:       consoleSvc,
			Games:          gameSvc,
			Resolver:       deps.Resolver,
			Store:          deps.Store,
			DefaultTypes:   deps.MediaTypes,
			DefaultRegions: deps.MediaRegions,
		})
		if err != nil {
			return nil, err
		}

		r.GET("/api/consoles/:id/media", mediaHandler.ConsoleMedia)
		r.GET("/api/games/:id/media", mediaHandler.GameMedia)

		admin := r.Group("/api/admin", requireAuth, middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/media/invalidate", mediaHandler.Invalidate)
			admin.POST("/media/purge", mediaHandler.Purge)
		}
	} else {
		r.GET("/api/consoles/:id/media", handlers.MediaDisabled)
		r.GET("/api/games/:id/media", handlers.MediaDisabled)
	}

	return r, nil
}
