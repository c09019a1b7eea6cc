package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/retroludo/retrodex/internal/api"
	"github.com/retroludo/retrodex/internal/app"
	"github.com/retroludo/retrodex/internal/app/maintenance"
	iauth "github.com/retroludo/retrodex/internal/auth"
	"github.com/retroludo/retrodex/internal/database"
	"github.com/retroludo/retrodex/internal/media"
	"github.com/retroludo/retrodex/internal/services"
	"github.com/retroludo/retrodex/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("retrodex-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if err := ensureSecretsPresent(cfg); err != nil {
		return err
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         cfg.Auth.JWT.Secret,
		Issuer:         cfg.Auth.JWT.Issuer,
		AccessTokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	sessionSvc, err := services.NewSessionService(db, services.WithSessionTTL(cfg.Auth.Session.TTL))
	if err != nil {
		return fmt.Errorf("initialise session service: %w", err)
	}

	if err := seedAdminAccount(ctx, db, cfg); err != nil {
		return err
	}

	deps := api.Deps{DB: db, JWT: jwtService}

	var mediaStore media.Store
	if cfg.Media.Enabled {
		store, resolver, buildErr := buildMediaStack(db, cfg)
		if buildErr != nil {
			return buildErr
		}
		mediaStore = store
		deps.Store = store
		deps.Resolver = resolver
		deps.MediaTypes = cfg.Media.Types
		if len(cfg.Media.Regions) > 0 {
			regions, parseErr := media.ParseRegions(cfg.Media.Regions)
			if parseErr != nil {
				return fmt.Errorf("media regions: %w", parseErr)
			}
			deps.MediaRegions = regions
		}
	} else {
		log.Info("media resolution disabled by configuration")
	}

	cleaner := maintenance.NewCleaner(mediaStore, sessionSvc,
		maintenance.WithPurgeGrace(cfg.Media.PurgeGrace))
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	router, err := api.NewRouter(deps)
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func ensureSecretsPresent(cfg *app.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	if cfg.Media.Enabled {
		if strings.TrimSpace(cfg.Media.Provider.DevID) == "" ||
			strings.TrimSpace(cfg.Media.Provider.DevPassword) == "" {
			return errors.New("media.provider.dev_id and media.provider.dev_password must be configured when media is enabled")
		}
	}

	return nil
}

func seedAdminAccount(ctx context.Context, db *gorm.DB, cfg *app.Config) error {
	users, err := services.NewUserService(db)
	if err != nil {
		return fmt.Errorf("initialise user service: %w", err)
	}
	if err := users.EnsureAdmin(ctx, cfg.Auth.Bootstrap.Username, cfg.Auth.Bootstrap.Password); err != nil {
		return fmt.Errorf("seed admin account: %w", err)
	}
	return nil
}

func buildMediaStack(db *gorm.DB, cfg *app.Config) (media.Store, *media.Resolver, error) {
	store, err := media.NewDatabaseStore(db)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise media store: %w", err)
	}

	pacer := media.NewPacer(cfg.Media.RequestSpacing)
	client, err := media.NewClient(media.ProviderConfig{
		BaseURL:     cfg.Media.Provider.BaseURL,
		DevID:       cfg.Media.Provider.DevID,
		DevPassword: cfg.Media.Provider.DevPassword,
		Softname:    cfg.Media.Provider.Softname,
		SSID:        cfg.Media.Provider.SSID,
		SSPassword:  cfg.Media.Provider.SSPassword,
		Timeout:     cfg.Media.FetchTimeout,
	}, pacer)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise media provider: %w", err)
	}

	tags, err := media.NewTagSet(cfg.Media.Types)
	if err != nil {
		return nil, nil, fmt.Errorf("media types: %w", err)
	}

	resolver, err := media.NewResolver(store, client, tags, cfg.Media.CacheTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise media resolver: %w", err)
	}

	return store, resolver, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = cfg.Database.Postgres.Password
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = cfg.Database.MySQL.Password
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("retrieve database handle for close", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("close database", zap.Error(err))
	}
}
