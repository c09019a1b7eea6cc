package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/retroludo/retrodex/internal/media"
	appValidator "github.com/retroludo/retrodex/pkg/validator"
)

// Config represents the runtime configuration for the Retrodex backend.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Media    MediaConfig    `mapstructure:"media"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver" validate:"oneof=sqlite postgres mysql"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT       JWTSettings    `mapstructure:"jwt"`
	Session   SessionConfig  `mapstructure:"session"`
	Bootstrap BootstrapAdmin `mapstructure:"bootstrap"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// SessionConfig configures session row lifetimes.
type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// BootstrapAdmin seeds an administrator account on startup when both fields
// are set. Leaving it empty skips seeding entirely.
type BootstrapAdmin struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// MediaConfig tunes the media URL cache and the upstream provider adapter.
type MediaConfig struct {
	Enabled        bool             `mapstructure:"enabled"`
	CacheTTL       time.Duration    `mapstructure:"cache_ttl"`
	PurgeGrace     time.Duration    `mapstructure:"purge_grace"`
	FetchTimeout   time.Duration    `mapstructure:"fetch_timeout"`
	RequestSpacing time.Duration    `mapstructure:"request_spacing"`
	Types          []string         `mapstructure:"types"`
	Regions        []string         `mapstructure:"regions"`
	Provider       ProviderSettings `mapstructure:"provider"`
}

// ProviderSettings carries the upstream media provider credentials.
type ProviderSettings struct {
	BaseURL     string `mapstructure:"base_url"`
	DevID       string `mapstructure:"dev_id"`
	DevPassword string `mapstructure:"dev_password"`
	Softname    string `mapstructure:"softname"`
	SSID        string `mapstructure:"ssid"`
	SSPassword  string `mapstructure:"sspassword"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("RETRODEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks structural rules plus the media priority lists, so malformed
// region codes fail at startup rather than on the first request.
func (c *Config) Validate() error {
	if err := appValidator.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if _, err := media.NewTagSet(c.Media.Types); err != nil {
		return fmt.Errorf("config: media.types: %w", err)
	}
	if len(c.Media.Regions) > 0 {
		if _, err := media.ParseRegions(c.Media.Regions); err != nil {
			return fmt.Errorf("config: media.regions: %w", err)
		}
	}
	if c.Media.RequestSpacing < 0 {
		return errors.New("config: media.request_spacing must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/retrodex.sqlite")

	v.SetDefault("auth.jwt.issuer", "retrodex")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")
	v.SetDefault("auth.session.ttl", "24h")

	v.SetDefault("media.enabled", true)
	v.SetDefault("media.cache_ttl", "720h")    // 30 days
	v.SetDefault("media.purge_grace", "168h")  // 7 days past expiry
	v.SetDefault("media.fetch_timeout", "10s")
	v.SetDefault("media.request_spacing", "1200ms")
	v.SetDefault("media.provider.base_url", "https://www.screenscraper.fr")
	v.SetDefault("media.provider.softname", "retrodex")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
