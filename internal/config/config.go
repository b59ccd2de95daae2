package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Normalize NormalizeConfig `yaml:"normalize" mapstructure:"normalize"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Rename    RenameConfig    `yaml:"rename" mapstructure:"rename"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// OverpassConfig configures parcel acquisition.
type OverpassConfig struct {
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	BBox        string `yaml:"bbox" mapstructure:"bbox"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// Cache is "file" (CachePath), "store" (the run database) or "none".
	Cache             string  `yaml:"cache" mapstructure:"cache"`
	CachePath         string  `yaml:"cache_path" mapstructure:"cache_path"`
	RetryAttempts     int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryInitialMs    int     `yaml:"retry_initial_ms" mapstructure:"retry_initial_ms"`
	RetryMaxMs        int     `yaml:"retry_max_ms" mapstructure:"retry_max_ms"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	ParcelsPath       string  `yaml:"parcels_path" mapstructure:"parcels_path"`
}

// ScoringConfig configures the scoring engine and dispatcher.
type ScoringConfig struct {
	WalkingMinutes  float64 `yaml:"walking_minutes" mapstructure:"walking_minutes"`
	MetersPerMinute float64 `yaml:"meters_per_minute" mapstructure:"meters_per_minute"`
	// Workers of 0 leaves one CPU free.
	Workers    int    `yaml:"workers" mapstructure:"workers"`
	SchemePath string `yaml:"scheme_path" mapstructure:"scheme_path"`
	ZoneKey    string `yaml:"zone_key" mapstructure:"zone_key"`
	OutputPath string `yaml:"output_path" mapstructure:"output_path"`
}

// ReferenceConfig locates the normalized reference zones.
type ReferenceConfig struct {
	Path           string   `yaml:"path" mapstructure:"path"`
	RequiredFields []string `yaml:"required_fields" mapstructure:"required_fields"`
}

// NormalizeConfig configures indicator normalization.
type NormalizeConfig struct {
	Method  string   `yaml:"method" mapstructure:"method"`
	QLow    float64  `yaml:"q_low" mapstructure:"q_low"`
	QHigh   float64  `yaml:"q_high" mapstructure:"q_high"`
	Prefix  string   `yaml:"prefix" mapstructure:"prefix"`
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`
}

// EnrichConfig configures tabular merges.
type EnrichConfig struct {
	JoinKeys []string `yaml:"join_keys" mapstructure:"join_keys"`
	// Encoding is an HTML charset label; empty means UTF-8.
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// RenameConfig maps and drops zone properties. Fields are "old=new" pairs;
// they are not a map because viper lowercases map keys.
type RenameConfig struct {
	Fields []string `yaml:"fields" mapstructure:"fields"`
	Drop   []string `yaml:"drop" mapstructure:"drop"`
}

// Mapping parses Fields into old→new names.
func (r RenameConfig) Mapping() (map[string]string, error) {
	m := make(map[string]string, len(r.Fields))
	for _, pair := range r.Fields {
		from, to, ok := strings.Cut(pair, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, eris.Errorf("config: rename field %q is not old=new", pair)
		}
		m[from] = to
	}
	return m, nil
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the read-only API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Load reads configuration from .env, config.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LANDSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("overpass.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.bbox", "55.5,-4.8,56.0,-2.8")
	v.SetDefault("overpass.timeout_secs", 300)
	v.SetDefault("overpass.cache", "file")
	v.SetDefault("overpass.cache_path", "00-data/empty-lands-raw.json")
	v.SetDefault("overpass.retry_attempts", 3)
	v.SetDefault("overpass.retry_initial_ms", 2000)
	v.SetDefault("overpass.retry_max_ms", 60000)
	v.SetDefault("overpass.requests_per_second", 0.5)
	v.SetDefault("overpass.parcels_path", "00-data/empty-lands.geojson")
	v.SetDefault("scoring.walking_minutes", 15)
	v.SetDefault("scoring.meters_per_minute", 80)
	v.SetDefault("scoring.workers", 0)
	v.SetDefault("scoring.zone_key", "DataZone")
	v.SetDefault("scoring.output_path", "00-data/geojson/scored-empty-lands.geojson")
	v.SetDefault("reference.path", "00-data/geojson/datazones2011_data_normalized.geojson")
	v.SetDefault("reference.required_fields", []string{"DataZone"})
	v.SetDefault("normalize.method", "robust")
	v.SetDefault("normalize.q_low", 0.1)
	v.SetDefault("normalize.q_high", 0.9)
	v.SetDefault("normalize.prefix", "norm")
	v.SetDefault("normalize.exclude", []string{"id", "area", "DataZone", "Name", "CouncilArea"})
	v.SetDefault("enrich.join_keys", []string{"2011Zones", "CouncilArea"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "landscore.db")
	v.SetDefault("server.port", 8080)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate reports every invalid value needed by mode, which is a command
// name such as "score" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "fetch":
		errs = append(errs, c.validateOverpass()...)
	case "score":
		errs = append(errs, c.validateOverpass()...)
		errs = append(errs, c.validateScoring()...)
	case "normalize":
		switch c.Normalize.Method {
		case "minmax", "robust", "zscore", "quantile":
		default:
			errs = append(errs, fmt.Sprintf("normalize.method %q is not one of minmax, robust, zscore, quantile", c.Normalize.Method))
		}
		if c.Normalize.QLow < 0 || c.Normalize.QHigh > 1 || c.Normalize.QLow > c.Normalize.QHigh {
			errs = append(errs, "normalize.q_low and normalize.q_high must satisfy 0 <= q_low <= q_high <= 1")
		}
	case "merge":
		if len(c.Enrich.JoinKeys) == 0 {
			errs = append(errs, "enrich.join_keys is required")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		errs = append(errs, c.validateStore()...)
	case "rename":
		if _, err := c.Rename.Mapping(); err != nil {
			errs = append(errs, err.Error())
		}
	case "assign", "average", "area", "stats":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateOverpass() []string {
	var errs []string
	if c.Overpass.Endpoint == "" {
		errs = append(errs, "overpass.endpoint is required")
	}
	if c.Overpass.TimeoutSecs <= 0 {
		errs = append(errs, "overpass.timeout_secs must be > 0")
	}
	switch c.Overpass.Cache {
	case "file":
		if c.Overpass.CachePath == "" {
			errs = append(errs, "overpass.cache_path is required for the file cache")
		}
	case "store":
		errs = append(errs, c.validateStore()...)
	case "none":
	default:
		errs = append(errs, fmt.Sprintf("overpass.cache %q is not one of file, store, none", c.Overpass.Cache))
	}
	if c.Overpass.RetryAttempts < 1 {
		errs = append(errs, "overpass.retry_attempts must be >= 1")
	}
	return errs
}

func (c *Config) validateScoring() []string {
	var errs []string
	if c.Reference.Path == "" {
		errs = append(errs, "reference.path is required")
	}
	if c.Scoring.WalkingMinutes <= 0 || c.Scoring.MetersPerMinute <= 0 {
		errs = append(errs, "scoring.walking_minutes and scoring.meters_per_minute must be > 0")
	}
	if c.Scoring.Workers < 0 {
		errs = append(errs, "scoring.workers must be >= 0")
	}
	return errs
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return []string{fmt.Sprintf("store.driver %q is not one of sqlite, postgres", c.Store.Driver)}
	}
	if c.Store.DatabaseURL == "" {
		return []string{"store.database_url is required"}
	}
	if c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns {
		return []string{"store.min_conns must not exceed store.max_conns"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
