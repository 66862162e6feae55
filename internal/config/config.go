package config

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultSecretKey is the placeholder shipped in defaults.yaml.
const DefaultSecretKey = "your-secret-key-change-this"

// Template store backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type Config struct {
	Auth     AuthConfig     `yaml:"auth"`
	Face     FaceConfig     `yaml:"face"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Encoder  EncoderConfig  `yaml:"encoder"`
	Web      WebConfig      `yaml:"web"`
	Log      LogConfig      `yaml:"log"`
}

type AuthConfig struct {
	SecretKey string `yaml:"secret_key" env:"JWT_SECRET_KEY"`
	Algorithm string `yaml:"algorithm"  env:"ALGORITHM"`
}

type FaceConfig struct {
	Tolerance      float64  `yaml:"tolerance"       env:"FACE_TOLERANCE"`
	MinConfidence  float64  `yaml:"min_confidence"  env:"MIN_CONFIDENCE"`
	DistanceMetric string   `yaml:"distance_metric" env:"FACE_DISTANCE_METRIC"`
	RejectMultiple bool     `yaml:"reject_multiple" env:"FACE_REJECT_MULTIPLE"`
	MaxFileSize    int64    `yaml:"max_file_size"   env:"MAX_FILE_SIZE"`
	AllowedEvents  []string `yaml:"allowed_events"  env:"ALLOWED_EVENTS" envSeparator:","`
}

type StoreConfig struct {
	Backend       string `yaml:"backend"        env:"STORE_BACKEND"`
	EncodingsFile string `yaml:"encodings_file" env:"FACE_ENCODINGS_FILE"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"            env:"DATABASE_URL"`            // PostgreSQL connection URL
	MaxOpenConns int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"` // Maximum idle connections (default 5)
}

type EncoderConfig struct {
	URL     string        `yaml:"url"     env:"ENCODER_URL"`
	Timeout time.Duration `yaml:"timeout" env:"ENCODER_TIMEOUT"`
}

type WebConfig struct {
	Host               string   `yaml:"host"                 env:"WEB_HOST"`
	Port               int      `yaml:"port"                 env:"WEB_PORT"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	RateLimitRPS       float64  `yaml:"rate_limit_rps"       env:"RATE_LIMIT_RPS"`
	RateLimitBurst     int      `yaml:"rate_limit_burst"     env:"RATE_LIMIT_BURST"`
	TrustProxyHeaders  bool     `yaml:"trust_proxy_headers"  env:"TRUST_PROXY_HEADERS"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
	File   string `yaml:"file"   env:"LOG_FILE"`
}

// Addr returns the listen address.
func (c *WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EventAllowed reports whether event is in the allow-list. Matching is exact.
func (c *FaceConfig) EventAllowed(event string) bool {
	return slices.Contains(c.AllowedEvents, event)
}

// Defaults returns the embedded defaults without reading the environment.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load starts from the embedded defaults, applies environment overrides and
// validates the result.
func Load() (*Config, error) {
	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize trims comma-separated lists and drops empty entries.
func (c *Config) normalize() {
	c.Face.AllowedEvents = trimList(c.Face.AllowedEvents)
	c.Web.CORSAllowedOrigins = trimList(c.Web.CORSAllowedOrigins)
	c.Auth.Algorithm = strings.ToUpper(strings.TrimSpace(c.Auth.Algorithm))
	c.Face.DistanceMetric = strings.ToLower(strings.TrimSpace(c.Face.DistanceMetric))
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY must not be empty"))
	}
	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512", "RS256", "RS384", "RS512", "ES256", "ES384", "ES512":
	default:
		errs = append(errs, fmt.Errorf("ALGORITHM %q is not supported", c.Auth.Algorithm))
	}

	if c.Face.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("FACE_TOLERANCE must be positive, got %v", c.Face.Tolerance))
	}
	if c.Face.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("MIN_CONFIDENCE must be at most 1, got %v", c.Face.MinConfidence))
	}
	switch c.Face.DistanceMetric {
	case "euclidean", "cosine":
	default:
		errs = append(errs, fmt.Errorf("FACE_DISTANCE_METRIC %q is not supported", c.Face.DistanceMetric))
	}
	if c.Face.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", c.Face.MaxFileSize))
	}
	if len(c.Face.AllowedEvents) == 0 {
		errs = append(errs, errors.New("ALLOWED_EVENTS must list at least one event"))
	}

	switch c.Store.Backend {
	case BackendFile:
		if c.Store.EncodingsFile == "" {
			errs = append(errs, errors.New("FACE_ENCODINGS_FILE must not be empty"))
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q is not supported", c.Store.Backend))
	}

	if c.Encoder.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("ENCODER_TIMEOUT must be positive, got %s", c.Encoder.Timeout))
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("WEB_PORT %d is out of range", c.Web.Port))
	}
	if c.Web.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %v", c.Web.RateLimitRPS))
	}
	if c.Web.RateLimitRPS > 0 && c.Web.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_BURST must be positive when rate limiting is enabled"))
	}

	return errors.Join(errs...)
}
