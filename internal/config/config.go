// Package config loads and validates the Reconnoiter configuration file.
package config

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/recon"
)

// Schedule kinds.
const (
	KindScan       = "scan"
	KindSubdomains = "subdomains"
	KindSweep      = "sweep"
)

// Config represents the complete configuration.
type Config struct {
	// Recon engine configuration
	Recon recon.Config `yaml:"recon" json:"recon"`

	// API configuration
	API APIConfig `yaml:"api" json:"api"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Recurring jobs run by the server
	Schedules []ScheduleConfig `yaml:"schedules,omitempty" json:"schedules,omitempty" validate:"dive"`
}

// APIConfig holds API server settings
type APIConfig struct {
	// Listen address
	ListenAddr string `yaml:"listen_addr" json:"listen_addr" validate:"required"`

	// Listen port
	Port int `yaml:"port" json:"port" validate:"min=1,max=65535"`

	// Accepted API keys, stored as bcrypt hashes. Empty disables auth.
	APIKeys []APIKeyConfig `yaml:"api_keys,omitempty" json:"api_keys,omitempty" validate:"dive"`

	// CORS settings
	CORS CORSConfig `yaml:"cors" json:"cors"`

	// Per-client request rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Request timeout for synchronous endpoints
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout" validate:"gt=0"`

	// Maximum request size
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size" validate:"gt=0"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gt=0"`
}

// APIKeyConfig is one named API key.
type APIKeyConfig struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	Hash string `yaml:"hash" json:"hash" validate:"required,startswith=$2"`
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	// Enable CORS
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Allowed origins
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`

	// Allowed methods
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`

	// Allowed headers
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
}

// RateLimitConfig bounds how often one client may call the API.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Requests int           `yaml:"requests" json:"requests" validate:"gt=0"`
	Window   time.Duration `yaml:"window" json:"window" validate:"gt=0"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`

	// Log format (text, json, auto)
	Format string `yaml:"format" json:"format" validate:"oneof=text json auto"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output" validate:"required"`

	// Enable request logging for API
	RequestLogging bool `yaml:"request_logging" json:"request_logging"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path" validate:"required,startswith=/"`
}

// ScheduleConfig declares one recurring recon job.
type ScheduleConfig struct {
	Name     string   `yaml:"name" json:"name" validate:"required"`
	Cron     string   `yaml:"cron" json:"cron" validate:"required"`
	Kind     string   `yaml:"kind" json:"kind" validate:"oneof=scan subdomains sweep"`
	Target   string   `yaml:"target" json:"target" validate:"required"`
	Ports    []int    `yaml:"ports,omitempty" json:"ports,omitempty" validate:"dive,min=1,max=65535"`
	Wordlist []string `yaml:"wordlist,omitempty" json:"wordlist,omitempty" validate:"dive,required"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Recon: recon.DefaultConfig(),
		API: APIConfig{
			ListenAddr: "127.0.0.1",
			Port:       8080,
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
			},
			RateLimit: RateLimitConfig{
				Enabled:  false,
				Requests: 60,
				Window:   time.Minute,
			},
			RequestTimeout:  5 * time.Minute,
			MaxRequestSize:  1024 * 1024, // 1MB
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "auto",
			Output:         "stderr",
			RequestLogging: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "Failed to read config file", err)
	}

	// JSON is a subset of YAML, so one decoder serves both.
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			fmt.Sprintf("Failed to parse %s config", formatName(path)), err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func formatName(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "JSON"
	default:
		return "YAML"
	}
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// API key hashes live here, keep the file private.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct tags, the recon section and the cross-field rules
// tags cannot express.
func (c *Config) Validate() error {
	if err := c.Recon.Validate(); err != nil {
		return err
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			cfgErr := errors.ErrConfigInvalid(fieldPath(fe.Namespace()), fe.Value())
			cfgErr.Message = "Invalid configuration value: failed " + fe.Tag() + " check"
			cfgErr.Cause = err
			return cfgErr
		}
		return errors.WrapConfigError(errors.CodeConfiguration, "Invalid configuration", err)
	}

	names := make(map[string]bool, len(c.Schedules))
	for i, s := range c.Schedules {
		field := "schedules[" + strconv.Itoa(i) + "]"
		if names[s.Name] {
			return errors.NewConfigFieldError(errors.CodeValidation, "Duplicate schedule name", field+".name", s.Name)
		}
		names[s.Name] = true

		if _, err := cron.ParseStandard(s.Cron); err != nil {
			cfgErr := errors.ErrConfigInvalid(field+".cron", s.Cron)
			cfgErr.Cause = err
			return cfgErr
		}
		if s.Kind == KindSweep {
			if _, err := recon.EnumerateHosts(s.Target); err != nil {
				cfgErr := errors.ErrConfigInvalid(field+".target", s.Target)
				cfgErr.Cause = err
				return cfgErr
			}
		}
	}
	return nil
}

// fieldPath turns a validator namespace such as "Config.api.port" into the
// YAML path "api.port".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// GetAPIAddress returns the full API address
func (c *Config) GetAPIAddress() string {
	return net.JoinHostPort(c.API.ListenAddr, strconv.Itoa(c.API.Port))
}

// AuthEnabled reports whether the API requires a key.
func (c *Config) AuthEnabled() bool {
	return len(c.API.APIKeys) > 0
}
