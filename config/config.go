package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/api-gateway/internal/circuitbreaker"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

var dependencyName = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type BreakerConfig struct {
	ErrorThresholdPercentage float64 `mapstructure:"error_threshold_percentage"`
	RequestTimeout           string  `mapstructure:"request_timeout"`
	ResetTimeout             string  `mapstructure:"reset_timeout"`
	MinimumRequests          int     `mapstructure:"minimum_requests"`
	Window                   string  `mapstructure:"window"`
	Buckets                  int     `mapstructure:"buckets"`
}

type DependencyConfig struct {
	Name       string `mapstructure:"name"`
	URL        string `mapstructure:"url"`
	HealthPath string `mapstructure:"health_path"`
	// Nil means true: a 404 is data unless explicitly disabled.
	NotFoundAsData *bool `mapstructure:"not_found_as_data"`
}

type EventsConfig struct {
	// Empty disables publishing.
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	HealthCheck  HealthCheckConfig  `mapstructure:"health_check"`
	Breaker      BreakerConfig      `mapstructure:"breaker"`
	Dependencies []DependencyConfig `mapstructure:"dependencies"`
	Events       EventsConfig       `mapstructure:"events"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServiceConfig configures a backend service (users or orders).
type ServiceConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Load reads config.yaml from paths (./config and . when none are given),
// then applies environment overrides such as BREAKER_RESET_TIMEOUT.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8000")
	v.SetDefault("health_check.interval", "5s")
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("breaker.error_threshold_percentage", 50)
	v.SetDefault("breaker.request_timeout", "3s")
	v.SetDefault("breaker.reset_timeout", "3s")
	v.SetDefault("breaker.minimum_requests", 5)
	v.SetDefault("breaker.window", "10s")
	v.SetDefault("breaker.buckets", 10)
	v.SetDefault("events.subject", "gateway.circuit")
	v.SetDefault("dependencies", []map[string]any{
		{"name": "users", "url": "http://localhost:8001"},
		{"name": "orders", "url": "http://localhost:8002"},
	})

	if err := read(v, "config", paths); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

// LoadService reads <name>.yaml from paths. Environment overrides carry the
// service name as prefix, e.g. USERS_SERVER_ADDRESS.
func LoadService(name, defaultAddress string, paths ...string) (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(name)

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", defaultAddress)
	v.SetDefault("logging.level", LogLevelInfo)

	if err := read(v, name, paths); err != nil {
		return nil, err
	}

	var cfg ServiceConfig
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func read(v *viper.Viper, name string, paths []string) error {
	if len(paths) == 0 {
		paths = []string{"./config", "."}
	}

	v.SetConfigName(name)
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return err
		}
		slog.Warn("config file not found, using defaults and environment variables",
			slog.String("name", name))
		return nil
	}

	slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	return nil
}

// CircuitBreaker converts the validated breaker section.
func (b BreakerConfig) CircuitBreaker() (circuitbreaker.Config, error) {
	requestTimeout, err := time.ParseDuration(b.RequestTimeout)
	if err != nil {
		return circuitbreaker.Config{}, fmt.Errorf("%w: breaker.request_timeout: %v", circuitbreaker.ErrConfig, err)
	}
	resetTimeout, err := time.ParseDuration(b.ResetTimeout)
	if err != nil {
		return circuitbreaker.Config{}, fmt.Errorf("%w: breaker.reset_timeout: %v", circuitbreaker.ErrConfig, err)
	}
	window, err := time.ParseDuration(b.Window)
	if err != nil {
		return circuitbreaker.Config{}, fmt.Errorf("%w: breaker.window: %v", circuitbreaker.ErrConfig, err)
	}

	cfg := circuitbreaker.Config{
		ErrorThresholdPercentage: b.ErrorThresholdPercentage,
		RequestTimeout:           requestTimeout,
		ResetTimeout:             resetTimeout,
		MinimumRequests:          b.MinimumRequests,
		Window:                   window,
		Buckets:                  b.Buckets,
	}

	if err := cfg.Validate(); err != nil {
		return circuitbreaker.Config{}, fmt.Errorf("%w: %v", circuitbreaker.ErrConfig, err)
	}

	return cfg, nil
}

// ExpectNotFound reports whether a 404 from this dependency is data.
func (d DependencyConfig) ExpectNotFound() bool {
	return d.NotFoundAsData == nil || *d.NotFoundAsData
}

// HealthCheckInterval returns the parsed probe interval.
func (c *Config) HealthCheckInterval() time.Duration {
	interval, err := time.ParseDuration(c.HealthCheck.Interval)
	if err != nil {
		return 5 * time.Second
	}
	return interval
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server, validation.Required, validation.By(validateServer)),
		validation.Field(&c.Logging, validation.Required, validation.By(validateLogging)),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Breaker,
			validation.Required,
			validation.By(func(value interface{}) error {
				bc, ok := value.(BreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.ErrorThresholdPercentage,
						validation.Required,
						validation.Min(0.0).Exclusive(),
						validation.Max(100.0),
					),
					validation.Field(&bc.RequestTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&bc.ResetTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&bc.Window, validation.Required, validation.By(validateDuration)),
					validation.Field(&bc.MinimumRequests, validation.Required, validation.Min(1)),
					validation.Field(&bc.Buckets, validation.Required, validation.Min(1)),
				)
			}),
		),
		validation.Field(&c.Dependencies,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateDependencyConfig)),
			validation.By(uniqueDependencies),
		),
		validation.Field(&c.Events,
			validation.By(func(value interface{}) error {
				ec, ok := value.(EventsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an EventsConfig")
				}
				return validation.ValidateStruct(&ec,
					validation.Field(&ec.NATSURL, is.RequestURL),
					validation.Field(&ec.Subject,
						validation.When(ec.NATSURL != "", validation.Required),
					),
				)
			}),
		),
	)
}

func (c *ServiceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server, validation.Required, validation.By(validateServer)),
		validation.Field(&c.Logging, validation.Required, validation.By(validateLogging)),
	)
}

func validateServer(value interface{}) error {
	sc, ok := value.(ServerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a ServerConfig")
	}
	return validation.ValidateStruct(&sc,
		validation.Field(&sc.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&sc.Address,
			validation.Required,
			validation.By(validateHostPort),
		),
	)
}

func validateLogging(value interface{}) error {
	lc, ok := value.(LoggingConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
	}
	return validation.ValidateStruct(&lc,
		validation.Field(&lc.Level,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}

	return nil
}

func validateDependencyConfig(value interface{}) error {
	dep, ok := value.(DependencyConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a DependencyConfig")
	}

	if !dependencyName.MatchString(dep.Name) {
		return validation.NewError("validation_invalid_name", "dependency name must be lowercase letters, digits, '-' or '_'")
	}

	if dep.URL == "" {
		return validation.NewError("validation_empty_url", "dependency URL cannot be empty")
	}

	parsedURL, err := url.Parse(dep.URL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	if dep.HealthPath != "" && !strings.HasPrefix(dep.HealthPath, "/") {
		return validation.NewError("validation_invalid_health_path", "health path must start with '/'")
	}

	return nil
}

func uniqueDependencies(value interface{}) error {
	deps, ok := value.([]DependencyConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a list of DependencyConfig")
	}

	seen := make(map[string]bool, len(deps))
	for _, d := range deps {
		if seen[d.Name] {
			return validation.NewError("validation_duplicate_dependency", fmt.Sprintf("dependency %q is listed twice", d.Name))
		}
		seen[d.Name] = true
	}

	return nil
}
