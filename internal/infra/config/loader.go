package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"mgmtd/internal/domain"
	"mgmtd/internal/infra/telemetry"
)

type Loader struct {
	logger    *zap.Logger
	envPrefix string
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger.Named("config"), envPrefix: domain.DefaultEnvPrefix}
}

func newConfigViper(envPrefix string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.listenAddress", domain.DefaultServiceListenAddress)
	v.SetDefault("service.shutdownTimeoutSeconds", domain.DefaultShutdownTimeoutSecs)
	v.SetDefault("management.enabled", true)
	v.SetDefault("management.path", domain.DefaultManagementPath)
	v.SetDefault("management.listenAddress", "")
	v.SetDefault("management.externalURL", "")
	v.SetDefault("management.endpoints", []string{})
	v.SetDefault("management.accessLogCapacity", domain.DefaultAccessLogCapacity)
	v.SetDefault("management.recentLogCapacity", domain.DefaultRecentLogCapacity)
	v.SetDefault("management.redactEnv", true)
	v.SetDefault("logging.level", domain.DefaultLogLevel)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", domain.DefaultTraceExporter)
	v.SetDefault("tracing.endpoint", domain.DefaultOTLPEndpoint)
	v.SetDefault("tracing.insecure", false)
}

type rawConfig struct {
	Service    rawServiceConfig    `mapstructure:"service"`
	Management rawManagementConfig `mapstructure:"management"`
	Logging    rawLoggingConfig    `mapstructure:"logging"`
	Metrics    rawMetricsConfig    `mapstructure:"metrics"`
	Tracing    rawTracingConfig    `mapstructure:"tracing"`
}

type rawServiceConfig struct {
	ListenAddress          string `mapstructure:"listenAddress"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdownTimeoutSeconds"`
}

type rawManagementConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	Path              string   `mapstructure:"path"`
	ListenAddress     string   `mapstructure:"listenAddress"`
	ExternalURL       string   `mapstructure:"externalURL"`
	Endpoints         []string `mapstructure:"endpoints"`
	AccessLogCapacity int      `mapstructure:"accessLogCapacity"`
	RecentLogCapacity int      `mapstructure:"recentLogCapacity"`
	RedactEnv         bool     `mapstructure:"redactEnv"`
}

type rawLoggingConfig struct {
	Level string `mapstructure:"level"`
}

type rawMetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type rawTracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

// caseSensitiveSections are decoded with yaml directly, since viper folds
// map keys to lower case.
type caseSensitiveSections struct {
	Logging struct {
		Levels map[string]string `yaml:"levels"`
	} `yaml:"logging"`
	Parameters map[string]any `yaml:"parameters"`
}

// Load reads the config file at path, applies defaults and MGMTD_ environment
// overrides, and validates the result. An empty path yields the defaults.
// Files ending in .toml are read as TOML, everything else as YAML.
func (l *Loader) Load(ctx context.Context, path string) (domain.Config, error) {
	var data []byte
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return domain.Config{}, fmt.Errorf("read config: %w", err)
		}
		data = raw
		if formatFromPath(path) == FormatTOML {
			data, err = tomlToYAML(raw)
			if err != nil {
				return domain.Config{}, err
			}
		}
	}
	return l.Parse(ctx, data)
}

// Parse decodes YAML config content.
func (l *Loader) Parse(ctx context.Context, data []byte) (domain.Config, error) {
	expanded, missing, err := expandConfigEnv(data)
	if err != nil {
		return domain.Config{}, err
	}
	if len(missing) > 0 {
		l.logger.Warn("missing environment variables in config", zap.Strings("missing", missing))
	}

	v := newConfigViper(l.envPrefix)
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return domain.Config{}, fmt.Errorf("parse config: %w", err)
	}
	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return domain.Config{}, fmt.Errorf("decode config: %w", err)
	}
	var sections caseSensitiveSections
	if err := yaml.Unmarshal([]byte(expanded), &sections); err != nil {
		return domain.Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return domain.Config{}, err
	}

	cfg := normalizeConfig(raw, sections)
	if errs := validateConfig(cfg); len(errs) > 0 {
		return domain.Config{}, domain.E(domain.CodeInvalidArgument, "config.Load", strings.Join(errs, "; "), domain.ErrInvalidConfig)
	}
	return cfg, nil
}

func normalizeConfig(raw rawConfig, sections caseSensitiveSections) domain.Config {
	endpoints := make([]string, 0, len(raw.Management.Endpoints))
	for _, name := range raw.Management.Endpoints {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			endpoints = append(endpoints, name)
		}
	}
	path := strings.Trim(strings.TrimSpace(raw.Management.Path), "/")
	if path == "" {
		path = domain.DefaultManagementPath
	}
	level := strings.TrimSpace(raw.Logging.Level)
	if level == "" {
		level = domain.DefaultLogLevel
	}
	exporter := strings.ToLower(strings.TrimSpace(raw.Tracing.Exporter))
	if exporter == "" {
		exporter = domain.DefaultTraceExporter
	}

	return domain.Config{
		Service: domain.ServiceConfig{
			ListenAddress:          strings.TrimSpace(raw.Service.ListenAddress),
			ShutdownTimeoutSeconds: raw.Service.ShutdownTimeoutSeconds,
		},
		Management: domain.ManagementConfig{
			Enabled:           raw.Management.Enabled,
			Path:              path,
			ListenAddress:     strings.TrimSpace(raw.Management.ListenAddress),
			ExternalURL:       strings.TrimSpace(raw.Management.ExternalURL),
			Endpoints:         endpoints,
			AccessLogCapacity: raw.Management.AccessLogCapacity,
			RecentLogCapacity: raw.Management.RecentLogCapacity,
			RedactEnv:         raw.Management.RedactEnv,
		},
		Logging: domain.LoggingConfig{
			Level:  level,
			Levels: sections.Logging.Levels,
		},
		Metrics: domain.MetricsConfig{
			Enabled: raw.Metrics.Enabled,
		},
		Tracing: domain.TracingConfig{
			Enabled:  raw.Tracing.Enabled,
			Exporter: exporter,
			Endpoint: strings.TrimSpace(raw.Tracing.Endpoint),
			Insecure: raw.Tracing.Insecure,
		},
		Parameters: sections.Parameters,
	}
}

func validateConfig(cfg domain.Config) []string {
	var errs []string
	if err := validateListenAddress(cfg.Service.ListenAddress); err != nil {
		errs = append(errs, fmt.Sprintf("service.listenAddress: %v", err))
	}
	if cfg.Service.ShutdownTimeoutSeconds < 0 {
		errs = append(errs, "service.shutdownTimeoutSeconds must be >= 0")
	}

	mgmt := cfg.Management
	if strings.ContainsAny(mgmt.Path, " ?#") {
		errs = append(errs, fmt.Sprintf("management.path: invalid path %q", mgmt.Path))
	}
	if mgmt.ListenAddress != "" {
		if err := validateListenAddress(mgmt.ListenAddress); err != nil {
			errs = append(errs, fmt.Sprintf("management.listenAddress: %v", err))
		} else if mgmt.ListenAddress == cfg.Service.ListenAddress {
			errs = append(errs, "management.listenAddress must differ from service.listenAddress")
		}
	}
	if mgmt.ExternalURL != "" {
		u, err := url.Parse(mgmt.ExternalURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("management.externalURL: %q is not an absolute URL", mgmt.ExternalURL))
		}
	}
	for i, name := range mgmt.Endpoints {
		if !knownEndpoint(name) {
			errs = append(errs, fmt.Sprintf("management.endpoints[%d]: unknown endpoint %q", i, name))
		}
	}
	if mgmt.AccessLogCapacity < 1 {
		errs = append(errs, "management.accessLogCapacity must be >= 1")
	}
	if mgmt.RecentLogCapacity < 1 {
		errs = append(errs, "management.recentLogCapacity must be >= 1")
	}

	switch cfg.Tracing.Exporter {
	case telemetry.TraceExporterNone, telemetry.TraceExporterStdout:
	case telemetry.TraceExporterOTLP:
		if err := validateListenAddress(cfg.Tracing.Endpoint); err != nil {
			errs = append(errs, fmt.Sprintf("tracing.endpoint: %v", err))
		}
	default:
		errs = append(errs, fmt.Sprintf("tracing.exporter: unknown exporter %q", cfg.Tracing.Exporter))
	}

	if _, err := telemetry.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, fmt.Sprintf("logging.level: %v", err))
	}
	names := make([]string, 0, len(cfg.Logging.Levels))
	for name := range cfg.Logging.Levels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		level := cfg.Logging.Levels[name]
		if strings.TrimSpace(name) == "" {
			errs = append(errs, "logging.levels: logger name is required")
			continue
		}
		if _, err := telemetry.ParseLevel(level); err != nil {
			errs = append(errs, fmt.Sprintf("logging.levels.%s: %v", name, err))
		}
	}
	return errs
}

func validateListenAddress(addr string) error {
	if addr == "" {
		return errors.New("address is required")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return err
	}
	return nil
}

func knownEndpoint(name string) bool {
	for _, known := range domain.StandardEndpoints {
		if name == known {
			return true
		}
	}
	return false
}
