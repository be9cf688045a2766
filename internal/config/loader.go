// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/hubcore/internal/confirm"
	"github.com/ManuGH/hubcore/internal/roots"
	"github.com/ManuGH/hubcore/internal/validate"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultLogLevel         = "info"
	DefaultLogService       = "hubd"
	DefaultListenAddr       = ":8088"
	DefaultMetricsAddr      = ":9090"
	DefaultShutdownTimeout  = 15 * time.Second
	DefaultRequestTimeout   = 10 * time.Second
	DefaultHubTimeout       = 30 * time.Second
	DefaultRateLimitWindow  = time.Minute
	DefaultRateLimitRequest = 30
	DefaultTracingExporter  = "grpc"
	DefaultTracingEndpoint  = "localhost:4317"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults,
// then validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version
	if lvl, err := validate.ParseLogLevel(cfg.LogLevel); err == nil {
		cfg.LogLevel = lvl.String()
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:        DefaultLogLevel,
		LogService:      DefaultLogService,
		ListenAddr:      DefaultListenAddr,
		MetricsAddr:     DefaultMetricsAddr,
		ShutdownTimeout: DefaultShutdownTimeout,
		RequestTimeout:  DefaultRequestTimeout,
		Hub: HubConfig{
			Timeout:          DefaultHubTimeout,
			ConfirmPolicy:    confirm.PolicyNever,
			ManagerComponent: roots.DefaultManagerComponent,
			ServiceComponent: roots.DefaultServiceComponent,
		},
		RateLimit: RateLimitConfig{
			Requests: DefaultRateLimitRequest,
			Window:   DefaultRateLimitWindow,
		},
		Telemetry: TelemetryConfig{
			Exporter:     DefaultTracingExporter,
			Endpoint:     DefaultTracingEndpoint,
			SamplingRate: 1.0,
		},
	}
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes a YAML document strictly.
func ParseFile(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) error {
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.LogService, f.LogService)

	if s := f.Server; s != nil {
		setString(&cfg.ListenAddr, s.ListenAddr)
		setString(&cfg.MetricsAddr, s.MetricsAddr)
		if err := setDuration(&cfg.ShutdownTimeout, "server.shutdownTimeout", s.ShutdownTimeout); err != nil {
			return err
		}
		if err := setDuration(&cfg.RequestTimeout, "server.requestTimeout", s.RequestTimeout); err != nil {
			return err
		}
	}
	if h := f.Hub; h != nil {
		if err := setDuration(&cfg.Hub.Timeout, "hub.timeout", h.Timeout); err != nil {
			return err
		}
		setString(&cfg.Hub.ConfirmPolicy, h.ConfirmPolicy)
		setString(&cfg.Hub.ManagerComponent, h.ManagerComponent)
		setString(&cfg.Hub.ServiceComponent, h.ServiceComponent)
	}
	if r := f.RateLimit; r != nil {
		if r.Requests != nil {
			cfg.RateLimit.Requests = *r.Requests
		}
		if err := setDuration(&cfg.RateLimit.Window, "rateLimit.window", r.Window); err != nil {
			return err
		}
	}
	if t := f.Telemetry; t != nil {
		if t.Enabled != nil {
			cfg.Telemetry.Enabled = *t.Enabled
		}
		setString(&cfg.Telemetry.Exporter, t.Exporter)
		setString(&cfg.Telemetry.Endpoint, t.Endpoint)
		if t.SamplingRate != nil {
			cfg.Telemetry.SamplingRate = *t.SamplingRate
		}
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.LogService = l.envString(EnvLogService, cfg.LogService)
	cfg.ListenAddr = l.envString(EnvListenAddr, cfg.ListenAddr)
	cfg.MetricsAddr = l.envString(EnvMetricsAddr, cfg.MetricsAddr)
	cfg.ShutdownTimeout = l.envDuration(EnvShutdownTimeout, cfg.ShutdownTimeout)
	cfg.RequestTimeout = l.envDuration(EnvRequestTimeout, cfg.RequestTimeout)

	cfg.Hub.Timeout = l.envDuration(EnvHubTimeout, cfg.Hub.Timeout)
	cfg.Hub.ConfirmPolicy = l.envString(EnvConfirmPolicy, cfg.Hub.ConfirmPolicy)
	cfg.Hub.ManagerComponent = l.envString(EnvManagerComponent, cfg.Hub.ManagerComponent)
	cfg.Hub.ServiceComponent = l.envString(EnvServiceComponent, cfg.Hub.ServiceComponent)

	cfg.RateLimit.Requests = l.envInt(EnvRateLimitRequests, cfg.RateLimit.Requests)
	cfg.RateLimit.Window = l.envDuration(EnvRateLimitWindow, cfg.RateLimit.Window)

	cfg.Telemetry.Enabled = l.envBool(EnvTracingEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvTracingExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvTracingEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvTracingSampling, cfg.Telemetry.SamplingRate)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, field, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}
