// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the hubd configuration with precedence
// ENV > YAML file > defaults.
package config

import "time"

// AppConfig is the effective daemon configuration.
type AppConfig struct {
	Version string

	LogLevel   string
	LogService string

	// ListenAddr serves the control API; MetricsAddr serves /metrics and
	// may be empty to disable the metrics listener.
	ListenAddr      string
	MetricsAddr     string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration

	Hub       HubConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// HubConfig configures the lifecycle and root-manager coordinators.
type HubConfig struct {
	// Timeout bounds building and tearing down the hub object graph.
	Timeout          time.Duration
	ConfirmPolicy    string
	ManagerComponent string
	ServiceComponent string
}

// RateLimitConfig limits mutating control requests per client IP.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// FileConfig mirrors the YAML file. Durations are Go duration strings.
type FileConfig struct {
	LogLevel   string `yaml:"logLevel,omitempty"`
	LogService string `yaml:"logService,omitempty"`

	Server    *ServerFileConfig    `yaml:"server,omitempty"`
	Hub       *HubFileConfig       `yaml:"hub,omitempty"`
	RateLimit *RateLimitFileConfig `yaml:"rateLimit,omitempty"`
	Telemetry *TelemetryFileConfig `yaml:"telemetry,omitempty"`
}

type ServerFileConfig struct {
	ListenAddr      string `yaml:"listenAddr,omitempty"`
	MetricsAddr     string `yaml:"metricsAddr,omitempty"`
	ShutdownTimeout string `yaml:"shutdownTimeout,omitempty"`
	RequestTimeout  string `yaml:"requestTimeout,omitempty"`
}

type HubFileConfig struct {
	Timeout          string `yaml:"timeout,omitempty"`
	ConfirmPolicy    string `yaml:"confirmPolicy,omitempty"`
	ManagerComponent string `yaml:"managerComponent,omitempty"`
	ServiceComponent string `yaml:"serviceComponent,omitempty"`
}

type RateLimitFileConfig struct {
	Requests *int   `yaml:"requests,omitempty"`
	Window   string `yaml:"window,omitempty"`
}

type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}
