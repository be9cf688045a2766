// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/hubcore/internal/log"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment variable read by the loader.
const EnvPrefix = "HUB_"

// Environment variables understood by the loader.
const (
	EnvLogLevel          = EnvPrefix + "LOG_LEVEL"
	EnvLogService        = EnvPrefix + "LOG_SERVICE"
	EnvListenAddr        = EnvPrefix + "LISTEN_ADDR"
	EnvMetricsAddr       = EnvPrefix + "METRICS_ADDR"
	EnvShutdownTimeout   = EnvPrefix + "SHUTDOWN_TIMEOUT"
	EnvRequestTimeout    = EnvPrefix + "REQUEST_TIMEOUT"
	EnvHubTimeout        = EnvPrefix + "TIMEOUT"
	EnvConfirmPolicy     = EnvPrefix + "CONFIRM_POLICY"
	EnvManagerComponent  = EnvPrefix + "MANAGER_COMPONENT"
	EnvServiceComponent  = EnvPrefix + "SERVICE_COMPONENT"
	EnvRateLimitRequests = EnvPrefix + "RATELIMIT_REQUESTS"
	EnvRateLimitWindow   = EnvPrefix + "RATELIMIT_WINDOW"
	EnvTracingEnabled    = EnvPrefix + "TRACING_ENABLED"
	EnvTracingExporter   = EnvPrefix + "TRACING_EXPORTER"
	EnvTracingEndpoint   = EnvPrefix + "TRACING_ENDPOINT"
	EnvTracingSampling   = EnvPrefix + "TRACING_SAMPLING_RATE"
)

// ParseString reads a string from environment variable or returns default value.
// It logs the source (environment or default) for observability.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(log.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		logDefault(logger, key, exists).Str("default", defaultValue).Msg("using default value")
		return defaultValue
	}
	lowerKey := strings.ToLower(key)
	if strings.Contains(lowerKey, "token") || strings.Contains(lowerKey, "password") {
		logger.Debug().
			Str("key", key).
			Str("source", "environment").
			Bool("sensitive", true).
			Msg("using environment variable")
		return value
	}
	logger.Debug().
		Str("key", key).
		Str("value", value).
		Str("source", "environment").
		Msg("using environment variable")
	return value
}

// ParseInt reads an integer from environment variable or returns default value.
// It validates the input and falls back to default on parse errors.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(key, defaultValue, strconv.Atoi)
}

// ParseDuration reads a duration from environment variable in Go duration format (e.g. "5s").
// It falls back to default on parse errors or empty variables and logs the choice.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(key, defaultValue, time.ParseDuration)
}

// ParseBool reads a boolean from environment variable or returns default value.
// It accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(key, defaultValue, parseBool)
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

// parseEnv reads key with parse, logging where the value came from. Empty
// or unparsable values fall back to defaultValue.
func parseEnv[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logDefault(logger, key, ok).Interface("default", defaultValue).Msg("using default value")
		return defaultValue
	}
	parsed, err := parse(v)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Interface("default", defaultValue).
			Msg("invalid value in environment variable, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Interface("value", parsed).
		Str("source", "environment").
		Msg("using environment variable")
	return parsed
}

func logDefault(logger zerolog.Logger, key string, setButEmpty bool) *zerolog.Event {
	ev := logger.Debug().Str("key", key).Str("source", "default")
	if setButEmpty {
		ev = ev.Bool("empty", true)
	}
	return ev
}
