// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/ManuGH/hubcore/internal/confirm"
	"github.com/ManuGH/hubcore/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.LogLevel("LogLevel", cfg.LogLevel)
	v.NotEmpty("LogService", cfg.LogService)

	v.ListenAddr("ListenAddr", cfg.ListenAddr)
	if cfg.MetricsAddr != "" {
		v.ListenAddr("MetricsAddr", cfg.MetricsAddr)
		if cfg.MetricsAddr == cfg.ListenAddr {
			v.AddError("MetricsAddr", "must differ from ListenAddr", cfg.MetricsAddr)
		}
	}
	v.PositiveDuration("ShutdownTimeout", cfg.ShutdownTimeout)
	v.PositiveDuration("RequestTimeout", cfg.RequestTimeout)

	v.PositiveDuration("Hub.Timeout", cfg.Hub.Timeout)
	v.Custom("Hub.ConfirmPolicy", cfg.Hub.ConfirmPolicy, func(value interface{}) error {
		_, err := confirm.FromPolicy(value.(string))
		return err
	})
	v.ComponentPath("Hub.ManagerComponent", cfg.Hub.ManagerComponent)
	v.ComponentPath("Hub.ServiceComponent", cfg.Hub.ServiceComponent)
	if cfg.Hub.ManagerComponent == cfg.Hub.ServiceComponent {
		v.AddError("Hub.ServiceComponent", "must differ from Hub.ManagerComponent", cfg.Hub.ServiceComponent)
	}

	v.Positive("RateLimit.Requests", cfg.RateLimit.Requests)
	v.PositiveDuration("RateLimit.Window", cfg.RateLimit.Window)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
