// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/ManuGH/hubcore/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDebounce coalesces bursts of file events into one reload.
const DefaultReloadDebounce = 500 * time.Millisecond

// Holder holds the current configuration and reloads it when the config
// file changes. A reload that fails to load or validate keeps the previous
// configuration.
type Holder struct {
	mu      sync.RWMutex
	current AppConfig

	loader     *Loader
	configPath string
	debounce   time.Duration
	logger     zerolog.Logger

	listenersMu sync.Mutex
	listeners   []func(AppConfig)
}

// NewHolder creates a holder with initial as the current configuration.
func NewHolder(initial AppConfig, loader *Loader) *Holder {
	return &Holder{
		current:    initial,
		loader:     loader,
		configPath: loader.configPath,
		debounce:   DefaultReloadDebounce,
		logger:     log.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers fn to be called with every successfully reloaded
// configuration.
func (h *Holder) OnReload(fn func(AppConfig)) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload loads and validates the configuration and, on success, makes it
// current and notifies the listeners.
func (h *Holder) Reload() error {
	next, err := h.loader.Load()
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "config.reload_failed").
			Msg("config reload failed, keeping previous configuration")
		return err
	}

	h.mu.Lock()
	h.current = next
	h.mu.Unlock()

	h.listenersMu.Lock()
	listeners := append(([]func(AppConfig))(nil), h.listeners...)
	h.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(next)
	}

	h.logger.Info().
		Str(log.FieldEvent, "config.reloaded").
		Str("path", h.configPath).
		Msg("configuration reloaded")
	return nil
}

// Watch reloads the configuration whenever the config file is written or
// replaced, until ctx is done. Without a config file it returns at once.
//
// The parent directory is watched so editors that replace the file by
// rename are still noticed.
func (h *Holder) Watch(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().
			Str(log.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(h.configPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.logger.Info().
		Str(log.FieldEvent, "config.watcher_started").
		Str("path", target).
		Msg("watching config file for changes")

	timer := time.NewTimer(h.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(log.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				h.logger.Debug().
					Str(log.FieldEvent, "config.file_changed").
					Str("op", event.Op.String()).
					Msg("config file changed")
				timer.Reset(h.debounce)
			}

		case <-timer.C:
			_ = h.Reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Error().
				Err(err).
				Str(log.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}
