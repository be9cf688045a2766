// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolderReloadNotifiesListeners(t *testing.T) {
	path := writeConfig(t, "hub.yaml", "hub:\n  confirmPolicy: never\n")
	loader := NewLoader(path, "v1")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader)
	var seen []string
	h.OnReload(func(cfg AppConfig) { seen = append(seen, cfg.Hub.ConfirmPolicy) })

	require.NoError(t, os.WriteFile(path, []byte("hub:\n  confirmPolicy: always\n"), 0o600))
	require.NoError(t, h.Reload())
	assert.Equal(t, "always", h.Get().Hub.ConfirmPolicy)
	assert.Equal(t, []string{"always"}, seen)
}

func TestHolderReloadKeepsPreviousOnError(t *testing.T) {
	path := writeConfig(t, "hub.yaml", "hub:\n  confirmPolicy: always\n")
	loader := NewLoader(path, "v1")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)
	called := false
	h.OnReload(func(AppConfig) { called = true })

	require.NoError(t, os.WriteFile(path, []byte("hub:\n  confirmPolicy: sometimes\n"), 0o600))
	require.Error(t, h.Reload())
	assert.Equal(t, "always", h.Get().Hub.ConfirmPolicy)
	assert.False(t, called)
}

func TestHolderWatchReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "hub.yaml", "hub:\n  confirmPolicy: never\n")
	loader := NewLoader(path, "v1")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)
	h.debounce = 20 * time.Millisecond

	reloaded := make(chan AppConfig, 4)
	h.OnReload(func(cfg AppConfig) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// The watcher may not be subscribed yet; keep writing until it notices.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("hub:\n  confirmPolicy: always\n"), 0o600)
		select {
		case cfg := <-reloaded:
			return cfg.Hub.ConfirmPolicy == "always"
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "always", h.Get().Hub.ConfirmPolicy)
}

func TestHolderWatchWithoutFileReturns(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", "v1"))
	require.NoError(t, h.Watch(context.Background()))
}
