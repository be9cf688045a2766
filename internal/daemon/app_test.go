// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"testing"
	"time"

	"github.com/ManuGH/hubcore/internal/log"
	"github.com/stretchr/testify/require"
)

func TestAppRequiresManager(t *testing.T) {
	app := NewApp(log.WithComponent("test"), nil, nil, nil)
	require.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)
}

func TestAppRestartsHubOnSignal(t *testing.T) {
	// Keep the test process alive if the signal lands before Run subscribes.
	guard := make(chan os.Signal, 16)
	signal.Notify(guard, syscall.SIGUSR1)
	defer signal.Stop(guard)

	hub := &fakeHub{}
	mgr, err := NewManager(testServerConfig(), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: okHandler(),
		Hub:        hub,
	})
	require.NoError(t, err)

	watcher := &blockingWatcher{started: make(chan struct{})}
	app := NewApp(log.WithComponent("test"), mgr, hub, watcher)
	app.restartSignal = syscall.SIGUSR1

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		_ = syscall.Kill(os.Getpid(), syscall.SIGUSR1)
		return slices.Contains(hub.Calls(), "restart")
	}, 3*time.Second, 20*time.Millisecond)

	<-watcher.started

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

type blockingWatcher struct {
	started chan struct{}
}

func (w *blockingWatcher) Watch(ctx context.Context) error {
	close(w.started)
	<-ctx.Done()
	return nil
}
