// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ManuGH/hubcore/internal/config"
	"github.com/ManuGH/hubcore/internal/extension"
	"github.com/ManuGH/hubcore/internal/lifecycle"
	"github.com/ManuGH/hubcore/internal/roots"
	"github.com/ManuGH/hubcore/internal/router"
	"github.com/ManuGH/hubcore/internal/task"
	"github.com/ManuGH/hubcore/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseFlags(t *testing.T) {
	var out bytes.Buffer
	opts, err := parseFlags([]string{"-config", " hub.yaml "}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hub.yaml", opts.configPath)

	_, err = parseFlags([]string{"-version"}, &out)
	require.ErrorIs(t, err, errVersionShown)
	assert.Contains(t, out.String(), version.Version)

	_, err = parseFlags([]string{"-bogus"}, &out)
	require.Error(t, err)
}

func TestBuildGraphRunsHub(t *testing.T) {
	cfg := config.Defaults()
	cfg.Hub.ConfirmPolicy = "always"

	g, err := buildGraph(cfg)
	require.NoError(t, err)
	defer g.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.lifecycle.Start(ctx))
	require.NoError(t, g.lifecycle.WaitFor(ctx, lifecycle.StateRunning))

	manager := func(control string) router.Address {
		return router.NewAddress(cfg.Hub.ManagerComponent, control)
	}
	_, err = g.router.Ask(ctx, manager(roots.ControlAdd), "mixer")
	require.NoError(t, err)
	_, err = g.router.Ask(ctx, manager(roots.ControlRemove), "mixer")
	require.NoError(t, err)

	require.NoError(t, g.lifecycle.Stop(ctx))
	require.NoError(t, g.lifecycle.WaitFor(ctx, lifecycle.StateStopped))
}

func TestBuildGraphWiresHandlers(t *testing.T) {
	cfg := config.Defaults()
	assert.Empty(t, lifecycleHandlers())

	var descriptions []string
	h := extension.HandlerFunc(func(desc string, _ []string) task.Task {
		descriptions = append(descriptions, desc)
		return task.NewFunc(desc, nil)
	})
	g, err := buildGraph(cfg, h)
	require.NoError(t, err)
	defer g.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.lifecycle.Start(ctx))
	require.NoError(t, g.lifecycle.WaitFor(ctx, lifecycle.StateRunning))

	manager := func(control string) router.Address {
		return router.NewAddress(cfg.Hub.ManagerComponent, control)
	}
	_, err = g.router.Ask(ctx, manager(roots.ControlAdd), "mixer")
	require.NoError(t, err)
	_, err = g.router.Ask(ctx, manager(roots.ControlAdd), "synth")
	require.NoError(t, err)
	// The default policy refuses, so success means the task claimed the root.
	_, err = g.router.Ask(ctx, manager(roots.ControlRemove), "mixer")
	require.NoError(t, err)

	require.NoError(t, g.lifecycle.Stop(ctx))
	require.NoError(t, g.lifecycle.WaitFor(ctx, lifecycle.StateStopped))

	var seen []string
	require.NoError(t, g.exec.Do(ctx, func() { seen = append(seen, descriptions...) }))
	assert.Equal(t, []string{"Remove root mixer", "Stop hub"}, seen)
}

func TestBuildGraphRejectsUnknownPolicy(t *testing.T) {
	cfg := config.Defaults()
	cfg.Hub.ConfirmPolicy = "sometimes"

	g, err := buildGraph(cfg)
	require.Error(t, err)
	g.close()
}
