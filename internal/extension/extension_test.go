// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package extension

import (
	"testing"

	"github.com/ManuGH/hubcore/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bootHandler struct {
	HandlerFunc
	boot task.Task
}

func (b bootHandler) StartupTask() task.Task { return b.boot }

func TestDeletionTasksSkipsUninterestedHandlers(t *testing.T) {
	audio := task.NewFunc("stop audio", nil)
	p := Static{
		HandlerFunc(func(string, []string) task.Task { return nil }),
		nil,
		HandlerFunc(func(desc string, roots []string) task.Task {
			assert.Equal(t, "Stop hub", desc)
			assert.Equal(t, []string{"mixer"}, roots)
			return audio
		}),
	}

	got, err := DeletionTasks(p, "Stop hub", []string{"mixer"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Same(t, audio, got[0])

	got, err = DeletionTasks(nil, "x", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStartupTasksOnlyFromStartupHandlers(t *testing.T) {
	first := task.NewFunc("first", nil)
	second := task.NewFunc("second", nil)
	p := Static{
		bootHandler{boot: first},
		HandlerFunc(func(string, []string) task.Task { return nil }),
		bootHandler{boot: nil},
		bootHandler{boot: second},
	}

	got, err := StartupTasks(p)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Same(t, first, got[0])
	assert.Same(t, second, got[1])
}

type panickyBoot struct{ HandlerFunc }

func (panickyBoot) StartupTask() task.Task { panic("no firmware") }

func TestPanickingHandlersAreSkipped(t *testing.T) {
	audio := task.NewFunc("stop audio", nil)
	p := Static{
		HandlerFunc(func(string, []string) task.Task { panic("bad plugin") }),
		HandlerFunc(func(string, []string) task.Task { return audio }),
	}

	got, err := DeletionTasks(p, "Stop hub", []string{"mixer"})
	require.ErrorIs(t, err, task.ErrPanicked)
	assert.Contains(t, err.Error(), "handler 0")
	require.Len(t, got, 1)
	assert.Same(t, audio, got[0])

	boot := task.NewFunc("boot", nil)
	got, err = StartupTasks(Static{panickyBoot{}, bootHandler{boot: boot}})
	require.ErrorIs(t, err, task.ErrPanicked)
	require.Len(t, got, 1)
	assert.Same(t, boot, got[0])
}
