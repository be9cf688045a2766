// SPDX-License-Identifier: MIT

package health

import (
	"context"

	"github.com/ManuGH/hubcore/internal/lifecycle"
)

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc struct {
	name  string
	check func(ctx context.Context) CheckResult
}

// NewCheckerFunc returns a Checker named name backed by check.
func NewCheckerFunc(name string, check func(ctx context.Context) CheckResult) *CheckerFunc {
	return &CheckerFunc{name: name, check: check}
}

func (c *CheckerFunc) Name() string { return c.name }

func (c *CheckerFunc) Check(ctx context.Context) CheckResult { return c.check(ctx) }

// StateSource reports the hub lifecycle state.
type StateSource interface {
	State() lifecycle.HubState
}

// LifecycleChecker reports the hub as healthy while running. Transitions
// are degraded and a stopped hub is unhealthy.
type LifecycleChecker struct {
	source StateSource
}

// NewLifecycleChecker creates a checker over source.
func NewLifecycleChecker(source StateSource) *LifecycleChecker {
	return &LifecycleChecker{source: source}
}

func (c *LifecycleChecker) Name() string { return "hub_lifecycle" }

func (c *LifecycleChecker) Check(context.Context) CheckResult {
	st := c.source.State()
	res := CheckResult{Message: st.String()}
	switch st {
	case lifecycle.StateRunning:
		res.Status = StatusHealthy
	case lifecycle.StateStarting, lifecycle.StateStopping:
		res.Status = StatusDegraded
	default:
		res.Status = StatusUnhealthy
	}
	return res
}
