// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package roots

import (
	"fmt"
	"strings"

	"github.com/ManuGH/hubcore/internal/router"
)

// Control names understood by the root manager and the root service.
const (
	ControlAdd    = "add-root"
	ControlRemove = "remove-root"
	ControlList   = "list-roots"
)

// Default component paths.
const (
	DefaultManagerComponent = "/hub/manager"
	DefaultServiceComponent = "/hub/roots"
)

// IDArg extracts the root id carried as the first argument of call.
func IDArg(call router.Call) (string, error) {
	id, err := call.StringArg(0)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: empty root id", router.ErrInvalidArgs)
	}
	return id, nil
}
