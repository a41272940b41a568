package permission

import (
	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

const (
	CPU     = "systemInfo.cpu"
	Memory  = "systemInfo.memory"
	Network = "network"
)

var labels = map[string]string{
	CPU:     "read your CPU usage",
	Memory:  "read your memory usage",
	Network: "access the network",
}

// Known reports whether name is a gated permission
func Known(name string) bool {
	_, ok := labels[name]
	return ok
}

// Label returns the user-facing description of a permission
func Label(name string) string {
	if l, ok := labels[name]; ok {
		return l
	}
	return name
}

// Names returns every gated permission
func Names() []string {
	return []string{CPU, Memory, Network}
}

func validate(name string) error {
	if !Known(name) {
		return errs.New(errs.KindInvalidConfig, "unknown permission %q", name)
	}
	return nil
}

// Declared reports whether the set includes the permission
func Declared(set types.PermissionSet, name string) bool {
	switch name {
	case CPU:
		return set.SystemInfo.CPU
	case Memory:
		return set.SystemInfo.Memory
	case Network:
		return set.Network.Enabled
	}
	return false
}

// FromDecisions builds a set from stored decisions. Allowed domains are
// not part of a decision and come from the declared set on intersection.
func FromDecisions(decisions map[string]bool) types.PermissionSet {
	return types.PermissionSet{
		SystemInfo: types.SystemInfoPermissions{
			CPU:    decisions[CPU],
			Memory: decisions[Memory],
		},
		Network: types.NetworkPermissions{Enabled: decisions[Network]},
	}
}
