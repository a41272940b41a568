package types

import "slices"

// SystemInfoPermissions gates host telemetry
type SystemInfoPermissions struct {
	CPU    bool `json:"cpu" yaml:"cpu"`
	Memory bool `json:"memory" yaml:"memory"`
}

// NetworkPermissions gates outbound requests
type NetworkPermissions struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	AllowedDomains []string `json:"allowedDomains" yaml:"allowedDomains"`
}

// PermissionSet is a set of capability grants, declared or effective
type PermissionSet struct {
	SystemInfo SystemInfoPermissions `json:"systemInfo" yaml:"systemInfo"`
	Network    NetworkPermissions    `json:"network" yaml:"network"`
}

// Clone returns a deep copy
func (p PermissionSet) Clone() PermissionSet {
	p.Network.AllowedDomains = slices.Clone(p.Network.AllowedDomains)
	return p
}

// Intersect keeps only grants present in both sets.
// Allowed domains always come from the declared side (p).
func (p PermissionSet) Intersect(granted PermissionSet) PermissionSet {
	out := PermissionSet{
		SystemInfo: SystemInfoPermissions{
			CPU:    p.SystemInfo.CPU && granted.SystemInfo.CPU,
			Memory: p.SystemInfo.Memory && granted.SystemInfo.Memory,
		},
		Network: NetworkPermissions{
			Enabled: p.Network.Enabled && granted.Network.Enabled,
		},
	}
	if out.Network.Enabled {
		out.Network.AllowedDomains = slices.Clone(p.Network.AllowedDomains)
	}
	return out
}

// SubsetOf reports whether every grant in p is also present in declared
func (p PermissionSet) SubsetOf(declared PermissionSet) bool {
	if p.SystemInfo.CPU && !declared.SystemInfo.CPU {
		return false
	}
	if p.SystemInfo.Memory && !declared.SystemInfo.Memory {
		return false
	}
	if p.Network.Enabled && !declared.Network.Enabled {
		return false
	}
	for _, d := range p.Network.AllowedDomains {
		if !slices.Contains(declared.Network.AllowedDomains, d) {
			return false
		}
	}
	return true
}
