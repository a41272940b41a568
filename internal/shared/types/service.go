package types

// Category groups capability providers
type Category string

const (
	CategorySystem      Category = "system"
	CategoryNetwork     Category = "network"
	CategoryStorage     Category = "storage"
	CategoryWindow      Category = "window"
	CategoryPermissions Category = "permissions"
)

// Service describes a capability provider
type Service struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Category     Category     `json:"category"`
	Capabilities []Capability `json:"capabilities"`
}

// Capability is one permission-gated operation a widget may request
type Capability struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// Permission names the grant required before execution; empty means none
	Permission string `json:"permission,omitempty"`
	// Schema is a JSON schema for the request arguments
	Schema string `json:"-"`
}
