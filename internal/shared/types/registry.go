package types

// Author identifies the widget author
type Author struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// SizeConstraints defines default and optional bounds for a widget window
type SizeConstraints struct {
	Default Size  `json:"default" yaml:"default"`
	Min     *Size `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *Size `json:"max,omitempty" yaml:"max,omitempty"`
}

// Clamp bounds s to the constraints
func (c SizeConstraints) Clamp(s Size) Size {
	if c.Min != nil {
		s.Width = max(s.Width, c.Min.Width)
		s.Height = max(s.Height, c.Min.Height)
	}
	if c.Max != nil {
		s.Width = min(s.Width, c.Max.Width)
		s.Height = min(s.Height, c.Max.Height)
	}
	return s
}

// WidgetDescriptor is the static manifest of an installed widget
type WidgetDescriptor struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	DisplayName string          `json:"displayName" yaml:"displayName"`
	Version     string          `json:"version" yaml:"version"`
	Description string          `json:"description" yaml:"description"`
	Author      Author          `json:"author" yaml:"author"`
	Permissions PermissionSet   `json:"permissions" yaml:"permissions"`
	Sizes       SizeConstraints `json:"sizes" yaml:"sizes"`
	EntryPoint  string          `json:"entryPoint" yaml:"entryPoint"`

	// Script is an optional background logic file run in the widget sandbox
	Script string `json:"script,omitempty" yaml:"script,omitempty"`

	// Dir is the directory the manifest was loaded from
	Dir string `json:"-" yaml:"-"`
}

// Clone returns a deep copy so callers cannot mutate registry state
func (d *WidgetDescriptor) Clone() *WidgetDescriptor {
	c := *d
	c.Permissions = d.Permissions.Clone()
	if d.Sizes.Min != nil {
		m := *d.Sizes.Min
		c.Sizes.Min = &m
	}
	if d.Sizes.Max != nil {
		m := *d.Sizes.Max
		c.Sizes.Max = &m
	}
	return &c
}

// Label returns the name shown to users
func (d *WidgetDescriptor) Label() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// RegistryStats contains registry statistics
type RegistryStats struct {
	Widgets  int `json:"widgets"`
	Rejected int `json:"rejected"`
}
