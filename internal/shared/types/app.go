package types

import "time"

// Position is the top-left corner of a widget window on screen
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size represents window dimensions
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both dimensions are positive
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// WidgetInstance represents one running widget
type WidgetInstance struct {
	InstanceID   string        `json:"instance_id"`
	WidgetID     string        `json:"widget_id"`
	WindowHandle string        `json:"window_handle"`
	Position     Position      `json:"position"`
	Size         Size          `json:"size"`
	Permissions  PermissionSet `json:"permissions"`
	LaunchedAt   time.Time     `json:"launched_at"`
}

// PersistedWidgetState is the durable record of an instance (for restoration)
type PersistedWidgetState struct {
	WidgetID    string        `json:"widget_id"`
	InstanceID  string        `json:"instance_id"`
	Position    Position      `json:"position"`
	Size        Size          `json:"size"`
	IsRunning   bool          `json:"is_running"`
	LastActive  time.Time     `json:"last_active"`
	Permissions PermissionSet `json:"permissions"`
}

// StateOf builds the persisted form of a live instance
func StateOf(inst WidgetInstance, running bool, at time.Time) PersistedWidgetState {
	return PersistedWidgetState{
		WidgetID:    inst.WidgetID,
		InstanceID:  inst.InstanceID,
		Position:    inst.Position,
		Size:        inst.Size,
		IsRunning:   running,
		LastActive:  at,
		Permissions: inst.Permissions.Clone(),
	}
}

// Settings holds global host settings
type Settings struct {
	AutoRestore bool `json:"autoRestore"`
	MaxWidgets  int  `json:"maxWidgets"`
}

// SettingsPatch is a partial settings update
type SettingsPatch struct {
	AutoRestore *bool `json:"autoRestore,omitempty"`
	MaxWidgets  *int  `json:"maxWidgets,omitempty"`
}

// Apply merges the patch into s
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.AutoRestore != nil {
		s.AutoRestore = *p.AutoRestore
	}
	if p.MaxWidgets != nil {
		s.MaxWidgets = *p.MaxWidgets
	}
	return s
}

// Stats contains supervisor statistics
type Stats struct {
	Running  int `json:"running"`
	Capacity int `json:"capacity"`
	Launched int `json:"launched_total"`
	Crashed  int `json:"crashed_total"`
}
