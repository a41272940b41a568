package types

// Request is a capability request issued by a widget
type Request struct {
	Capability string                 `json:"capability" binding:"required"`
	Args       map[string]interface{} `json:"args"`
}

// ErrorBody is the uniform error shape returned to the presentation layer
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Response is the uniform capability response envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// Caller identifies the widget instance issuing a request
type Caller struct {
	InstanceID string `json:"instance_id"`
	WidgetID   string `json:"widget_id"`
	WidgetName string `json:"widget_name"`
	// Declared is the descriptor's permission set, never the effective one
	Declared PermissionSet `json:"-"`
}

// BoundsRequest carries move/resize hooks from the presentation layer
type BoundsRequest struct {
	Position *Position `json:"position,omitempty"`
	Size     *Size     `json:"size,omitempty"`
}

// EventRequest delivers a host event to a widget sandbox
type EventRequest struct {
	Event   string      `json:"event" binding:"required"`
	Payload interface{} `json:"payload"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Allow bool   `json:"allow,omitempty"`
}
