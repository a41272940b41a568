// Package types provides shared data structures for the widget host.
//
// This package defines the data model passed between the supervisor, the
// permission broker, the persistence layer and the presentation surface.
//
// Core Types:
//   - WidgetDescriptor: Static manifest of an installed widget
//   - WidgetInstance: One running widget owned by the supervisor
//   - PermissionSet: Declared or effective capability grants
//   - PersistedWidgetState: Durable per-instance record used for restore
//   - Settings: Global host settings
//
// Broker Types:
//   - Request, Response: Capability request envelope
//   - Service, Capability: Provider definitions registered with the broker
//   - Caller: Identity of the widget issuing a request
//
// Example Usage:
//
//	inst := types.WidgetInstance{
//	    InstanceID: id.NewInstanceID().String(),
//	    WidgetID:   "clock",
//	    Position:   types.Position{X: 40, Y: 40},
//	    Size:       desc.Sizes.Default,
//	}
package types
