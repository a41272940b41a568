// Package providers groups the capability providers a widget can reach
// through the message broker.
//
// Each subpackage implements broker.Provider for one service:
//   - system: CPU and memory usage (systemInfo.cpu, systemInfo.memory)
//   - network: HTTP fetch limited to the widget's allowed domains (network)
//   - storage: key-value storage namespaced by widget id
//   - window: move, resize and close the calling instance
//   - permissions: check and request the caller's permissions
//
// Provider Interface:
//   - Definition(): service metadata, capability permissions and argument schemas
//   - Execute(): runs a capability for an already authorized caller
//
// Example Usage:
//
//	b := broker.New(grants, broker.Config{}, logger)
//	b.Register(system.NewProvider(nil))
//	res := b.Handle(ctx, caller, types.Request{Capability: "system.getCPU"})
package providers
