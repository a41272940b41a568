// Package permission decides whether a widget may use a gated capability.
//
// A permission must be declared in the widget's manifest, granted by the
// user (prompted once, then remembered) and within the widget's rate budget.
// Authorize applies those checks in that order so a denied call never
// consumes rate budget and never reaches the capability implementation.
//
// Gated permissions:
//   - systemInfo.cpu: read CPU usage
//   - systemInfo.memory: read memory usage
//   - network: fetch from allowed domains
package permission
