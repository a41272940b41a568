// Package registry loads and holds the installed widget manifests.
//
// Manifests live at <widgetsDir>/<widget>/manifest.json (or manifest.yaml).
// Each one is checked against an embedded JSON schema and then for semantic
// consistency. Malformed manifests are logged and skipped; they never stop a
// scan.
//
// The registry hands out copies so descriptors stay immutable for the run.
package registry
