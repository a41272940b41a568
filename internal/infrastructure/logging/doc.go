// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components receive a *zap.Logger and tag entries with the widget_id,
// instance_id and capability fields defined here so log lines from one
// widget can be grepped together.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Widget launched", logging.Widget("clock"), logging.Instance(instID))
package logging
