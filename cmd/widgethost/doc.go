// Package main is the entry point for the WidgetHost supervisor.
//
// The host discovers widgets in a directory, runs each instance in a
// supervised sandbox and brokers its capability requests (system info,
// network, storage, window control, permissions) through a single
// authorization pipeline. A presentation layer connects over HTTP and the
// /stream WebSocket to render windows and answer permission prompts.
//
// Commands:
//
//	widgethost serve [--port 8420] [--widgets ./widgets] [--db ./widgethost.db]
//	widgethost scan  [--widgets ./widgets] [--json]
//	widgethost state [--db ./widgethost.db] [--running]
//
// Configuration:
//   - Environment variables (12-factor)
//   - TOML file via --config or WIDGETHOST_CONFIG
//   - CLI flags (override both)
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown; running widgets are restored on
//     the next start
package main
