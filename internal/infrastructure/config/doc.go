// Package config provides 12-factor configuration management for the widget host.
//
// Configuration is loaded from environment variables with sensible defaults.
// An optional TOML file (WIDGETHOST_CONFIG) is overlaid on top, and CLI flags
// override both.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP HTTP rate limiting
//   - Widgets: Manifest directory, instance cap, fades and call timeout
//   - Capability: Per-widget capability rate limits and permission prompts
//   - State: SQLite path, write debounce and auto-restore
//
// Example Usage:
//
//	cfg, err := config.LoadWithFile(os.Getenv("WIDGETHOST_CONFIG"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Host listening on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - PORT, HOST, LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - WIDGETS_DIR, WIDGET_MAX_INSTANCES, WIDGET_FADE_IN, WIDGET_FADE_OUT, WIDGET_CALL_TIMEOUT
//   - CAPABILITY_RATE_LIMIT, CAPABILITY_RATE_WINDOW, RATE_SWEEP_INTERVAL, RATE_ENTRY_TTL
//   - PERMISSION_PROMPT_TIMEOUT
//   - STATE_DB_PATH, STATE_DEBOUNCE, AUTO_RESTORE
package config
