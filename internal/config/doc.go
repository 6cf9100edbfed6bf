// Package config loads plugbus settings.
//
// Settings come from three sources, later ones winning:
//
//  1. Built-in defaults (Default)
//  2. A TOML file, by default ~/.config/plugbus/config.toml
//  3. PLUGBUS_* environment variables
//
// Example file:
//
//	[plugins]
//	paths = ["./plugins"]
//	watch = true
//	debounce = "250ms"
//	parallel = 4
//	execution_timeout = "5s"
//
//	[plugins.config.chat-guard]
//	banned = ["spam"]
//
//	[dispatch]
//	handler_timeout = "2s"
//	monitor_guard = true
//
//	[log]
//	level = "debug"
//	format = "json"
//	file = "/var/log/plugbus.log"
//
//	[metrics]
//	enabled = true
//	interval = "30s"
//
// Environment variables mirror the file layout: PLUGBUS_PLUGINS_PATHS
// (comma separated), PLUGBUS_DISPATCH_HANDLER_TIMEOUT, PLUGBUS_LOG_LEVEL
// and so on. Per-plugin config tables have no environment form.
package config
