// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// A ring buffer keeps the most recent entries for the logs API endpoint and
// for SSE replay.
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "auto",      // Output format: text, json, or auto
//		Modules: map[string]string{
//			"capture":  "debug",  // Per-module overrides
//			"controls": "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("capture")
//	logger.Info("Streaming started", "device", "/dev/video3")
//	logger.Debug("Buffer dequeued", "index", idx)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("capture").With("device", path)
//	logger.Info("Buffers mapped")  // Includes device in all logs
//
// # Format
//
// With format "auto" the stdout handler writes text when connected to a
// terminal and JSON otherwise, so interactive runs stay readable and
// service logs stay machine-parseable.
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t viewfinder              # All viewfinder logs
//	journalctl -t viewfinder -f           # Follow live
//	journalctl -t viewfinder -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t viewfinder MODULE=capture
//	journalctl -t viewfinder DEVICE=/dev/video3
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "auto"
//
//	[logging.modules]
//	capture = "debug"
//	api = "warn"
package logging
