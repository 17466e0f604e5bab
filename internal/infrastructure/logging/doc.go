// Package logging provides structured logging for the gateway.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - Text output for interactive use, JSON for log collectors
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - stderr by default: stdout belongs to the snapshot, items and thing modes
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("inverter connected", "model", info.Model)
//	logger.Warn("read failed", "remaining", n, "error", err)
//
// Never log the MQTT password; config.MQTTAuthConfig masks it when formatted.
package logging
