// Package logging provides structured logging for LedFx Core.
//
// It wraps the standard log/slog package so every component logs with the
// same handler, level and default fields (service, version).
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Components take a child logger tagged with their name:
//
//	logger := logging.New(cfg.Logging, version)
//	devLog := logger.Component("device")
//	devLog.Warn("flush failed", "device_id", id, "error", err)
//
// Frame data is never logged above debug level; the render path runs at
// the display refresh rate.
package logging
