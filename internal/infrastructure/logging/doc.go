// Package logging provides structured logging for Gray Logic node devices.
//
// This package wraps Go's standard log/slog package so that every
// component logs with the same default fields (service, version, device).
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, cfg.Device.ID, version)
//	logger.Info("node registered", "node", "light1")
//
// *Logger satisfies the small Logger interfaces declared by the node,
// boot and api packages, so it can be passed to them directly.
//
// Never log MQTT passwords or the InfluxDB token.
package logging
