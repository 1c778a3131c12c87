// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// Every record is fanned out to the sinks that are available:
//   - stdout when a terminal, pipe, or file is connected (text or json)
//   - an optional log file that is truncated at the start of each run
//   - the systemd journal when journald is reachable
//   - an in-memory ring buffer read by the status API
//
// # Usage
//
// Initialize once at startup, after configuration is loaded:
//
//	err := logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		File:   "/var/log/reframer/run.log",
//		Modules: map[string]string{
//			"encode":   "debug",
//			"pipeline": "warn",
//		},
//	})
//
// Loggers obtained with GetLogger before Initialize stay valid; their
// level and sinks follow the latest configuration.
//
//	logger := logging.GetLogger("encode").With("unit", name)
//	logger.Info("Attempt started", "encoder", "h264_nvenc")
//
// # Viewing Logs
//
//	journalctl -t reframer -f
//	journalctl -t reframer MODULE=encode -p warning
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "text"
//	file = ""
//
//	[logging.modules]
//	encode = "debug"
package logging
