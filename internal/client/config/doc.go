// Package config loads runtime configuration for the journal client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected with -c or -config. Files ending in
//     .yaml or .yml are read as YAML, anything else as JSON.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-w string   websocket URL of the realtime feed
//	-d string   local database path
//	-s string   session file path
//	-l string   log file path
//	-k int      sync cooldown (seconds)
//	-i int      online status check interval (seconds)
//
// # File schema
//
// Intervals use timex.Duration, so values can be strings like "3s" or
// integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "events_url": "ws://127.0.0.1:8080/events",
//	  "database_path": "cbtjournal.db",
//	  "session_file": "session.json",
//	  "log_file": "cbtjournal.log",
//	  "sync_cooldown": "5s",
//	  "online_check_interval": "3s"
//	}
//
// Keys missing from the file keep their earlier value.
package config
