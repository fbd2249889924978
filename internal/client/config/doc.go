// Package config loads runtime configuration for the sentinel CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the backend REST API
//	-w string   base URL of the websocket endpoint
//	-d string   sqlite DSN of the local cache
//
// # JSON schema
//
//	{
//	  "server_addr": "http://127.0.0.1:8000",
//	  "ws_addr": "ws://127.0.0.1:8000",
//	  "cache_dsn": "sentinel.db"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
