// Package config loads runtime configuration for the dares CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables named DARES_* (see parseEnv).
//  3. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-b string     identity backend: firebase or local
//	-d string     datastore backend: postgrest, sqlite or postgres
//	-u string     datastore REST base URL
//	-dsn string   datastore DSN for the sqlite and postgres backends
//	-s string     path of the local session database
//	-r duration   token refresh interval
//	-l string     log level
//
// # JSON schema
//
// Intervals use timex.Duration, so they can be strings like "30m" or integer
// nanoseconds:
//
//	{
//	  "identity_backend": "firebase",
//	  "identity_api_key": "AIza...",
//	  "datastore_backend": "postgrest",
//	  "datastore_url": "https://xyz.supabase.co",
//	  "datastore_anon_key": "eyJ...",
//	  "refresh_interval": "30m"
//	}
//
// Missing or invalid values are not fatal while loading: Validate reports
// them as a *Error, and Status renders which values are set with secrets
// masked.
package config
