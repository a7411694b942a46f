// Package config loads the feedwatch YAML configuration.
//
// Files may reference environment variables with ${VAR} syntax, which
// is how secrets like the feed token should be supplied.
package config
