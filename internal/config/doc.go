// Package config loads CLI configuration using Viper with CUE as the file
// format.
//
// Configuration is read from config.cue in the user config directory
// ($XDG_CONFIG_HOME/dhall on Linux), or from an explicit --config path. The
// file is validated against the embedded #Config schema before it is merged
// over the defaults. Every key can be overridden from the environment with
// the DHALL_ prefix, dots replaced by underscores: DHALL_IMPORTS_TIMEOUT=5s.
package config
