// Package config loads stagerouter settings.
//
// Settings come from, in increasing priority:
//
//  1. Default()
//  2. a config file, selected by extension: .yaml/.yml, .toml, .json/.jsonc
//  3. STAGEROUTER_* environment variables (ApplyEnv)
//  4. command-line flags, applied by the caller
//
// JSON files may contain comments and trailing commas.
package config
