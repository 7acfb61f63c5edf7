// Package config loads and validates relay configuration from YAML.
//
// Configuration is split across:
//   - config.go: struct definitions
//   - defaults.go: default values for optional fields
//   - validate.go: required-field and range checks
//   - loader.go: file loading with ${VAR} environment expansion
package config
