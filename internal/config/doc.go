// Package config loads and validates pipeline configuration from YAML.
//
// Secrets may be referenced as ${VAR} and are expanded from the environment
// at load time. Optional fields fall back to the Default* constants.
package config
