// Package config provides configuration loading and validation for the
// phase-feedback audio engine. It handles YAML-based configuration with
// per-section struct validation and built-in defaults.
package config
