// Package config provides configuration loading and validation for the VAD filter.
// It handles YAML-based configuration layered over built-in defaults, with
// per-section validation of the windowing, audio, output and logging settings.
package config
