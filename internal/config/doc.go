// Package config provides YAML-backed configuration with environment
// overrides and validation for the orbitdash resource layer.
//
// Configuration is loaded in layers: defaults first, then an optional YAML
// file, then environment variables. All settings are process-wide constants;
// no runtime reconfiguration is supported.
package config
