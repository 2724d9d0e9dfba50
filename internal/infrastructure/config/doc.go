// Package config loads and validates Rover Core configuration.
//
// Configuration comes from three layers, each overriding the last:
// hardcoded defaults, a YAML file, and ROVERCORE_* environment variables.
// Secrets (broker credentials, InfluxDB token) should come from the
// environment rather than the file.
package config
