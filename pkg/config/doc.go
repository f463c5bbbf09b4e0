// Package config loads and validates service configuration from environment
// variables with the PULSE_ prefix.
package config
