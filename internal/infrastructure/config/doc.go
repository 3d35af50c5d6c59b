// Package config loads process configuration from environment variables
// using kelseyhightower/envconfig. Every field carries a default, so an empty
// environment yields the same values as Default.
package config
