// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Values from a .env file are picked up when the entry point loads it before
// calling Load.
package config
