// Package config defines the application configuration structures and the
// logic for loading them from environment variables and optional config files.
package config
