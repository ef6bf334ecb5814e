// Package config loads bankauthd settings from an optional YAML file, .env
// files and environment variables, in that order of increasing precedence.
package config
