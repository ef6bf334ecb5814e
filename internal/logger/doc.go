// Package logger builds the service's zap logger and carries a
// request-scoped logger through contexts.
package logger
