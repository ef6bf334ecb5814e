// Package security summarizes the hardening posture of a bankauth
// configuration for operators.
package security
