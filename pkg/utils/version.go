// Package utils holds small helpers shared across reqvibe commands
// that have no better home.
package utils

// Set at build time via -ldflags by the release pipeline.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
