// Package buildinfo holds version metadata injected at link time via
// -ldflags, so cmd/server can stamp it onto the running binary without
// internal/cli needing to know how it got there.
package buildinfo

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)
