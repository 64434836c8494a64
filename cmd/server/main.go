// Command server is the relaymux binary entrypoint.
package main

import (
	"github.com/relaymux/gateway/internal/buildinfo"
	"github.com/relaymux/gateway/internal/cli"
)

// Version, Commit and BuildDate are stamped via -ldflags at link time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	cli.Execute()
}
