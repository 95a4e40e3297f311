// Package version holds the oyc CLI's version information, overridable at
// build time via -ldflags the way the teacher's CLI does.
package version

import "github.com/fatih/color"

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the CLI.
	Version = majorColor.Sprint("0") + "." + minorColor.Sprint("1") + "." + patchColor.Sprint("0") + "-dev"

	// GitCommit is an optional git commit hash, set via -ldflags.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601, set via -ldflags.
	BuildDate = ""
)
