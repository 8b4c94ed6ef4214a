// Package version holds build metadata of the perlsense CLI.
// The variables can be overridden at build time via -ldflags.
package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fatih/color"
)

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Colored paints major, minor and patch of v; a suffix after '-' or '+'
// stays plain. Strings that are not x.y.z come back unchanged.
func Colored(v string) string {
	core, suffix := v, ""
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		core, suffix = v[:i], v[i:]
	}
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return v
	}
	return majorColor.Sprint(parts[0]) + "." + minorColor.Sprint(parts[1]) + "." + patchColor.Sprint(parts[2]) + suffix
}

// Long is the multi-line form printed by `perlsense version`.
func Long() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "perlsense %s\n", Colored(Version))
	if GitCommit != "" {
		fmt.Fprintf(&sb, "commit:  %s\n", GitCommit)
	}
	if BuildDate != "" {
		fmt.Fprintf(&sb, "built:   %s\n", BuildDate)
	}
	fmt.Fprintf(&sb, "go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return sb.String()
}
