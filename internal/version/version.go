// Package version holds build identification, overridable with -ldflags.
package version

import "runtime/debug"

var (
	AppName   = "musicbot"
	Version   = "dev"
	GoVersion = goVersion()
)

func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// String returns "name version (go)".
func String() string {
	return AppName + " " + Version + " (" + GoVersion + ")"
}
