// Package version holds the build version, set by the main package or
// ldflags.
package version

// Version is the build version, vX.Y.Z or vX.Y.Z-dev.
var Version = "v0.1.0-dev"

// BuildTime is the build timestamp.
var BuildTime = "unknown"

// UserAgent identifies cs2-int in requests to ASF and store data hosts.
func UserAgent() string {
	return "cs2-int/" + Version
}
