// Package version holds build information for redistools binaries.
//
// The values are set at build time using ldflags:
//
//	go build -ldflags "-X github.com/go-i2p/redistools/version.Version=1.0.0"
//
// Development builds report "dev".
package version

// Version is the release version.
var Version = "dev"

// GitCommit is the short commit hash.
// Example: -X github.com/go-i2p/redistools/version.GitCommit=$(git rev-parse --short HEAD)
var GitCommit = ""

// BuildTime is when the binary was built, in RFC 3339.
var BuildTime = ""

// Full returns the version with commit and build time appended when known.
func Full() string {
	v := Version
	if GitCommit != "" {
		v += "-" + GitCommit
	}
	if BuildTime != "" {
		v += " (" + BuildTime + ")"
	}
	return v
}
