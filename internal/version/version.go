// Package version holds build identification injected at link time:
//
//	go build -ldflags "-X .../internal/version.Version=v1.2.0 ..."
package version

var (
	// Version is the release version of the controller tooling.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)
