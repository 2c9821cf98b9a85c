package app

// Version is the semantic version of mgmtd, set at build time via -ldflags.
var Version = "dev"

// Build is the git commit hash or build identifier, set at build time via -ldflags.
var Build = ""

// VersionString joins Version and Build for display.
func VersionString() string {
	if Build == "" {
		return Version
	}
	return Version + " (" + Build + ")"
}
