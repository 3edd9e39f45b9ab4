package version

// Version is the gardener release, set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/gardener/internal/version.Version=v0.3.0".
var Version = "dev"

// Build metadata, set the same way.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by `gardener version`.
func String() string {
	return "gardener " + Version + " (commit " + GitCommit + ", built " + BuildTime + ")"
}
