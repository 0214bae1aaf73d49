package internal

// Overwritten by ldflags during build, e.g.
// -X github.com/chukul/capsulectl/internal.CurrentVersion=v0.2.0
var (
	CurrentVersion = "v0.1.0"
	Commit         = ""
)
