package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/blaugold/explo/internal/output"
)

// VersionCmd shows version information
type VersionCmd struct{}

// VersionOutput represents the NDJSON output of the version command
type VersionOutput struct {
	Type          string `json:"type"` // "version"
	SchemaVersion int    `json:"schemaVersion"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	GoVersion     string `json:"go_version,omitempty"`
	GoInstall     string `json:"go_install"`
}

const goInstallCmd = "go install github.com/blaugold/explo/cmd/explo@latest"

// Run executes the version command
func (c *VersionCmd) Run(globals *Globals) error {
	goVersion := ""
	if info, ok := debug.ReadBuildInfo(); ok {
		goVersion = info.GoVersion
	}

	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(VersionOutput{
			Type:          "version",
			SchemaVersion: output.SchemaVersion,
			Version:       Version,
			Commit:        Commit,
			GoVersion:     goVersion,
			GoInstall:     goInstallCmd,
		})
	}

	fmt.Fprintf(globals.Stdout, "explo version %s (%s)\n", Version, Commit)
	if goVersion != "" {
		fmt.Fprintf(globals.Stdout, "Built with %s\n", goVersion)
	}
	fmt.Fprintln(globals.Stdout)
	fmt.Fprintln(globals.Stdout, "To upgrade via Go:")
	fmt.Fprintf(globals.Stdout, "  %s\n", goInstallCmd)
	return nil
}
