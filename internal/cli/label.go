package cli

import (
	"fmt"

	"github.com/blaugold/explo/internal/output"
	"github.com/blaugold/explo/internal/session"
)

// LabelCmd shows the label a session launching program would get
type LabelCmd struct {
	Program string `arg:"" help:"Program path from the launch configuration"`
}

// LabelOutput is the NDJSON form of a derived label
type LabelOutput struct {
	Type          string `json:"type"` // "label"
	SchemaVersion int    `json:"schemaVersion"`
	Program       string `json:"program"`
	Workspace     string `json:"workspace"`
	Label         string `json:"label"`
}

// Run executes the label command
func (c *LabelCmd) Run(globals *Globals) error {
	root := globals.workspaceRoot()
	label := session.DeriveLabel(root, c.Program)

	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(LabelOutput{
			Type:          "label",
			SchemaVersion: output.SchemaVersion,
			Program:       c.Program,
			Workspace:     root,
			Label:         label,
		})
	}
	fmt.Fprintln(globals.Stdout, label)
	return nil
}
