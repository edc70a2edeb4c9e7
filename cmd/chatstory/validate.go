package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/chat-story/pkg/script"
)

func validateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <script>",
		Short: "Check a script file for errors and authoring mistakes",
		Long: "Parses the script the same way play does, then lists warnings such as " +
			"dangling nextId references, ids out of file order and messages without timestamps.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := &ScriptValidator{strict: strict}
			return v.validateFile(cmd.OutOrStdout(), args[0])
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")
	return cmd
}

type ScriptValidator struct {
	strict bool
}

func (v *ScriptValidator) validateFile(out io.Writer, filename string) error {
	fmt.Fprintf(out, "Validating %s...\n", filename)

	g, err := script.Load(filename)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	issues := g.Lint()
	if len(issues) > 0 {
		lines := make([]string, 0, len(issues))
		for _, issue := range issues {
			lines = append(lines, "  - "+issue.String())
		}
		fmt.Fprintf(out, "%d warning(s):\n%s\n", len(issues), strings.Join(lines, "\n"))
		if v.strict {
			return fmt.Errorf("validation failed: %d warning(s) in %s", len(issues), filename)
		}
	}

	fmt.Fprintf(out, "Script is valid: %d events in %d chats\n", g.Len(), len(g.Chats()))
	return nil
}
