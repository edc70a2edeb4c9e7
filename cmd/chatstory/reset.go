package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func resetCmd(flags *globalFlags) *cobra.Command {
	var keepTutorial bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete saved progress for the configured slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.saver.Reset(cmd.Context()); err != nil {
				return err
			}
			if !keepTutorial {
				if err := a.saver.ClearTutorial(cmd.Context()); err != nil {
					return err
				}
			}
			a.logger.Info("Saved progress reset", "slot", a.saver.Slot(), "tutorial_cleared", !keepTutorial)
			fmt.Fprintf(cmd.OutOrStdout(), "Progress in slot %q has been reset.\n", a.saver.Slot())
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepTutorial, "keep-tutorial", false, "Do not show the tutorial again")
	return cmd
}
