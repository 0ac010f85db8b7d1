package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [commit]",
		Short: "Check that a commit conforms to its schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			s, c, err := env.storeCommit(id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := s.Validate(c); err != nil {
				return reportDefects(out, err)
			}
			fmt.Fprintf(out, "ok: %s is valid\n", c.SHA)
			return nil
		},
	}
}
