package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGcCmd(env *cliEnv) *cobra.Command {
	var verbose, dryRun bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove objects unreachable from any ref",
		Long:  "gc deletes loose objects no ref reaches, such as candidate commits of rejected transactions.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := env.native()
			if err != nil {
				return err
			}

			prune, verb := r.Prune, "removed"
			if dryRun {
				prune, verb = r.Garbage, "would remove"
			}
			summary, err := prune()
			if err != nil {
				return err
			}
			env.logger.Debug().Int("reachable", summary.Reachable).Int("removed", len(summary.Removed)).Msg("pruned")

			out := cmd.OutOrStdout()
			if len(summary.Removed) == 0 {
				fmt.Fprintln(out, "nothing to prune")
				return nil
			}
			if verbose {
				for _, h := range summary.Removed {
					fmt.Fprintf(out, "%s %s\n", verb, h)
				}
			}
			fmt.Fprintf(out, "%s %d unreachable object(s), kept %d\n", verb, len(summary.Removed), summary.Reachable)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list removed objects")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report unreachable objects without removing them")
	return cmd
}
