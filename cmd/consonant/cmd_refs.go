package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRefsCmd(env *cliEnv) *cobra.Command {
	var aliases bool

	cmd := &cobra.Command{
		Use:   "refs",
		Short: "List branches and tags with their head commits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := env.openStore()
			if err != nil {
				return err
			}
			refs, err := s.Refs()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range refs {
				if aliases {
					fmt.Fprintf(out, "%s %s %s %s\n", r.Head.SHA, r.Type, r.Name, strings.Join(r.Aliases, ","))
				} else {
					fmt.Fprintf(out, "%s %s %s\n", r.Head.SHA, r.Type, r.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&aliases, "aliases", false, "show the short names each ref answers to")
	return cmd
}
