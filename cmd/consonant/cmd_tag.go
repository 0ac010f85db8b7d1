package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/consonant/pkg/repo"
	"github.com/odvcencio/consonant/pkg/store"
)

func newTagCmd(env *cliEnv) *cobra.Command {
	var deleteTag string
	var force bool
	var showHash bool

	cmd := &cobra.Command{
		Use:   "tag [name] [commit]",
		Short: "List, create, or delete tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(deleteTag) != "" {
				if len(args) > 0 {
					return fmt.Errorf("tag --delete does not accept positional args")
				}
				r, err := env.native()
				if err != nil {
					return err
				}
				return r.DeleteTag(deleteTag)
			}

			s, err := env.openStore()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				refs, err := s.Refs()
				if err != nil {
					return err
				}
				for _, r := range refs {
					if r.Type != store.RefTag {
						continue
					}
					name := strings.TrimPrefix(r.Name, "refs/tags/")
					if showHash {
						fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", r.Head.SHA, name)
					} else {
						fmt.Fprintln(cmd.OutOrStdout(), name)
					}
				}
				return nil
			}

			target := ""
			if len(args) == 2 {
				target = args[1]
			}
			c, err := env.commit(s, target)
			if err != nil {
				return err
			}

			name := args[0]
			if r, ok := s.Repository().(*repo.Repo); ok {
				return r.CreateTag(name, c.SHA, force)
			}
			refName := "refs/tags/" + name
			old := ""
			if force {
				if existing, err := s.Repository().ResolveRef(refName); err == nil {
					old = existing
				}
			}
			if err := s.Repository().UpdateRef(refName, c.SHA, old); err != nil {
				return fmt.Errorf("create tag %q: %w", name, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteTag, "delete", "d", "", "delete the named tag")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing tag")
	cmd.Flags().BoolVar(&showHash, "show-hash", false, "show tag target hashes when listing")
	return cmd
}
