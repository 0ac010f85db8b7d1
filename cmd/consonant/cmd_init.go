package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/consonant/pkg/config"
	"github.com/odvcencio/consonant/pkg/document"
	"github.com/odvcencio/consonant/pkg/expressions"
	"github.com/odvcencio/consonant/pkg/gitrepo"
	"github.com/odvcencio/consonant/pkg/repo"
	"github.com/odvcencio/consonant/pkg/store"
)

func newInitCmd(env *cliEnv) *cobra.Command {
	var name, schemaName, author string

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a repository holding an empty store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !expressions.ValidStoreName(name) {
				return fmt.Errorf("invalid store name %q", name)
			}
			if !expressions.ValidSchemaName(schemaName) {
				return fmt.Errorf("invalid schema name %q", schemaName)
			}
			if !expressions.ValidIdentity(author) {
				return fmt.Errorf("invalid author %q", author)
			}

			path := env.cfg.RepositoryPath()
			if len(args) > 0 {
				path = args[0]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			metadata, err := document.EncodeYAML(map[string]any{"name": name, "schema": schemaName})
			if err != nil {
				return err
			}
			date := store.FormatDate(time.Now())

			var head, where string
			switch env.cfg.Repository.Backend {
			case config.BackendGit:
				r, err := gitrepo.Init(abs, false)
				if err != nil {
					return err
				}
				if head, err = store.Bootstrap(r, env.ref, metadata, author, date, "Initial commit"); err != nil {
					return err
				}
				where = filepath.Join(abs, ".git")
			default:
				r, err := repo.Init(abs)
				if err != nil {
					return err
				}
				if head, err = r.InitialCommit(metadata, author, date, "Initial commit"); err != nil {
					return err
				}
				where = r.Dir
			}

			env.logger.Debug().Str("path", where).Str("commit", head).Msg("store initialized")
			fmt.Fprintf(cmd.OutOrStdout(), "initialized store %s in %s at %s\n", name, where+string(filepath.Separator), store.ShortSHA(head))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "store name")
	cmd.Flags().StringVar(&schemaName, "schema", "", "schema name")
	cmd.Flags().StringVar(&author, "author", defaultIdentity(), "author identity for the initial commit")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}
