package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/consonant/pkg/repo"
	"github.com/odvcencio/consonant/pkg/store"
)

func newLogCmd(env *cliEnv) *cobra.Command {
	var oneline, showSignature bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the commit history of the selected ref",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, head, err := env.storeCommit("")
			if err != nil {
				return err
			}
			r := s.Repository()
			native, _ := r.(*repo.Repo)
			if showSignature && native == nil {
				return fmt.Errorf("--show-signature: %w", errNativeOnly)
			}

			var commits []*store.Commit
			if native != nil {
				commits, err = native.Log(head.SHA, limit)
			} else {
				commits, err = firstParentHistory(r, head, limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range commits {
				if oneline {
					fmt.Fprintln(out, formatCommitLine(c))
					continue
				}
				fmt.Fprintf(out, "commit %s\n", c.SHA)
				if showSignature {
					printSignature(out, native, c.SHA)
				}
				fmt.Fprintf(out, "Author: %s\n", c.Author)
				date := c.AuthorDate
				if t, err := store.DateTime(c.AuthorDate); err == nil {
					date = t.Format("2006-01-02 15:04:05 -0700")
				}
				fmt.Fprintf(out, "Date:   %s\n", date)
				fmt.Fprintln(out)
				fmt.Fprintf(out, "    %s\n", c.MessageSubject())
				if body := c.MessageBody(); body != "" {
					fmt.Fprintln(out)
					fmt.Fprintf(out, "    %s\n", body)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "show each commit on a single line")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits to show")
	cmd.Flags().BoolVar(&showSignature, "show-signature", false, "verify and show commit signatures")
	return cmd
}

func firstParentHistory(r store.Repository, head *store.Commit, limit int) ([]*store.Commit, error) {
	commits := []*store.Commit{head}
	for c := head; len(commits) < limit && len(c.Parents) > 0; {
		next, err := r.ReadCommit(c.Parents[0])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				break
			}
			return nil, fmt.Errorf("log: read commit %s: %w", c.Parents[0], err)
		}
		commits = append(commits, next)
		c = next
	}
	return commits[:min(len(commits), max(limit, 0))], nil
}

func printSignature(out io.Writer, r *repo.Repo, sha string) {
	signature, payload, err := r.CommitSignature(sha)
	switch {
	case err != nil:
		fmt.Fprintf(out, "Signature: unreadable (%v)\n", err)
	case signature == "":
		fmt.Fprintln(out, "Signature: none")
	default:
		fingerprint, err := verifySSHCommitSignature(signature, payload)
		if err != nil {
			fmt.Fprintf(out, "Signature: BAD (%v)\n", err)
			return
		}
		fmt.Fprintf(out, "Signature: good %s\n", fingerprint)
	}
}
