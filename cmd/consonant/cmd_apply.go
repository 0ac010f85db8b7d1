package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/consonant/pkg/loader"
	"github.com/odvcencio/consonant/pkg/local"
	"github.com/odvcencio/consonant/pkg/store"
	"github.com/odvcencio/consonant/pkg/transaction"
)

func newApplyCmd(env *cliEnv) *cobra.Command {
	var dryRun, canonical bool

	cmd := &cobra.Command{
		Use:   "apply <file|->",
		Short: "Apply a MIME transaction to the store",
		Long: "Apply reads a multipart MIME transaction from a file, or from stdin when the\n" +
			"argument is \"-\", validates the resulting commit and advances the target ref.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := readTransaction(cmd, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if canonical {
				data, err := transaction.Marshal(tx)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			s, err := env.openStore()
			if err != nil {
				return err
			}

			if dryRun {
				candidate, err := s.Prepare(tx)
				if err != nil {
					return err
				}
				if err := s.Validate(candidate); err != nil {
					return reportDefects(out, err)
				}
				fmt.Fprintf(out, "ok: candidate %s validates, %s not updated\n", candidate.SHA, tx.Commit().Target)
				return nil
			}

			c, err := s.ApplyTransaction(tx)
			if err != nil {
				if errors.Is(err, local.ErrValidationFailed) {
					return reportDefects(out, err)
				}
				return err
			}
			fmt.Fprintf(out, "%s %s\n", c.SHA, tx.Commit().Target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "prepare and validate without updating the target ref")
	cmd.Flags().BoolVar(&canonical, "canonical", false, "print the parsed transaction in canonical form and exit")
	return cmd
}

func readTransaction(cmd *cobra.Command, path string) (*transaction.Transaction, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open transaction: %w", err)
		}
		defer f.Close()
		r = f
	}
	return transaction.ParseReader(r)
}

// reportDefects lists every validation error of err on out and returns a
// summary error.
func reportDefects(out io.Writer, err error) error {
	if !loader.IsDefect(err) {
		return err
	}
	errs := loader.Errors(err)
	for _, e := range errs {
		fmt.Fprintf(out, "error: %v\n", e)
	}
	return fmt.Errorf("validation failed with %d error(s)", len(errs))
}

// formatCommitLine renders c as "<short> <subject>".
func formatCommitLine(c *store.Commit) string {
	return store.ShortSHA(c.SHA) + " " + c.MessageSubject()
}
