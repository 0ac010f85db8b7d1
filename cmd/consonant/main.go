package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0-dev"

func main() {
	if err := execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// execute runs the command line args and releases whatever the command
// opened.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	env := &cliEnv{stderr: stderr}
	root := newRootCmd(env)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if cerr := env.close(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(env *cliEnv) *cobra.Command {
	root := &cobra.Command{
		Use:           "consonant",
		Short:         "Schema-governed object store on a content-addressed repository",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.setup()
		},
	}
	root.PersistentFlags().StringVar(&env.configPath, "config", "consonant.toml", "config file")
	root.PersistentFlags().StringVar(&env.ref, "ref", "", "ref to read (default from config)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(env))
	root.AddCommand(newNameCmd(env))
	root.AddCommand(newSchemaCmd(env))
	root.AddCommand(newServicesCmd(env))
	root.AddCommand(newClassesCmd(env))
	root.AddCommand(newObjectsCmd(env))
	root.AddCommand(newObjectCmd(env))
	root.AddCommand(newRawCmd(env))
	root.AddCommand(newValidateCmd(env))
	root.AddCommand(newApplyCmd(env))
	root.AddCommand(newRefsCmd(env))
	root.AddCommand(newLogCmd(env))
	root.AddCommand(newReflogCmd(env))
	root.AddCommand(newTagCmd(env))
	root.AddCommand(newBranchCmd(env))
	root.AddCommand(newGcCmd(env))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "consonant %s\n", version)
		},
	}
}
