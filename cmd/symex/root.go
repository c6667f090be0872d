package main

import (
	"io"

	"github.com/benbjohnson/symex"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCommand returns the "symex" command with all subcommands attached.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "symex",
		Short:         "symex - symbolic execution of goto programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	newLogger := func() (*zap.Logger, error) {
		if !verbose {
			return zap.NewNop(), nil
		}
		config := zap.NewDevelopmentConfig()
		config.OutputPaths = []string{"stderr"}
		return config.Build()
	}

	root.AddCommand(newRunCommand(newLogger))
	root.AddCommand(newShowCommand())
	root.AddCommand(newDotCommand())
	return root
}

// loadProgram reads the program file named by the single argument.
func loadProgram(args []string) (*symex.Program, error) {
	return symex.LoadProgram(args[0])
}
