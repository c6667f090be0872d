package main

import (
	"github.com/spf13/cobra"
)

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show program.yaml",
		Short: "Print the goto program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loadProgram(args)
			if err != nil {
				return err
			}
			_, err = prog.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
}
