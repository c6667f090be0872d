package main

import (
	"fmt"
	"os"

	"github.com/benbjohnson/symex"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newDotCommand() *cobra.Command {
	var funcName, output string
	var coverage bool

	cmd := &cobra.Command{
		Use:   "dot program.yaml",
		Short: "Write the control flow graph of a function in GraphViz format",
		Long: `Outputs the control flow graph of a function, including the join point of
every forward goto. With --coverage the program is executed first and
edges are labeled with their execution counts.
Example) symex dot --func main -o main.dot prog.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loadProgram(args)
			if err != nil {
				return err
			}
			if funcName == "" {
				funcName = prog.EntryPoint
			}
			fn := prog.Function(funcName)
			if fn == nil {
				return errors.Errorf("function not found: %s", funcName)
			}

			var cov *symex.Coverage
			if coverage {
				config := symex.DefaultConfig()
				config.Coverage = true
				e := symex.NewExecutor(prog, symex.NewEquation(), config)
				if _, err := e.SymexFromEntryPoint(); err != nil {
					return err
				}
				cov = e.Coverage
			}

			if output == "" {
				return symex.WriteDot(cmd.OutOrStdout(), fn, cov)
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := symex.WriteDot(f, fn, cov); err != nil {
				return err
			} else if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "GraphViz file created: %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&funcName, "func", "", "Function to render (default: entry point)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path for the GraphViz file")
	cmd.Flags().BoolVar(&coverage, "coverage", false, "Label edges with execution counts")
	return cmd
}
