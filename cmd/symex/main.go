package main

import (
	"fmt"
	"io"
	"os"

	"github.com/benbjohnson/symex"
)

func main() {
	os.Exit(Main(os.Args[1:], os.Stdout, os.Stderr))
}

// Main executes the command line and returns the process exit code.
// Unsupported constructs and internal consistency violations are reported
// separately from ordinary errors.
func Main(args []string, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*symex.InvariantError)
			if !ok {
				panic(r)
			}
			fmt.Fprintf(stderr, "internal error: %s\n", e.Message)
			code = 2
		}
	}()

	cmd := NewRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		if symex.IsUnsupported(err) {
			fmt.Fprintf(stderr, "unsupported: %s\n", err)
		} else {
			fmt.Fprintf(stderr, "error: %s\n", err)
		}
		return 1
	}
	return 0
}
