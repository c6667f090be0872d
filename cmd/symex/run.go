package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/benbjohnson/symex"
	"github.com/benbjohnson/symex/z3"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runOptions holds the flags of the "run" subcommand.
type runOptions struct {
	configPath  string
	depth       int
	unwind      int
	paths       string
	seed        int64
	propagation bool
	showVCC     bool
	coverage    bool
	decide      bool
	replay      map[string]string
}

func newRunCommand(newLogger func() (*zap.Logger, error)) *cobra.Command {
	var opt runOptions

	cmd := &cobra.Command{
		Use:   "run program.yaml",
		Short: "Symbolically execute a goto program",
		Long: `Executes the program from its entry point and reports the verification
conditions of every path. Without --paths all paths are executed at once
and merged at join points; with --paths each path is explored separately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := opt.config(cmd)
			if err != nil {
				return err
			}
			prog, err := loadProgram(args)
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return runProgram(cmd.OutOrStdout(), logger, prog, config, &opt)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opt.configPath, "config", "", "Path to a YAML configuration file")
	flags.IntVar(&opt.depth, "depth", 0, "Maximum number of instructions per path (0 = unbounded)")
	flags.IntVar(&opt.unwind, "unwind", 0, "Loop unwinding bound (0 = unbounded)")
	flags.StringVar(&opt.paths, "paths", "", "Explore paths one at a time: lifo, fifo or random")
	flags.Int64Var(&opt.seed, "seed", 0, "Seed for random path exploration")
	flags.BoolVar(&opt.propagation, "propagation", false, "Enable constant propagation")
	flags.BoolVar(&opt.showVCC, "show-vcc", false, "Print the SSA equation of every path")
	flags.BoolVar(&opt.coverage, "coverage", false, "Print instruction transition counts")
	flags.BoolVar(&opt.decide, "decide", false, "Decide verification conditions with Z3")
	flags.StringToStringVar(&opt.replay, "replay", nil, "Replay the equation with concrete inputs, e.g. x!0@0#1=5")
	return cmd
}

// config returns the configuration file's settings overridden by any
// flags set on the command line.
func (opt *runOptions) config(cmd *cobra.Command) (symex.Config, error) {
	config := symex.DefaultConfig()
	if opt.configPath != "" {
		var err error
		if config, err = symex.LoadConfig(opt.configPath); err != nil {
			return config, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("depth") {
		config.MaxDepth = opt.depth
	}
	if flags.Changed("unwind") {
		config.Unwind = opt.unwind
	}
	if flags.Changed("paths") {
		config.Paths = opt.paths
	}
	if flags.Changed("seed") {
		config.Seed = opt.seed
	}
	if flags.Changed("propagation") {
		config.ConstantPropagation = opt.propagation
	}
	if flags.Changed("coverage") {
		config.Coverage = opt.coverage
	}
	return config, config.Validate()
}

// pathResult is a completed path and its VCC counts.
type pathResult struct {
	equation      *symex.Equation
	totalVCCs     int
	remainingVCCs int
}

func runProgram(w io.Writer, logger *zap.Logger, prog *symex.Program, config symex.Config, opt *runOptions) error {
	eq := symex.NewEquation()
	e := symex.NewExecutor(prog, eq, config)
	e.Logger = logger

	var results []*pathResult
	if !config.DoingPathExploration() {
		state, err := e.SymexFromEntryPoint()
		if err != nil {
			return err
		}
		results = append(results, &pathResult{equation: eq, totalVCCs: state.TotalVCCs, remainingVCCs: state.RemainingVCCs})
	} else {
		if err := e.InitializePathStorageFromEntryPoint(); err != nil {
			return err
		}
		for {
			p, err := e.ExecuteNextPath()
			if errors.Cause(err) == symex.ErrNoPathAvailable {
				break
			} else if err != nil {
				return err
			} else if !p.Done() {
				continue
			}
			results = append(results, &pathResult{equation: p.Equation, totalVCCs: p.State.TotalVCCs, remainingVCCs: p.State.RemainingVCCs})
		}
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Path", "Steps", "VCCs", "Remaining"})
	for i, r := range results {
		table.Append([]string{
			strconv.Itoa(i),
			strconv.Itoa(r.equation.Len()),
			strconv.Itoa(r.totalVCCs),
			strconv.Itoa(r.remainingVCCs),
		})
	}
	table.Render()

	for i, r := range results {
		if opt.showVCC {
			fmt.Fprintf(w, "\npath %d:\n", i)
			if _, err := r.equation.WriteTo(w); err != nil {
				return err
			}
		}
		if len(opt.replay) > 0 {
			if err := replay(w, i, r.equation, opt.replay); err != nil {
				return err
			}
		}
		if opt.decide {
			if err := decide(w, i, r.equation); err != nil {
				return err
			}
		}
	}

	if e.Coverage != nil {
		fmt.Fprintln(w)
		if _, err := e.Coverage.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// replay evaluates eq with concrete inputs and prints failed assertions.
func replay(w io.Writer, path int, eq *symex.Equation, values map[string]string) error {
	widths := make(map[string]uint)
	for _, step := range eq.Steps() {
		var exprs []symex.Expr
		switch step := step.(type) {
		case *symex.AssignmentStep:
			exprs = append(exprs, step.LHS, step.RHS)
		case *symex.AssumptionStep:
			exprs = append(exprs, step.Guard, step.Cond)
		case *symex.AssertionStep:
			exprs = append(exprs, step.Guard, step.Cond)
		}
		for _, ssa := range symex.FindSSAExprs(exprs...) {
			widths[ssa.Identifier()] = symex.TypeWidth(ssa.Symbol.Type)
		}
	}

	inputs := make(map[string]*symex.ConstantExpr, len(values))
	for name, s := range values {
		width, ok := widths[name]
		if !ok || width == 0 {
			return errors.Errorf("replay: unknown scalar symbol %q", name)
		}
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return errors.Wrapf(err, "replay %s", name)
		}
		inputs[name] = symex.NewConstantExpr(uint64(v), width)
	}

	failed, err := eq.Replay(inputs)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\npath %d replay: %d of %d assertions failed\n", path, len(failed), len(eq.Assertions()))
	for _, a := range failed {
		fmt.Fprintf(w, "  FAIL %s @ %s\n", a.Message, a.Source)
	}
	return nil
}

// decide checks the assertions of eq with Z3 and prints a verdict table
// followed by a counterexample for each failure.
func decide(w io.Writer, path int, eq *symex.Equation) error {
	d := z3.NewDecider()
	defer d.Close()

	results, err := d.Decide(eq)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\npath %d:\n", path)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Source", "Assertion", "Status"})
	for _, r := range results {
		table.Append([]string{r.Assertion.Source.String(), r.Assertion.Message, r.Status.String()})
	}
	table.Render()

	for _, r := range results {
		if r.Status != z3.StatusFail {
			continue
		}
		fmt.Fprintf(w, "counterexample for %q @ %s:\n", r.Assertion.Message, r.Assertion.Source)
		names := make([]string, 0, len(r.Model))
		for name := range r.Model {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s = %s\n", name, r.Model[name])
		}
	}
	return nil
}
