package symex_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/benbjohnson/symex"
	"github.com/stretchr/testify/require"
)

func TestLoadProgram(t *testing.T) {
	t.Run("Merge", func(t *testing.T) {
		prog := MustLoadProgram(t, "merge.yaml")
		require.Equal(t, "main", prog.EntryPoint)
		require.Equal(t, []string{"main"}, prog.FunctionNames())

		fn := prog.Function("main")
		require.Len(t, fn.Body, 6)
		require.Equal(t, map[string]int{"else": 3, "done": 4}, fn.Labels)
		require.Equal(t, "IF c THEN GOTO 3", fn.Body[0].String())
		require.Equal(t, "GOTO 4", fn.Body[2].String())
		require.Equal(t, "ASSERT (slt (const 0 32) x) // x positive", fn.Body[4].String())
		require.Equal(t, "END_FUNCTION", fn.Body[5].String())

		sym, ok := prog.Symbols.Lookup("x")
		require.True(t, ok)
		require.True(t, sym.IsShared())
	})

	t.Run("Call", func(t *testing.T) {
		prog := MustLoadProgram(t, "call.yaml")
		require.Equal(t, []string{"ext", "inc", "main"}, prog.FunctionNames())
		require.Equal(t, "CALL r := inc((const 41 32))", prog.Function("main").Body[0].String())

		inc := prog.Function("inc")
		require.Len(t, inc.Params, 1)
		require.Equal(t, "inc::v", inc.Params[0].Name)
		require.Equal(t, "(code s32 s32)", inc.Type().String())

		ret, ok := prog.Symbols.Lookup(symex.ReturnValueName("inc"))
		require.True(t, ok)
		require.True(t, ret.Auxiliary)
		require.False(t, ret.IsShared())

		require.False(t, prog.Function("ext").HasBody())
	})

	t.Run("Locals", func(t *testing.T) {
		prog := MustLoadProgram(t, "locals.yaml")
		fn := prog.Function("main")

		require.Len(t, fn.Locals(), 1)
		require.Equal(t, "main::y", fn.Locals()[0].Name)
		require.Equal(t, "DECL main::y : s32", fn.Body[0].String())
		require.Equal(t, "ASSIGN main::y := (const 7 32)", fn.Body[1].String())
		require.Equal(t, "START_THREAD 4", fn.Body[2].String())
		require.Equal(t, "DEAD main::y", fn.Body[6].String())

		sym, ok := prog.Symbols.Lookup("main::y")
		require.True(t, ok)
		require.False(t, sym.IsShared())
	})

	t.Run("Throw", func(t *testing.T) {
		fn := MustLoadProgram(t, "throw.yaml").Function("main")
		require.Equal(t, "CATCH PUSH overflow->3", fn.Body[0].String())
		require.Equal(t, "THROW overflow", fn.Body[1].String())
		require.Equal(t, "CATCH POP", fn.Body[4].String())
	})

	t.Run("Quantifier", func(t *testing.T) {
		prog := MustLoadProgram(t, "quantifier.yaml")
		for _, name := range []string{"i", "j"} {
			sym, ok := prog.Symbols.Lookup(name)
			require.True(t, ok, name)
			require.Equal(t, "s32", sym.Type.String())
		}
	})

	t.Run("ErrNotExist", func(t *testing.T) {
		_, err := symex.LoadProgram(filepath.Join(t.TempDir(), "missing.yaml"))
		require.True(t, os.IsNotExist(err))
	})

	t.Run("ErrInvalid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`functions: [{name: main, body: [{kind: goto, target: nope}]}]`), 0666))

		_, err := symex.LoadProgram(path)
		require.EqualError(t, err, "load "+path+`: main:0: unknown label "nope"`)
	})
}

func TestParseProgram(t *testing.T) {
	for _, tt := range []struct {
		name string
		s    string
		err  string
	}{
		{
			name: "DuplicateLabel",
			s:    `functions: [{name: main, body: [{label: a, kind: skip}, {label: a, kind: skip}]}]`,
			err:  `function main: 1: duplicate label "a"`,
		},
		{
			name: "UndefinedSymbol",
			s:    `functions: [{name: main, body: [{kind: assign, lhs: z, rhs: "1"}]}]`,
			err:  "function main: 0: assign: undefined symbol: z",
		},
		{
			name: "UnknownKind",
			s:    `functions: [{name: main, body: [{kind: jump}]}]`,
			err:  `function main: 0: jump: unknown instruction kind "jump"`,
		},
		{
			name: "MissingTarget",
			s:    `functions: [{name: main, body: [{kind: goto}]}]`,
			err:  "function main: 0: goto: missing target",
		},
		{
			name: "MissingCond",
			s:    `functions: [{name: main, body: [{kind: assert}]}]`,
			err:  "function main: 0: assert: missing cond",
		},
		{
			name: "UndeclaredLocal",
			s:    `functions: [{name: main, body: [{kind: dead, symbol: y}]}]`,
			err:  `function main: 0: dead: undeclared local "y"`,
		},
		{
			name: "UndefinedFunction",
			s:    `functions: [{name: main, body: [{kind: call, function: nope}]}]`,
			err:  `main:0: call to undefined function "nope"`,
		},
		{
			name: "Arity",
			s:    `functions: [{name: main, body: [{kind: call, function: f}]}, {name: f, params: [{name: a, type: s32}]}]`,
			err:  "main:0: f expects 1 arguments, got 0",
		},
		{
			name: "DuplicateSymbol",
			s:    `symbols: [{name: x, type: s32}, {name: x, type: bool}]`,
			err:  "duplicate symbol: x",
		},
		{
			name: "DuplicateFunction",
			s:    `functions: [{name: main}, {name: main}]`,
			err:  "function main: duplicate function: main",
		},
		{
			name: "UnknownType",
			s:    `symbols: [{name: x, type: int}]`,
			err:  "symbol x: unknown type: int",
		},
		{
			name: "EntryPointWithoutBody",
			s:    `{entry: ext, functions: [{name: ext}]}`,
			err:  "entry point has no body: ext",
		},
	} {
		t.Run("Err"+tt.name, func(t *testing.T) {
			_, err := symex.ParseProgram([]byte(tt.s))
			require.EqualError(t, err, tt.err)
		})
	}

	t.Run("ErrDecode", func(t *testing.T) {
		_, err := symex.ParseProgram([]byte("functions: {"))
		require.ErrorContains(t, err, "decode program")
	})
}

func TestProgram_WriteTo(t *testing.T) {
	var buf bytes.Buffer
	_, err := MustLoadProgram(t, "merge.yaml").WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, `global c : bool
global x : s32

main (code void) // entry point
     0: IF c THEN GOTO 3
     1: ASSIGN x := (const 1 32)
     2: GOTO 4
else:
     3: ASSIGN x := (const 2 32)
done:
     4: ASSERT (slt (const 0 32) x) // x positive
     5: END_FUNCTION
`, buf.String())
}

func TestFunction_Update(t *testing.T) {
	t.Run("Merge", func(t *testing.T) {
		fn := MustLoadProgram(t, "merge.yaml").Function("main")
		require.Equal(t, []int{1, 3}, fn.Successors(0))
		require.Equal(t, []int{4}, fn.Successors(2))
		require.Empty(t, fn.Successors(5))
		require.Equal(t, []int{2, 3}, fn.Incoming(4))
		require.True(t, fn.IsTarget(3))
		require.False(t, fn.IsTarget(1))
		require.False(t, fn.IsBackwardGoto(2))
	})

	t.Run("Loop", func(t *testing.T) {
		fn := MustLoadProgram(t, "loop.yaml").Function("main")
		require.True(t, fn.IsLoopHead(1))
		require.True(t, fn.IsBackwardGoto(3))
		require.Equal(t, "main.0", fn.LoopID(3))
		require.Equal(t, []int{0, 3}, fn.Incoming(1))
	})

	t.Run("Dirty", func(t *testing.T) {
		fn := MustLoadProgram(t, "deref.yaml").Function("main")
		require.Equal(t, []string{"a", "b"}, fn.DirtyLocals())
		require.True(t, fn.IsDirty("a"))
		require.False(t, fn.IsDirty("p"))
	})

	t.Run("ErrMissingEnd", func(t *testing.T) {
		fn := &symex.Function{Name: "f", Body: []symex.Instruction{&symex.SkipInstr{}}}
		require.EqualError(t, fn.Update(), "f: body must end with END_FUNCTION")
	})

	t.Run("ErrTargetOutOfRange", func(t *testing.T) {
		fn := &symex.Function{Name: "f", Body: []symex.Instruction{&symex.GotoInstr{Target: 9}, &symex.EndFunctionInstr{}}}
		require.EqualError(t, fn.Update(), "f:0: jump target out of range: 9")
	})
}
