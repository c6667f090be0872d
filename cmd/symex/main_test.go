package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// RunMain executes the command line and returns the exit code with the
// captured output streams.
func RunMain(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Main(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func testdata(name string) string {
	return filepath.Join("..", "..", "testdata", name)
}

func TestMain_Show(t *testing.T) {
	code, stdout, stderr := RunMain("show", testdata("merge.yaml"))
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "main (code void) // entry point\n")
	require.Contains(t, stdout, "     4: ASSERT (slt (const 0 32) x) // x positive\n")
}

func TestMain_Run(t *testing.T) {
	t.Run("ShowVCC", func(t *testing.T) {
		code, stdout, stderr := RunMain("run", "--show-vcc", testdata("merge.yaml"))
		require.Equal(t, 0, code, stderr)
		require.Contains(t, stdout, "\npath 0:\n")
		require.Contains(t, stdout, "{2} phi x#3 = (ite (not c#0) x#1 x#2)\n")
		require.NotContains(t, stdout, "path 1:")
	})

	t.Run("Paths", func(t *testing.T) {
		code, stdout, stderr := RunMain("run", "--paths", "fifo", "--show-vcc", testdata("merge.yaml"))
		require.Equal(t, 0, code, stderr)
		require.Contains(t, stdout, "\npath 0:\n")
		require.Contains(t, stdout, "\npath 1:\n")
		require.NotContains(t, stdout, "phi")
	})

	t.Run("Replay", func(t *testing.T) {
		code, stdout, stderr := RunMain("run", "--replay", "c#0=1", testdata("merge.yaml"))
		require.Equal(t, 0, code, stderr)
		require.Contains(t, stdout, "path 0 replay: 0 of 1 assertions failed\n")
	})

	t.Run("Coverage", func(t *testing.T) {
		code, stdout, stderr := RunMain("run", "--coverage", testdata("merge.yaml"))
		require.Equal(t, 0, code, stderr)
		require.Contains(t, strings.ToUpper(stdout), "TOTAL")
	})

	t.Run("Config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("unwind: 2\nunwinding_assertions: true\n"), 0666))

		code, stdout, stderr := RunMain("run", "--config", path, "--show-vcc", testdata("loop.yaml"))
		require.Equal(t, 0, code, stderr)
		require.Contains(t, stdout, "unwinding assertion loop main.0")
	})

	t.Run("ErrUnknownReplaySymbol", func(t *testing.T) {
		code, _, stderr := RunMain("run", "--replay", "nope=1", testdata("merge.yaml"))
		require.Equal(t, 1, code)
		require.Equal(t, "error: replay: unknown scalar symbol \"nope\"\n", stderr)
	})

	t.Run("ErrPathStrategy", func(t *testing.T) {
		code, _, stderr := RunMain("run", "--paths", "sideways", testdata("merge.yaml"))
		require.Equal(t, 1, code)
		require.Equal(t, "error: unknown path strategy: \"sideways\"\n", stderr)
	})

	t.Run("ErrUnsupported", func(t *testing.T) {
		code, _, stderr := RunMain("run", testdata("noinstr.yaml"))
		require.Equal(t, 1, code)
		require.True(t, strings.HasPrefix(stderr, "unsupported: "), stderr)
	})

	t.Run("ErrIncorrectProgram", func(t *testing.T) {
		code, _, stderr := RunMain("run", testdata("atomic.yaml"))
		require.Equal(t, 1, code)
		require.True(t, strings.HasPrefix(stderr, "error: incorrect goto program at T0 main:1: "), stderr)
	})

	t.Run("ErrNotExist", func(t *testing.T) {
		code, _, stderr := RunMain("run", testdata("missing.yaml"))
		require.Equal(t, 1, code)
		require.Contains(t, stderr, "missing.yaml")
	})
}

func TestMain_Dot(t *testing.T) {
	t.Run("Stdout", func(t *testing.T) {
		code, stdout, stderr := RunMain("dot", testdata("merge.yaml"))
		require.Equal(t, 0, code, stderr)
		require.True(t, strings.HasPrefix(stdout, "digraph \"main\" {\n"), stdout)
		require.Contains(t, stdout, "\t\"n0\" -> \"n4\" [style=\"dashed\", color=\"blue\", label=\"join\"]\n")
	})

	t.Run("Coverage", func(t *testing.T) {
		code, stdout, stderr := RunMain("dot", "--coverage", testdata("merge.yaml"))
		require.Equal(t, 0, code, stderr)
		require.Contains(t, stdout, "\t\"n0\" -> \"n1\" [label=\"")
		require.NotContains(t, stdout, "\t\"n0\" -> \"n1\"\n")
	})

	t.Run("Output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "main.dot")
		code, stdout, stderr := RunMain("dot", "-o", path, testdata("merge.yaml"))
		require.Equal(t, 0, code, stderr)
		require.Equal(t, "GraphViz file created: "+path+"\n", stdout)

		buf, err := os.ReadFile(path)
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(buf, []byte("digraph")))
	})

	t.Run("ErrFunctionNotFound", func(t *testing.T) {
		code, _, stderr := RunMain("dot", "--func", "nope", testdata("merge.yaml"))
		require.Equal(t, 1, code)
		require.Equal(t, "error: function not found: nope\n", stderr)
	})
}

func TestMain_ErrUnknownCommand(t *testing.T) {
	code, _, stderr := RunMain("frobnicate")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "unknown command")
}
