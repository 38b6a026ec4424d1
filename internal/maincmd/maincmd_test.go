package maincmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/luon/internal/maincmd"
	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.luon")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestTokenizeFile(t *testing.T) {
	path := writeSource(t, "return 1")

	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	err := maincmd.TokenizeFile(stdio, path)
	require.NoError(t, err)
	require.Empty(t, errOut.String())
	require.Contains(t, out.String(), "return")
	require.Contains(t, out.String(), "number 1")
}

func TestCompileFileEmitsDisassembly(t *testing.T) {
	path := writeSource(t, "return 1 + 2 * 3")

	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	err := maincmd.CompileFile(stdio, path, false)
	require.NoError(t, err)
	require.Empty(t, errOut.String())
	require.True(t, strings.Contains(out.String(), "mul"))
	require.True(t, strings.Contains(out.String(), "ret"))
}

func TestRunFilePrintsReturnValues(t *testing.T) {
	path := writeSource(t, "return 1 + 2 * 3")

	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	err := maincmd.RunFile(stdio, path)
	require.NoError(t, err)
	require.Empty(t, errOut.String())
	require.Equal(t, "7\n", out.String())
}

func TestRunFileReportsCompileError(t *testing.T) {
	path := writeSource(t, "return 1 +")

	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	err := maincmd.RunFile(stdio, path)
	require.Error(t, err)
	require.NotEmpty(t, errOut.String())
}
