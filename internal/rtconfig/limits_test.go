package rtconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/luon/internal/rtconfig"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvDefaults(t *testing.T) {
	l, err := rtconfig.LoadEnv()
	require.NoError(t, err)
	require.Equal(t, rtconfig.Defaults(), l)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LUON_MAXSTACK", "500")
	l, err := rtconfig.LoadEnv()
	require.NoError(t, err)
	require.Equal(t, 500, l.MaxStack)
	require.Equal(t, rtconfig.Defaults().MaxLocals, l.MaxLocals)
}

func TestLoadYAMLOverridesOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_stack: 999\n"), 0o644))

	l, err := rtconfig.LoadYAML(path)
	require.NoError(t, err)
	require.Equal(t, 999, l.MaxStack)
	require.Equal(t, rtconfig.Defaults().MaxParams, l.MaxParams)
}

func TestRuntimeRootStack(t *testing.T) {
	rt := rtconfig.NewRuntime(true)
	require.True(t, rt.DebugInfo())

	rt.PushRoot(nil)
	rt.PushRoot(nil)
	rt.PopRoot()
	rt.PopRoot()
}

func TestRuntimeReferenceGlobal(t *testing.T) {
	rt := rtconfig.NewRuntime(false)
	rt.ReferenceGlobal("print")
	rt.ReferenceGlobal("print")
	rt.ReferenceGlobal("x")

	got := rt.ReferencedGlobals()
	require.ElementsMatch(t, []string{"print", "x"}, got)
}
