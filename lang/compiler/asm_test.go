package compiler_test

import (
	"testing"

	"github.com/kylelemons/godebug/diff"
	"github.com/mna/luon/internal/rtconfig"
	"github.com/mna/luon/lang/compiler"
	"github.com/mna/luon/lang/intern"
	"github.com/stretchr/testify/require"
)

// requireDasm compiles src and compares its disassembly to want, failing the
// test (with a readable line-by-line diff) on any mismatch.
func requireDasm(t *testing.T, src, want string) {
	t.Helper()
	interned := intern.New(0)
	rt := rtconfig.NewRuntime(false)
	proto, errs := compiler.Parse(rt, interned, "test", []byte(src))
	require.Empty(t, errs, "compile errors: %v", errs)

	got, err := compiler.Dasm(proto)
	require.NoError(t, err)
	if d := diff.Diff(want, string(got)); d != "" {
		t.Fatalf("disassembly mismatch:\n%s", d)
	}
}

func TestDasmArithmeticPrecedence(t *testing.T) {
	requireDasm(t, "return 1 + 2 * 3", `program:
	root: 0

function: 0 source="test" stack=3 params=0
	code:
		pushint 1	# 000
		pushint 2	# 001
		pushint 3	# 002
		mul	# 003
		add	# 004
		ret 0	# 005
		endcode	# 006
`)
}
