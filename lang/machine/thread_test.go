package machine_test

import (
	"testing"

	"github.com/mna/luon/internal/rtconfig"
	"github.com/mna/luon/lang/compiler"
	"github.com/mna/luon/lang/intern"
	"github.com/mna/luon/lang/machine"
	"github.com/stretchr/testify/require"
)

// run compiles src as a chunk and executes it on a fresh Thread, returning
// whatever the main chunk returns.
func run(t *testing.T, src string) []machine.Value {
	t.Helper()
	interned := intern.New(0)
	rt := rtconfig.NewRuntime(false)
	proto, errs := compiler.Parse(rt, interned, "test", []byte(src))
	require.Empty(t, errs, "compile errors: %v", errs)

	th := machine.NewThread(rt.Globals)
	results, err := th.Run(&machine.Closure{Proto: proto}, nil)
	require.NoError(t, err)
	return results
}

func TestArithmeticPrecedence(t *testing.T) {
	results := run(t, "return 1 + 2 * 3")
	require.Len(t, results, 1)
	require.Equal(t, machine.Number(7), results[0])
}

func TestMultipleAssignmentSurplusPopped(t *testing.T) {
	results := run(t, "local a, b = 1, 2, 3 return a + b")
	require.Len(t, results, 1)
	require.Equal(t, machine.Number(3), results[0])
}

func TestMultipleAssignmentMissingValuesAreNil(t *testing.T) {
	results := run(t, "local a, b, c = 1 return b")
	require.Len(t, results, 1)
	require.Equal(t, machine.Nil{}, results[0])
}

func TestTableConstructorMixedListAndRecord(t *testing.T) {
	results := run(t, "local t = {10, 20, 30; x = 1} return t[2] + t.x")
	require.Len(t, results, 1)
	require.Equal(t, machine.Number(21), results[0])
}

func TestWhileLoopConcatenation(t *testing.T) {
	results := run(t, `
local s = ""
local i = 1
while i <= 3 do
	s = s .. i
	i = i + 1
end
return s
`)
	require.Len(t, results, 1)
	require.Equal(t, machine.String("123"), results[0])
}

func TestClosureUpvalueBinding(t *testing.T) {
	// Upvalue access is explicit (%x, spec.md §4.3): an inner function may
	// not read an outer function's local by its bare name.
	results := run(t, `
function f(x)
	return function(y)
		return %x + y
	end
end
return f(10)(32)
`)
	require.Len(t, results, 1)
	require.Equal(t, machine.Number(42), results[0])
}
