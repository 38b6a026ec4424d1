package compiler_test

import (
	"testing"

	"github.com/mna/luon/internal/rtconfig"
	"github.com/mna/luon/lang/compiler"
	"github.com/mna/luon/lang/intern"
	"github.com/stretchr/testify/require"
)

func parseSrc(t *testing.T, src string) compiler.ErrorList {
	t.Helper()
	interned := intern.New(0)
	rt := rtconfig.NewRuntime(false)
	_, errs := compiler.Parse(rt, interned, "test", []byte(src))
	return errs
}

func TestTableConstructorRejectsTwoListHalves(t *testing.T) {
	errs := parseSrc(t, "return {1, 2; 3, 4}")
	require.NotEmpty(t, errs)
}

func TestTableConstructorRejectsTwoRecordHalves(t *testing.T) {
	errs := parseSrc(t, "return {a = 1; b = 2}")
	require.NotEmpty(t, errs)
}

func TestTableConstructorAllowsMixedHalves(t *testing.T) {
	errs := parseSrc(t, "return {1, 2; x = 3}")
	require.Empty(t, errs)
}

func TestTableConstructorAllowsLeadingEmptyHalf(t *testing.T) {
	errs := parseSrc(t, "return {; x = 1}")
	require.Empty(t, errs)
}

func TestTableConstructorAllowsTrailingEmptyHalf(t *testing.T) {
	errs := parseSrc(t, "return {1, 2;}")
	require.Empty(t, errs)
}
