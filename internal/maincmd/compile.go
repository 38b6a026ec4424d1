package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/luon/internal/rtconfig"
	"github.com/mna/luon/lang/compiler"
	"github.com/mna/luon/lang/intern"
	"github.com/mna/mainer"
)

func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var errs error
	for _, file := range args {
		if err := CompileFile(stdio, file, c.WithComments); err != nil {
			errs = err
		}
	}
	return errs
}

// CompileFile parses file and prints the disassembly of the resulting
// prototype tree. withComments enables the parser's per-function debug
// vectors, so the disassembly carries a locals: section with each local's
// declaration line; the per-instruction Lines vector is not printed.
func CompileFile(stdio mainer.Stdio, file string, withComments bool) error {
	src, err := os.ReadFile(file)
	if err != nil {
		return printError(stdio, err)
	}

	interned := intern.New(0)
	rt := rtconfig.NewRuntime(withComments)
	proto, errs := compiler.Parse(rt, interned, file, src)
	if len(errs) > 0 {
		return printError(stdio, errs.Err())
	}

	out, err := compiler.Dasm(proto)
	if err != nil {
		return printError(stdio, err)
	}
	fmt.Fprint(stdio.Stdout, string(out))
	return nil
}
