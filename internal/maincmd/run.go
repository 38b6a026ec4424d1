package maincmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mna/luon/internal/rtconfig"
	"github.com/mna/luon/lang/compiler"
	"github.com/mna/luon/lang/intern"
	"github.com/mna/luon/lang/machine"
	"github.com/mna/mainer"
)

func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var errs error
	for _, file := range args {
		if err := RunFile(stdio, file); err != nil {
			errs = err
		}
	}
	return errs
}

// RunFile parses file, compiles it to a Prototype, and executes it as the
// main chunk of a fresh Thread, printing whatever values it returns.
func RunFile(stdio mainer.Stdio, file string) error {
	src, err := os.ReadFile(file)
	if err != nil {
		return printError(stdio, err)
	}

	interned := intern.New(0)
	rt := rtconfig.NewRuntime(false)
	proto, errs := compiler.Parse(rt, interned, file, src)
	if len(errs) > 0 {
		return printError(stdio, errs.Err())
	}

	th := machine.NewThread(rt.Globals)
	results, err := th.Run(&machine.Closure{Proto: proto}, nil)
	if err != nil {
		return printError(stdio, err)
	}

	strs := make([]string, len(results))
	for i, r := range results {
		strs[i] = r.String()
	}
	fmt.Fprintln(stdio.Stdout, strings.Join(strs, "\t"))
	return nil
}
