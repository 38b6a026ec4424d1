package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/luon/lang/intern"
	"github.com/mna/luon/lang/scanner"
	"github.com/mna/luon/lang/token"
	"github.com/mna/mainer"
)

func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var errs error
	for _, file := range args {
		if err := TokenizeFile(stdio, file); err != nil {
			errs = err
		}
	}
	return errs
}

// TokenizeFile scans file in full and prints every token with its source
// position, one per line.
func TokenizeFile(stdio mainer.Stdio, file string) error {
	src, err := os.ReadFile(file)
	if err != nil {
		return printError(stdio, err)
	}

	interned := intern.New(0)
	toks, err := scanner.ScanAll(file, src, interned)
	for _, tv := range toks {
		fmt.Fprintf(stdio.Stdout, "%s: %s", token.Position{Filename: file, Line: tv.Value.Pos}, tv.Token)
		switch tv.Token {
		case token.NAME, token.STRING:
			fmt.Fprintf(stdio.Stdout, " %s", tv.Value.Sym.Name())
		case token.NUMBER:
			fmt.Fprintf(stdio.Stdout, " %g", tv.Value.Num)
		}
		fmt.Fprintln(stdio.Stdout)
	}
	if err != nil {
		return printError(stdio, err)
	}
	return nil
}
