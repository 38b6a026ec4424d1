package token

import (
	"fmt"
	"sort"
	"strings"
)

// Error is a single lexical or compile error, shaped like go/scanner.Error
// but keyed on this package's line-only Position rather than the standard
// library's file-offset Position (spec.md's token interface only promises a
// line number, never a column or byte offset).
type Error struct {
	Pos Position
	Msg string
}

func (e Error) Error() string {
	if e.Pos.IsValid() {
		return e.Pos.String() + ": " + e.Msg
	}
	return e.Msg
}

// ErrorList is a sortable list of *Error, following the same shape as
// go/scanner.ErrorList (Add, Sort, Err, Error) so that lang/scanner and
// lang/compiler can share one error-collection idiom.
type ErrorList []*Error

// Add appends an error at the given position.
func (l *ErrorList) Add(pos Position, msg string) {
	*l = append(*l, &Error{Pos: pos, Msg: msg})
}

func (l ErrorList) Len() int      { return len(l) }
func (l ErrorList) Swap(i, j int) { l[i], l[j] = l[j], l[i] }
func (l ErrorList) Less(i, j int) bool {
	if l[i].Pos.Filename != l[j].Pos.Filename {
		return l[i].Pos.Filename < l[j].Pos.Filename
	}
	return l[i].Pos.Line < l[j].Pos.Line
}

// Sort orders the list by filename then line.
func (l ErrorList) Sort() { sort.Sort(l) }

// Err returns l as an error (nil if l is empty), so an ErrorList can be
// handled like any other error along with errors.Is/errors.As.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (and %d more errors)", l[0], len(l)-1)
	return sb.String()
}
