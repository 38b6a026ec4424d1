package rtconfig

import (
	"github.com/mna/luon/lang/compiler"
	"github.com/mna/luon/lang/machine"
)

// Runtime implements lang/compiler.Runtime: it tracks the root-prototype
// stack the compiler pushes/pops around nested function bodies (spec.md
// §5), owns the global table every compiled chunk runs against, and
// records which global names source code actually referenced so a caller
// can flag typos after parsing (there is no declaration step for globals,
// so this is the only diagnostic available for them).
type Runtime struct {
	Globals *machine.Table
	Debug   bool

	roots           []*compiler.Prototype
	referencedNames map[string]bool
}

// NewRuntime builds a Runtime with a fresh, empty global table.
func NewRuntime(debug bool) *Runtime {
	return &Runtime{
		Globals:         machine.NewTable(),
		Debug:           debug,
		referencedNames: make(map[string]bool),
	}
}

func (r *Runtime) PushRoot(p *compiler.Prototype) {
	r.roots = append(r.roots, p)
}

func (r *Runtime) PopRoot() {
	r.roots = r.roots[:len(r.roots)-1]
}

func (r *Runtime) ReferenceGlobal(name string) {
	r.referencedNames[name] = true
}

func (r *Runtime) DebugInfo() bool {
	return r.Debug
}

// ReferencedGlobals returns the set of global names the parsed chunk
// touched, in no particular order; sorting is left to the caller.
func (r *Runtime) ReferencedGlobals() []string {
	names := make([]string, 0, len(r.referencedNames))
	for name := range r.referencedNames {
		names = append(names, name)
	}
	return names
}
