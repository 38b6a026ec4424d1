// Package rtconfig is the runtime_state collaborator lang/compiler.Parse
// takes (spec.md §6): it owns the GC-root stack discipline spec.md §5
// describes and the global-name usage diagnostics hook, and loads requested
// compiler size limits from the environment or a YAML file. Loaded limits
// are not fed into lang/compiler, whose limits are fixed constants.
package rtconfig

import (
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Limits mirrors the size-limit constants of spec.md §4/§6 (MAXSTACK,
// MAXLOCALS, MAXARG_U, MAXARG_A, the while-loop condition scratch buffer).
// LoadEnv and LoadYAML start from Defaults, so unset fields keep those
// values. Nothing in this module applies a Limits value to lang/compiler;
// the CLI's --limits flag only warns about requests above the compiled
// constants.
type Limits struct {
	MaxStack        int `yaml:"max_stack" env:"LUON_MAXSTACK"`
	MaxLocals       int `yaml:"max_locals" env:"LUON_MAXLOCALS"`
	MaxUpvalues     int `yaml:"max_upvalues" env:"LUON_MAXUPVALUES"`
	MaxParams       int `yaml:"max_params" env:"LUON_MAXPARAMS"`
	MaxConstants    int `yaml:"max_constants" env:"LUON_MAXARG_U"`
	MaxListItems    int `yaml:"max_list_items" env:"LUON_MAXLISTITEMS"`
	WhileScratchMax int `yaml:"while_scratch_max" env:"LUON_WHILESCRATCH"`
}

// LoadEnv parses Limits from the process environment (LUON_MAXSTACK etc.),
// using the defaults below for anything unset.
func LoadEnv() (Limits, error) {
	l := Defaults()
	if err := env.Parse(&l); err != nil {
		return Limits{}, err
	}
	return l, nil
}

// LoadYAML parses Limits from a YAML file, starting from the defaults so a
// file that only overrides one field leaves the rest untouched.
func LoadYAML(path string) (Limits, error) {
	l := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return Limits{}, err
	}
	if err := yaml.Unmarshal(b, &l); err != nil {
		return Limits{}, err
	}
	return l, nil
}

// Defaults returns the limits spec.md §4/§6 names as compile-time
// constants.
func Defaults() Limits {
	return Limits{
		MaxStack:        250,
		MaxLocals:       200,
		MaxUpvalues:     32,
		MaxParams:       100,
		MaxConstants:    1<<24 - 1,
		MaxListItems:    50,
		WhileScratchMax: 200,
	}
}
