package synth

import (
	"sort"
	"sync"

	"github.com/artpar/channelgen/core/ir"
)

// Run scopes one generation run. It caches the validator declaration of each
// message type so that a type is validated through one package variable no
// matter how many channels or protocols carry it.
type Run struct {
	mu         sync.Mutex
	validators map[string]*ir.VarDecl
}

// NewRun starts an empty run.
func NewRun() *Run {
	return &Run{validators: make(map[string]*ir.VarDecl)}
}

// Validator returns the name of the validator variable for goType, building
// its declaration on first use.
func (r *Run) Validator(goType string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.validators[goType]; ok {
		return v.Name
	}
	v := &ir.VarDecl{
		Name: ValidatorName(goType),
		Value: ir.Call{Fun: "binding.Validator", Args: []ir.Expr{ir.FuncLit{
			Results: []ir.Param{{Type: "func(" + goType + ") error"}, {Type: "error"}},
			Body: ir.Block{ir.Return{Values: []ir.Expr{
				ir.FuncLit{
					Params:  []ir.Param{{Name: "m", Type: goType}},
					Results: []ir.Param{{Type: "error"}},
					Body:    ir.Block{ir.Return{Values: []ir.Expr{ir.Code("m.Validate()")}}},
				},
				ir.Code("nil"),
			}}},
		}}},
		Imports: []ir.Import{{Path: bindingImport}},
	}
	r.validators[goType] = v
	return v.Name
}

// Validators returns the validator declarations built so far, by name.
func (r *Run) Validators() []ir.Decl {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ir.Decl, 0, len(r.validators))
	for _, v := range r.validators {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeclName() < out[j].DeclName() })
	return out
}

// Len reports how many validators were built.
func (r *Run) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.validators)
}
