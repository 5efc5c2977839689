package ir

import "github.com/bits-and-blooms/bitset"

// Taint ranks the provenance of a value: Constant < Public < Witness,
// ordered by how much prover-controlled information can flow into it.
// Advisory only; no pass changes behavior based on it.
type Taint uint8

const (
	TaintConstant Taint = iota
	TaintPublic
	TaintWitness
)

func (t Taint) String() string {
	switch t {
	case TaintConstant:
		return "constant"
	case TaintPublic:
		return "public"
	default:
		return "witness"
	}
}

// Join returns the most restrictive of the two taints.
func (t Taint) Join(o Taint) Taint {
	if o > t {
		return o
	}
	return t
}

// Taints computes the per-variable taint in one forward sweep: constants
// are TaintConstant, inputs carry their visibility, and every other
// result joins the taints of its operands.
func Taints(p *Program) []Taint {
	taints := make([]Taint, p.NextVar)
	for i := range p.Instructions {
		in := &p.Instructions[i]
		switch in.Op {
		case OpConst:
			taints[in.Result] = TaintConstant
		case OpInput:
			if in.Visibility == Public {
				taints[in.Result] = TaintPublic
			} else {
				taints[in.Result] = TaintWitness
			}
		default:
			t := TaintConstant
			for _, op := range in.Operands() {
				t = t.Join(taints[op])
			}
			taints[in.Result] = t
		}
	}
	return taints
}

// WarningKind classifies static-analysis findings. They never block
// compilation; an unconstrained witness is legal, just usually a bug.
type WarningKind uint8

const (
	// WarnUnusedInput flags an input no instruction reads.
	WarnUnusedInput WarningKind = iota
	// WarnUnderConstrained flags an input that is read but never reaches
	// an assertion or range check, so the prover can set it freely.
	WarnUnderConstrained
)

func (k WarningKind) String() string {
	if k == WarnUnusedInput {
		return "unused input"
	}
	return "under-constrained input"
}

// Warning reports one finding about one input wire.
type Warning struct {
	Kind       WarningKind
	Name       string
	Var        Var
	Visibility Visibility
}

// Analyze checks that every input both feeds the circuit and is pinned
// down by at least one constraint. It emits at most one warning per input:
// unused wins over under-constrained.
//
// Constrainedness propagates backward to a fixpoint: the operands of
// Assert, AssertEq and RangeCheck are constrained, and any operand of an
// instruction with a constrained result is constrained through it.
func Analyze(p *Program) []Warning {
	used := bitset.New(uint(p.NextVar))
	constrained := bitset.New(uint(p.NextVar))

	for i := range p.Instructions {
		in := &p.Instructions[i]
		for _, op := range in.Operands() {
			used.Set(uint(op))
		}
		switch in.Op {
		case OpAssert, OpAssertEq, OpRangeCheck:
			for _, op := range in.Operands() {
				constrained.Set(uint(op))
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for i := len(p.Instructions) - 1; i >= 0; i-- {
			in := &p.Instructions[i]
			if !constrained.Test(uint(in.Result)) {
				continue
			}
			for _, op := range in.Operands() {
				if !constrained.Test(uint(op)) {
					constrained.Set(uint(op))
					changed = true
				}
			}
		}
	}

	var warnings []Warning
	for i := range p.Instructions {
		in := &p.Instructions[i]
		if in.Op != OpInput {
			continue
		}
		switch {
		case !used.Test(uint(in.Result)):
			warnings = append(warnings, Warning{
				Kind: WarnUnusedInput, Name: in.Name, Var: in.Result, Visibility: in.Visibility,
			})
		case !constrained.Test(uint(in.Result)):
			warnings = append(warnings, Warning{
				Kind: WarnUnderConstrained, Name: in.Name, Var: in.Result, Visibility: in.Visibility,
			})
		}
	}
	return warnings
}
