package ir

import "github.com/bits-and-blooms/bitset"

// Eliminate removes every instruction whose result is never read and whose
// execution has no observable effect. Inputs, assertions and range checks
// are always retained.
//
// Instructions only reference earlier results, so one backward sweep
// computes the exact live set. Variable numbering is left untouched;
// backends size their tables off Program.NextVar, not the instruction
// count.
func Eliminate(p *Program) {
	live := bitset.New(uint(p.NextVar))

	for i := len(p.Instructions) - 1; i >= 0; i-- {
		in := &p.Instructions[i]
		if !in.HasSideEffects() && !live.Test(uint(in.Result)) {
			continue
		}
		live.Set(uint(in.Result))
		for _, op := range in.Operands() {
			live.Set(uint(op))
		}
	}

	kept := p.Instructions[:0]
	for i := range p.Instructions {
		in := &p.Instructions[i]
		if in.HasSideEffects() || live.Test(uint(in.Result)) {
			kept = append(kept, *in)
		}
	}
	p.Instructions = kept
}
