package ir

import "github.com/bits-and-blooms/bitset"

// ProvenBoolean computes the set of variables whose value is structurally
// guaranteed to be 0 or 1, as a bitset indexed by Var.
//
// The R1CS backend consults this to skip redundant range checks: a 1-bit
// range check over a proven boolean constrains nothing new. The set is
// deliberately syntactic; it never assumes an input is boolean unless
// lowering typed it so.
func ProvenBoolean(p *Program) *bitset.BitSet {
	proven := bitset.New(uint(p.NextVar))

	isBool := func(v Var) bool { return proven.Test(uint(v)) }

	for i := range p.Instructions {
		in := &p.Instructions[i]

		b := false
		switch in.Op {
		case OpConst:
			b = in.Value.IsZero() || in.Value.IsOne()
		case OpInput:
			b = p.VarTypes[in.Result] == TypeBool
		case OpIsEq, OpIsNeq, OpIsLt, OpIsLe:
			b = true
		case OpAssert, OpAssertEq:
			// Result is 1 whenever evaluation survives.
			b = true
		case OpNot:
			b = isBool(in.X)
		case OpAnd, OpOr:
			b = isBool(in.X) && isBool(in.Y)
		case OpMux:
			// Whatever the selector, the result is one of the two arms.
			b = isBool(in.Y) && isBool(in.Z)
		case OpRangeCheck:
			b = in.Bits == 1 || isBool(in.X)
		case OpMul:
			b = isBool(in.X) && isBool(in.Y)
		}
		if b {
			proven.Set(uint(in.Result))
		}
	}
	return proven
}
