package ir

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/achronyme/zkc/field"
	"github.com/achronyme/zkc/poseidon"
)

// Evaluate runs the program over concrete inputs and returns the value of
// every SSA variable, indexed by Var.
//
// Assertions are checked eagerly: the first failing Assert, AssertEq or
// RangeCheck aborts with an EvalError naming the offending variable, so a
// bad witness is reported before any backend sees it. Division by zero is
// an error here even though the R1CS encoding would merely be
// unsatisfiable.
func Evaluate(p *Program, inputs map[string]fr.Element) ([]fr.Element, error) {
	values := make([]fr.Element, p.NextVar)
	params := poseidon.NewParameters()

	var one fr.Element
	one.SetOne()

	for i := range p.Instructions {
		in := &p.Instructions[i]
		out := &values[in.Result]

		switch in.Op {
		case OpConst:
			*out = in.Value

		case OpInput:
			v, ok := inputs[in.Name]
			if !ok {
				return nil, &EvalError{
					Kind: EvalMissingInput, Var: in.Result, Name: in.Name,
					Msg: fmt.Sprintf("no value supplied for %s input `%s`", in.Visibility, in.Name),
				}
			}
			*out = v

		case OpAdd:
			out.Add(&values[in.X], &values[in.Y])
		case OpSub:
			out.Sub(&values[in.X], &values[in.Y])
		case OpMul:
			out.Mul(&values[in.X], &values[in.Y])
		case OpNeg:
			out.Neg(&values[in.X])

		case OpDiv:
			if values[in.Y].IsZero() {
				return nil, &EvalError{
					Kind: EvalDivisionByZero, Var: in.Result, Name: p.NameOf(in.Y),
					Msg: fmt.Sprintf("`%s` is zero", p.NameOf(in.Y)),
				}
			}
			out.Div(&values[in.X], &values[in.Y])

		case OpMux:
			// The selector picks the true branch only on exact equality
			// with 1; any other value selects the false branch.
			if values[in.X].Equal(&one) {
				*out = values[in.Y]
			} else {
				*out = values[in.Z]
			}

		case OpNot:
			out.Sub(&one, &values[in.X])
		case OpAnd:
			out.Mul(&values[in.X], &values[in.Y])
		case OpOr:
			// a + b - a*b
			var ab fr.Element
			ab.Mul(&values[in.X], &values[in.Y])
			out.Add(&values[in.X], &values[in.Y]).Sub(out, &ab)

		case OpIsEq:
			if values[in.X].Equal(&values[in.Y]) {
				out.SetOne()
			}
		case OpIsNeq:
			if !values[in.X].Equal(&values[in.Y]) {
				out.SetOne()
			}
		case OpIsLt:
			if values[in.X].Cmp(&values[in.Y]) < 0 {
				out.SetOne()
			}
		case OpIsLe:
			if values[in.X].Cmp(&values[in.Y]) <= 0 {
				out.SetOne()
			}

		case OpAssert:
			if !values[in.X].Equal(&one) {
				return nil, &EvalError{
					Kind: EvalAssertFailed, Var: in.X, Name: p.NameOf(in.X),
					Msg: fmt.Sprintf("assert(%s): value is %s, not 1", p.NameOf(in.X), values[in.X].String()),
				}
			}
			out.SetOne()

		case OpAssertEq:
			if !values[in.X].Equal(&values[in.Y]) {
				return nil, &EvalError{
					Kind: EvalAssertEqFailed, Var: in.X, Name: p.NameOf(in.X),
					Msg: fmt.Sprintf("assert_eq(%s, %s): %s != %s",
						p.NameOf(in.X), p.NameOf(in.Y),
						values[in.X].String(), values[in.Y].String()),
				}
			}
			out.SetOne()

		case OpRangeCheck:
			if !field.FitsInBits(&values[in.X], in.Bits) {
				return nil, &EvalError{
					Kind: EvalRangeCheckFailed, Var: in.X, Name: p.NameOf(in.X),
					Msg: fmt.Sprintf("`%s` = %s does not fit in %d bits",
						p.NameOf(in.X), values[in.X].String(), in.Bits),
				}
			}
			*out = values[in.X]

		case OpPoseidon:
			*out = params.Hash(values[in.X], values[in.Y])

		default:
			return nil, &EvalError{
				Kind: EvalUndefinedVariable, Var: in.Result,
				Msg: fmt.Sprintf("cannot evaluate opcode %s", in.Op),
			}
		}
	}
	return values, nil
}
