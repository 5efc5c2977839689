package ir

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/achronyme/zkc/field"
)

// ConstantFold folds constant subexpressions and applies algebraic
// identities in a single forward sweep.
//
// Identity folds (x+0, x*1, x/1, 0/x, mux with a constant selector or equal
// arms) do not rewrite the defining instruction into a copy: the result is
// recorded as an alias of the surviving variable and every later operand
// reference is redirected during the same sweep. The now-unreferenced
// instruction is left in place for Eliminate to collect.
//
// Division folds only when the divisor is a nonzero constant; a constant
// zero divisor stays put so the backend can reject it. Range checks whose
// operand is a constant that fits the bound fold to that constant.
func ConstantFold(p *Program) {
	consts := make(map[Var]fr.Element)
	alias := make(map[Var]Var)

	resolve := func(v Var) Var {
		for {
			a, ok := alias[v]
			if !ok {
				return v
			}
			v = a
		}
	}

	var one fr.Element
	one.SetOne()

	for i := range p.Instructions {
		in := &p.Instructions[i]

		in.X = resolve(in.X)
		in.Y = resolve(in.Y)
		in.Z = resolve(in.Z)

		cx, okX := consts[in.X]
		cy, okY := consts[in.Y]

		setConst := func(v fr.Element) {
			in.Op = OpConst
			in.Value = v
			in.X, in.Y, in.Z = 0, 0, 0
			consts[in.Result] = v
		}
		setAlias := func(to Var) {
			alias[in.Result] = to
			if c, ok := consts[to]; ok {
				consts[in.Result] = c
			}
		}

		switch in.Op {
		case OpConst:
			consts[in.Result] = in.Value

		case OpAdd:
			switch {
			case okX && okY:
				var v fr.Element
				v.Add(&cx, &cy)
				setConst(v)
			case okX && cx.IsZero():
				setAlias(in.Y)
			case okY && cy.IsZero():
				setAlias(in.X)
			}

		case OpSub:
			switch {
			case okX && okY:
				var v fr.Element
				v.Sub(&cx, &cy)
				setConst(v)
			case okY && cy.IsZero():
				setAlias(in.X)
			}

		case OpMul:
			switch {
			case okX && okY:
				var v fr.Element
				v.Mul(&cx, &cy)
				setConst(v)
			case okX && cx.IsOne():
				setAlias(in.Y)
			case okY && cy.IsOne():
				setAlias(in.X)
			case okX && cx.IsZero(), okY && cy.IsZero():
				var zero fr.Element
				setConst(zero)
			}

		case OpDiv:
			switch {
			case okX && okY && !cy.IsZero():
				var v fr.Element
				v.Div(&cx, &cy)
				setConst(v)
			case okY && cy.IsOne():
				setAlias(in.X)
			case okX && cx.IsZero() && !(okY && cy.IsZero()):
				var zero fr.Element
				setConst(zero)
			}

		case OpNeg:
			if okX {
				var v fr.Element
				v.Neg(&cx)
				setConst(v)
			}

		case OpMux:
			switch {
			case okX:
				if cx.Equal(&one) {
					setAlias(in.Y)
				} else {
					setAlias(in.Z)
				}
			case in.Y == in.Z:
				setAlias(in.Y)
			}

		case OpNot:
			if okX {
				var v fr.Element
				v.Sub(&one, &cx)
				setConst(v)
			}

		case OpAnd:
			if okX && okY {
				var v fr.Element
				v.Mul(&cx, &cy)
				setConst(v)
			}

		case OpOr:
			if okX && okY {
				var ab, v fr.Element
				ab.Mul(&cx, &cy)
				v.Add(&cx, &cy).Sub(&v, &ab)
				setConst(v)
			}

		case OpIsEq:
			if okX && okY {
				setConst(boolConst(cx.Equal(&cy)))
			}
		case OpIsNeq:
			if okX && okY {
				setConst(boolConst(!cx.Equal(&cy)))
			}
		case OpIsLt:
			if okX && okY {
				setConst(boolConst(cx.Cmp(&cy) < 0))
			}
		case OpIsLe:
			if okX && okY {
				setConst(boolConst(cx.Cmp(&cy) <= 0))
			}

		case OpRangeCheck:
			if okX && field.FitsInBits(&cx, in.Bits) {
				setConst(cx)
			}
		}
	}
}

func boolConst(b bool) fr.Element {
	var v fr.Element
	if b {
		v.SetOne()
	}
	return v
}
