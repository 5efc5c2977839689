// Package r1cs compiles IR programs into rank-1 constraint systems over the
// BN254 scalar field and generates witnesses for them.
package r1cs

import "github.com/consensys/gnark-crypto/ecc/bn254/fr"

// Variable is a wire index into the witness vector. Wire 0 is the constant
// one; public input wires follow it, then everything else.
type Variable int

// WireOne is the constant-one wire every system starts with.
const WireOne Variable = 0

// Index returns the wire's position in the witness vector.
func (v Variable) Index() int { return int(v) }

// Term is one coefficient*wire summand.
type Term struct {
	Variable Variable
	Coeff    fr.Element
}

// LinearCombination is a sparse sum of terms, kept sorted by wire index
// with no zero coefficients. Constants are terms on WireOne. The zero
// value is the empty (zero) combination.
type LinearCombination []Term

// LCFromVariable returns the combination 1*v.
func LCFromVariable(v Variable) LinearCombination {
	var one fr.Element
	one.SetOne()
	return LinearCombination{{Variable: v, Coeff: one}}
}

// LCFromConstant returns the constant combination c*WireOne.
func LCFromConstant(c fr.Element) LinearCombination {
	if c.IsZero() {
		return nil
	}
	return LinearCombination{{Variable: WireOne, Coeff: c}}
}

// Add returns lc + other.
func (lc LinearCombination) Add(other LinearCombination) LinearCombination {
	out := make(LinearCombination, 0, len(lc)+len(other))
	i, j := 0, 0
	for i < len(lc) && j < len(other) {
		switch {
		case lc[i].Variable < other[j].Variable:
			out = append(out, lc[i])
			i++
		case lc[i].Variable > other[j].Variable:
			out = append(out, other[j])
			j++
		default:
			var sum fr.Element
			sum.Add(&lc[i].Coeff, &other[j].Coeff)
			if !sum.IsZero() {
				out = append(out, Term{Variable: lc[i].Variable, Coeff: sum})
			}
			i++
			j++
		}
	}
	out = append(out, lc[i:]...)
	out = append(out, other[j:]...)
	return out
}

// Sub returns lc - other.
func (lc LinearCombination) Sub(other LinearCombination) LinearCombination {
	return lc.Add(other.Neg())
}

// Neg returns -lc.
func (lc LinearCombination) Neg() LinearCombination {
	out := make(LinearCombination, len(lc))
	for i := range lc {
		out[i].Variable = lc[i].Variable
		out[i].Coeff.Neg(&lc[i].Coeff)
	}
	return out
}

// Scale returns k*lc.
func (lc LinearCombination) Scale(k fr.Element) LinearCombination {
	if k.IsZero() {
		return nil
	}
	out := make(LinearCombination, len(lc))
	for i := range lc {
		out[i].Variable = lc[i].Variable
		out[i].Coeff.Mul(&lc[i].Coeff, &k)
	}
	return out
}

// ConstantValue reports whether the combination is constant, and its value.
// The empty combination is the constant zero.
func (lc LinearCombination) ConstantValue() (fr.Element, bool) {
	var zero fr.Element
	switch len(lc) {
	case 0:
		return zero, true
	case 1:
		if lc[0].Variable == WireOne {
			return lc[0].Coeff, true
		}
	}
	return zero, false
}

// AsSingleVariable reports whether the combination is exactly one wire with
// coefficient 1, and which wire.
func (lc LinearCombination) AsSingleVariable() (Variable, bool) {
	if len(lc) == 1 && lc[0].Variable != WireOne && lc[0].Coeff.IsOne() {
		return lc[0].Variable, true
	}
	return 0, false
}

// Evaluate computes the combination's value over a witness vector.
func (lc LinearCombination) Evaluate(witness []fr.Element) fr.Element {
	var acc, t fr.Element
	for i := range lc {
		t.Mul(&lc[i].Coeff, &witness[lc[i].Variable.Index()])
		acc.Add(&acc, &t)
	}
	return acc
}
