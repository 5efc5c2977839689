package r1cs

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Constraint is one rank-1 constraint: A * B = C.
type Constraint struct {
	A, B, C LinearCombination
}

// UnsatisfiedConstraintError reports the first constraint a witness
// violates.
type UnsatisfiedConstraintError struct {
	Index int
}

func (e *UnsatisfiedConstraintError) Error() string {
	return fmt.Sprintf("constraint %d is not satisfied", e.Index)
}

// System is an R1CS under construction. Wire 0 is the constant one;
// AllocPublic wires must all be allocated before the first AllocWitness so
// the public section of the witness vector is contiguous.
type System struct {
	constraints []Constraint
	nbVariables int
	nbPublic    int
}

func NewSystem() *System {
	return &System{nbVariables: 1}
}

// AllocPublic allocates the next wire as a public input.
func (s *System) AllocPublic() Variable {
	v := Variable(s.nbVariables)
	s.nbVariables++
	s.nbPublic++
	return v
}

// AllocWitness allocates the next wire as a private witness.
func (s *System) AllocWitness() Variable {
	v := Variable(s.nbVariables)
	s.nbVariables++
	return v
}

// Enforce appends the constraint a * b = c.
func (s *System) Enforce(a, b, c LinearCombination) {
	s.constraints = append(s.constraints, Constraint{A: a, B: b, C: c})
}

// EnforceEqual appends x = y as x * 1 = y.
func (s *System) EnforceEqual(x, y LinearCombination) {
	var one fr.Element
	one.SetOne()
	s.Enforce(x, LCFromConstant(one), y)
}

// MulLC allocates a wire for a*b and constrains it.
func (s *System) MulLC(a, b LinearCombination) Variable {
	out := s.AllocWitness()
	s.Enforce(a, b, LCFromVariable(out))
	return out
}

// InvLC allocates a wire for 1/x and constrains x * inv = 1.
func (s *System) InvLC(x LinearCombination) Variable {
	inv := s.AllocWitness()
	var one fr.Element
	one.SetOne()
	s.Enforce(x, LCFromVariable(inv), LCFromConstant(one))
	return inv
}

func (s *System) NbVariables() int    { return s.nbVariables }
func (s *System) NbPublicInputs() int { return s.nbPublic }
func (s *System) NbConstraints() int  { return len(s.constraints) }

// Constraints exposes the constraint list for export and inspection.
func (s *System) Constraints() []Constraint { return s.constraints }

// Verify checks every constraint against a full witness vector, returning
// an UnsatisfiedConstraintError for the first violation.
func (s *System) Verify(witness []fr.Element) error {
	if len(witness) != s.nbVariables {
		return fmt.Errorf("witness has %d wires, system has %d", len(witness), s.nbVariables)
	}
	if !witness[0].IsOne() {
		return fmt.Errorf("witness wire 0 must be 1")
	}
	var ab fr.Element
	for i := range s.constraints {
		c := &s.constraints[i]
		a := c.A.Evaluate(witness)
		b := c.B.Evaluate(witness)
		cv := c.C.Evaluate(witness)
		ab.Mul(&a, &b)
		if !ab.Equal(&cv) {
			return &UnsatisfiedConstraintError{Index: i}
		}
	}
	return nil
}
