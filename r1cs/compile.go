package r1cs

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/achronyme/zkc/field"
	"github.com/achronyme/zkc/ir"
	"github.com/achronyme/zkc/poseidon"
)

var (
	// ErrDivisionByConstantZero is returned when a division's divisor folds
	// to the constant zero: no witness could ever satisfy the circuit.
	ErrDivisionByConstantZero = errors.New("division by constant zero")

	// ErrPublicInputAfterWitness is returned when a public input wire would
	// land after a non-public wire, breaking the contiguous public section
	// the export format requires.
	ErrPublicInputAfterWitness = errors.New("public input allocated after witness wires")
)

type witnessOpKind uint8

const (
	opAssignLC witnessOpKind = iota
	opMultiply
	opInverse
	opBitExtract
	opIsZero
	opPoseidon
)

// witnessOp records how one intermediate wire (or wire block) is computed
// from earlier wires. Replaying the recorded ops in order against a witness
// vector whose input wires are filled produces the full witness.
type witnessOp struct {
	kind   witnessOpKind
	target Variable

	a, b LinearCombination
	bit  uint32

	// IsZero: target holds the inverse wire, result the 0/1 outcome.
	result Variable

	// Poseidon: operand wires plus the internal wire block.
	left, right  Variable
	start, count int
}

// Compiler lowers an IR program to R1CS. One compiler compiles one program;
// the constraint system, wire layout and witness trace it accumulates
// belong to that program.
type Compiler struct {
	CS *System

	// PublicInputs and Witnesses list input names in wire order.
	PublicInputs []string
	Witnesses    []string

	bindings      map[string]Variable
	lcs           []LinearCombination
	ops           []witnessOp
	params        *poseidon.Parameters
	provenBoolean *bitset.BitSet
}

func NewCompiler() *Compiler {
	return &Compiler{
		CS:       NewSystem(),
		bindings: make(map[string]Variable),
	}
}

// SetProvenBoolean overrides the boolean-provenance set consulted when
// deciding whether a 1-bit range check is redundant. Compile computes it
// from the program when unset.
func (c *Compiler) SetProvenBoolean(set *bitset.BitSet) {
	c.provenBoolean = set
}

func (c *Compiler) isBoolean(v ir.Var) bool {
	return c.provenBoolean != nil && c.provenBoolean.Test(uint(v))
}

// materializeLC pins an LC to a single wire. Single-wire LCs pass through
// for free; anything else costs one wire and one equality constraint.
func (c *Compiler) materializeLC(lc LinearCombination) Variable {
	if v, ok := lc.AsSingleVariable(); ok {
		return v
	}
	v := c.CS.AllocWitness()
	c.ops = append(c.ops, witnessOp{kind: opAssignLC, target: v, a: lc})
	c.CS.EnforceEqual(lc, LCFromVariable(v))
	return v
}

// multiplyLCs multiplies two LCs: free if either side is constant, one
// constraint otherwise.
func (c *Compiler) multiplyLCs(a, b LinearCombination) LinearCombination {
	if k, ok := a.ConstantValue(); ok {
		return b.Scale(k)
	}
	if k, ok := b.ConstantValue(); ok {
		return a.Scale(k)
	}
	out := c.CS.MulLC(a, b)
	c.ops = append(c.ops, witnessOp{kind: opMultiply, target: out, a: a, b: b})
	return LCFromVariable(out)
}

// divideLCs divides num by den: free for a nonzero constant divisor, two
// constraints (den*inv = 1, num*inv = quotient) otherwise.
func (c *Compiler) divideLCs(num, den LinearCombination) (LinearCombination, error) {
	if k, ok := den.ConstantValue(); ok {
		if k.IsZero() {
			return nil, ErrDivisionByConstantZero
		}
		var inv fr.Element
		inv.Inverse(&k)
		return num.Scale(inv), nil
	}
	denInv := c.CS.InvLC(den)
	c.ops = append(c.ops, witnessOp{kind: opInverse, target: denInv, a: den})

	invLC := LCFromVariable(denInv)
	out := c.CS.MulLC(num, invLC)
	c.ops = append(c.ops, witnessOp{kind: opMultiply, target: out, a: num, b: invLC})
	return LCFromVariable(out), nil
}

// enforceNRange constrains val to [0, 2^bits): bits boolean wires plus one
// recomposition equality.
func (c *Compiler) enforceNRange(val LinearCombination, bits uint32) {
	var one fr.Element
	one.SetOne()
	var sum LinearCombination
	for i := uint32(0); i < bits; i++ {
		bit := c.CS.AllocWitness()
		bitLC := LCFromVariable(bit)
		c.CS.Enforce(bitLC, LCFromConstant(one).Sub(bitLC), nil)
		sum = sum.Add(bitLC.Scale(field.PowerOfTwo(i)))
		c.ops = append(c.ops, witnessOp{kind: opBitExtract, target: bit, a: val, bit: i})
	}
	c.CS.EnforceEqual(val, sum)
}

// compileIsLtViaBits decomposes a shifted difference over bits wires and
// returns the top bit as an LC. The recomposition equality doubles as a
// range proof on the difference.
func (c *Compiler) compileIsLtViaBits(diff LinearCombination, bits uint32) LinearCombination {
	var one fr.Element
	one.SetOne()
	var sum, top LinearCombination
	for i := uint32(0); i < bits; i++ {
		bit := c.CS.AllocWitness()
		bitLC := LCFromVariable(bit)
		c.CS.Enforce(bitLC, LCFromConstant(one).Sub(bitLC), nil)
		sum = sum.Add(bitLC.Scale(field.PowerOfTwo(i)))
		c.ops = append(c.ops, witnessOp{kind: opBitExtract, target: bit, a: diff, bit: i})
		if i == bits-1 {
			top = bitLC
		}
	}
	c.CS.EnforceEqual(diff, sum)
	return top
}

// isZeroGadget allocates the standard two-constraint IsZero over diff and
// returns the 0/1 result LC: diff*inv = 1-eq and diff*eq = 0.
func (c *Compiler) isZeroGadget(diff LinearCombination) LinearCombination {
	invVar := c.CS.AllocWitness()
	eqVar := c.CS.AllocWitness()
	c.ops = append(c.ops, witnessOp{kind: opIsZero, target: invVar, result: eqVar, a: diff})

	var one fr.Element
	one.SetOne()
	eqLC := LCFromVariable(eqVar)
	c.CS.Enforce(diff, LCFromVariable(invVar), LCFromConstant(one).Sub(eqLC))
	c.CS.Enforce(diff, eqLC, nil)
	return eqLC
}

// comparisonBits picks the decomposition width for a comparison. Operands
// with a recorded range bound compare over max(bounds) bits; otherwise both
// unbounded operands are range-proven to the field-safe maximum and the
// comparison runs at that width.
func (c *Compiler) comparisonBits(a, b LinearCombination, boundA, boundB uint32, okA, okB bool) uint32 {
	if okA && okB {
		if boundA > boundB {
			return boundA
		}
		return boundB
	}
	if !okA {
		c.enforceNRange(a, field.MaxRangeBits)
	}
	if !okB {
		c.enforceNRange(b, field.MaxRangeBits)
	}
	return field.MaxRangeBits
}

// Compile lowers the program into constraints, recording the witness trace
// as it goes. GenerateWitness can then be called any number of times.
func (c *Compiler) Compile(p *ir.Program) error {
	if c.provenBoolean == nil {
		c.provenBoolean = ir.ProvenBoolean(p)
	}
	c.lcs = make([]LinearCombination, p.NextVar)
	rangeBounds := make(map[ir.Var]uint32)

	var one fr.Element
	one.SetOne()
	oneLC := LCFromConstant(one)

	for i := range p.Instructions {
		in := &p.Instructions[i]

		switch in.Op {
		case ir.OpConst:
			c.lcs[in.Result] = LCFromConstant(in.Value)

		case ir.OpInput:
			var v Variable
			if in.Visibility == ir.Public {
				if c.CS.NbVariables() != c.CS.NbPublicInputs()+1 {
					return fmt.Errorf("input `%s`: %w", in.Name, ErrPublicInputAfterWitness)
				}
				v = c.CS.AllocPublic()
				c.PublicInputs = append(c.PublicInputs, in.Name)
			} else {
				v = c.CS.AllocWitness()
				c.Witnesses = append(c.Witnesses, in.Name)
			}
			c.bindings[in.Name] = v
			c.lcs[in.Result] = LCFromVariable(v)

		case ir.OpAdd:
			c.lcs[in.Result] = c.lcs[in.X].Add(c.lcs[in.Y])
		case ir.OpSub:
			c.lcs[in.Result] = c.lcs[in.X].Sub(c.lcs[in.Y])
		case ir.OpNeg:
			c.lcs[in.Result] = c.lcs[in.X].Neg()

		case ir.OpMul:
			c.lcs[in.Result] = c.multiplyLCs(c.lcs[in.X], c.lcs[in.Y])

		case ir.OpDiv:
			out, err := c.divideLCs(c.lcs[in.X], c.lcs[in.Y])
			if err != nil {
				return err
			}
			c.lcs[in.Result] = out

		case ir.OpMux:
			// result = cond*(then - else) + else. The selector is taken at
			// face value; callers who need it boolean say so with a range
			// check or comparison.
			elseLC := c.lcs[in.Z]
			selected := c.multiplyLCs(c.lcs[in.X], c.lcs[in.Y].Sub(elseLC))
			c.lcs[in.Result] = selected.Add(elseLC)

		case ir.OpNot:
			c.lcs[in.Result] = oneLC.Sub(c.lcs[in.X])

		case ir.OpAnd:
			c.lcs[in.Result] = c.multiplyLCs(c.lcs[in.X], c.lcs[in.Y])

		case ir.OpOr:
			a, b := c.lcs[in.X], c.lcs[in.Y]
			product := c.multiplyLCs(a, b)
			c.lcs[in.Result] = a.Add(b).Sub(product)

		case ir.OpIsEq:
			diff := c.lcs[in.X].Sub(c.lcs[in.Y])
			c.lcs[in.Result] = c.isZeroGadget(diff)

		case ir.OpIsNeq:
			diff := c.lcs[in.X].Sub(c.lcs[in.Y])
			c.lcs[in.Result] = oneLC.Sub(c.isZeroGadget(diff))

		case ir.OpIsLt:
			a, b := c.lcs[in.X], c.lcs[in.Y]
			boundA, okA := rangeBounds[in.X]
			boundB, okB := rangeBounds[in.Y]
			bits := c.comparisonBits(a, b, boundA, boundB, okA, okB)

			// top bit of b - a + 2^bits - 1 is set iff a < b
			shift := field.PowerOfTwo(bits)
			var offset fr.Element
			offset.Sub(&shift, &one)
			diff := b.Sub(a).Add(LCFromConstant(offset))
			c.lcs[in.Result] = c.compileIsLtViaBits(diff, bits+1)

		case ir.OpIsLe:
			// a <= b is 1 - (b < a)
			a, b := c.lcs[in.X], c.lcs[in.Y]
			boundA, okA := rangeBounds[in.X]
			boundB, okB := rangeBounds[in.Y]
			bits := c.comparisonBits(a, b, boundA, boundB, okA, okB)

			shift := field.PowerOfTwo(bits)
			var offset fr.Element
			offset.Sub(&shift, &one)
			diff := a.Sub(b).Add(LCFromConstant(offset))
			lt := c.compileIsLtViaBits(diff, bits+1)
			c.lcs[in.Result] = oneLC.Sub(lt)

		case ir.OpAssert:
			c.CS.EnforceEqual(c.lcs[in.X], oneLC)
			c.lcs[in.Result] = c.lcs[in.X]

		case ir.OpAssertEq:
			c.CS.EnforceEqual(c.lcs[in.X], c.lcs[in.Y])
			c.lcs[in.Result] = c.lcs[in.Y]

		case ir.OpRangeCheck:
			lc := c.lcs[in.X]
			if c.isBoolean(in.X) {
				// Already 0 or 1; just record the (1-bit) bound for later
				// comparisons.
				rangeBounds[in.X] = 1
				rangeBounds[in.Result] = 1
				c.lcs[in.Result] = lc
				break
			}
			c.enforceNRange(lc, in.Bits)
			rangeBounds[in.X] = in.Bits
			rangeBounds[in.Result] = in.Bits
			c.lcs[in.Result] = lc

		case ir.OpPoseidon:
			leftVar := c.materializeLC(c.lcs[in.X])
			rightVar := c.materializeLC(c.lcs[in.Y])
			if c.params == nil {
				c.params = poseidon.NewParameters()
			}
			start := c.CS.NbVariables()
			hash := hashCircuit(c.CS, c.params, leftVar, rightVar)
			count := c.CS.NbVariables() - start

			c.ops = append(c.ops, witnessOp{
				kind: opPoseidon,
				left: leftVar, right: rightVar,
				start: start, count: count,
			})
			c.lcs[in.Result] = LCFromVariable(hash)

		default:
			return fmt.Errorf("cannot compile opcode %s", in.Op)
		}
	}
	return nil
}

// GenerateWitness builds a full witness vector for the compiled system from
// concrete input values. Compile must have succeeded first.
func (c *Compiler) GenerateWitness(inputs map[string]fr.Element) ([]fr.Element, error) {
	witness := make([]fr.Element, c.CS.NbVariables())
	witness[0].SetOne()

	for _, name := range c.PublicInputs {
		v, ok := inputs[name]
		if !ok {
			return nil, fmt.Errorf("missing value for public input `%s`", name)
		}
		witness[c.bindings[name].Index()] = v
	}
	for _, name := range c.Witnesses {
		v, ok := inputs[name]
		if !ok {
			return nil, fmt.Errorf("missing value for witness `%s`", name)
		}
		witness[c.bindings[name].Index()] = v
	}

	for i := range c.ops {
		op := &c.ops[i]
		switch op.kind {
		case opAssignLC:
			witness[op.target.Index()] = op.a.Evaluate(witness)

		case opMultiply:
			a := op.a.Evaluate(witness)
			b := op.b.Evaluate(witness)
			witness[op.target.Index()].Mul(&a, &b)

		case opInverse:
			v := op.a.Evaluate(witness)
			if v.IsZero() {
				return nil, fmt.Errorf("division by zero computing wire %d", op.target.Index())
			}
			witness[op.target.Index()].Inverse(&v)

		case opBitExtract:
			v := op.a.Evaluate(witness)
			witness[op.target.Index()].SetUint64(field.Bit(&v, op.bit))

		case opIsZero:
			d := op.a.Evaluate(witness)
			if d.IsZero() {
				witness[op.target.Index()].SetZero()
				witness[op.result.Index()].SetOne()
			} else {
				witness[op.target.Index()].Inverse(&d)
				witness[op.result.Index()].SetZero()
			}

		case opPoseidon:
			fillPoseidonWitness(witness, c.params, op.left, op.right, op.start, op.count)
		}
	}
	return witness, nil
}

// CompileWithWitness evaluates, compiles and builds a witness in one shot.
//
// Evaluation runs first so a bad witness fails with a named assertion or
// range-check error before any constraint is emitted.
func (c *Compiler) CompileWithWitness(p *ir.Program, inputs map[string]fr.Element) ([]fr.Element, error) {
	if _, err := ir.Evaluate(p, inputs); err != nil {
		return nil, err
	}
	if err := c.Compile(p); err != nil {
		return nil, err
	}
	return c.GenerateWitness(inputs)
}
