package plonkish

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/achronyme/zkc/field"
	"github.com/achronyme/zkc/ir"
	"github.com/achronyme/zkc/poseidon"
)

// maxLookupBits caps the range lookup table size at 2^16 rows. Wider range
// checks fall back to bit decomposition rows, which grow linearly instead.
const maxLookupBits = 16

// ErrDivisionByConstantZero is returned when a division's right operand is
// a compile-time zero.
var ErrDivisionByConstantZero = errors.New("division by constant zero")

// lazy is the deferred representation of an SSA value: constants and
// linear chains stay symbolic until a gate needs an actual cell.
type lazy struct {
	kind     lazyKind
	cell     CellRef
	constant fr.Element
	a, b     *lazy
}

type lazyKind uint8

const (
	lazyCell lazyKind = iota
	lazyConst
	lazyAdd
	lazySub
	lazyNeg
)

func fromCell(c CellRef) *lazy     { return &lazy{kind: lazyCell, cell: c} }
func fromConst(v fr.Element) *lazy { return &lazy{kind: lazyConst, constant: v} }
func deferAdd(a, b *lazy) *lazy    { return &lazy{kind: lazyAdd, a: a, b: b} }
func deferSub(a, b *lazy) *lazy    { return &lazy{kind: lazySub, a: a, b: b} }
func deferNeg(a *lazy) *lazy       { return &lazy{kind: lazyNeg, a: a} }

func (v *lazy) constantValue() (fr.Element, bool) {
	if v.kind == lazyConst {
		return v.constant, true
	}
	return fr.Element{}, false
}

type stepKind uint8

const (
	stepAssignInput stepKind = iota
	stepCopyValue
	stepSetConstant
	stepArithRow
	stepInverseRow
	stepIsZeroRow
	stepBitRow
)

// step is one witness-generation action, replayed in order against the
// assignment grid.
type step struct {
	kind stepKind

	cell     CellRef // AssignInput / SetConstant target
	from, to CellRef // CopyValue
	name     string
	value    fr.Element

	row    int
	source CellRef // BitRow: cell whose bit is extracted
	bit    uint32
}

// Compiler lowers an IR program onto the standard column set: fixed
// columns for the arithmetic selector, constants and one lookup selector
// per range-table width, four advice columns feeding the gate
// s_arith*(a*b + c - d) = 0, and one instance column for public inputs.
type Compiler struct {
	System *System

	SArith   Column
	ConstCol Column
	ColA     Column
	ColB     Column
	ColC     Column
	ColD     Column
	Instance Column

	PublicInputs []string
	Witnesses    []string

	vals          []*lazy
	bindings      map[string]CellRef
	instanceRow   int
	currentRow    int
	steps         []step
	params        *poseidon.Parameters
	rangeTables   map[uint32]Column // per-width lookup selector
	provenBoolean *bitset.BitSet
}

func NewCompiler() *Compiler {
	sys := NewSystem(1024)

	c := &Compiler{
		System:      sys,
		SArith:      sys.AllocFixed(),
		ConstCol:    sys.AllocFixed(),
		bindings:    make(map[string]CellRef),
		rangeTables: make(map[uint32]Column),
	}
	c.ColA = sys.AllocAdvice()
	c.ColB = sys.AllocAdvice()
	c.ColC = sys.AllocAdvice()
	c.ColD = sys.AllocAdvice()
	c.Instance = sys.AllocInstance()

	poly := Cell(c.SArith, 0).Mul(
		Cell(c.ColA, 0).Mul(Cell(c.ColB, 0)).Add(Cell(c.ColC, 0)).Sub(Cell(c.ColD, 0)))
	sys.RegisterGate("arithmetic", poly)
	return c
}

// NumCircuitRows reports the rows used by the circuit itself, excluding
// lookup table padding.
func (c *Compiler) NumCircuitRows() int { return c.currentRow }

func (c *Compiler) allocRow() int {
	row := c.currentRow
	c.currentRow++
	if c.currentRow > c.System.NumRows {
		c.System.NumRows = c.currentRow
		c.System.Assignments.EnsureRows(c.currentRow)
	}
	return row
}

func (c *Compiler) at(col Column, row int) CellRef {
	return CellRef{Column: col, Row: row}
}

// wire copies a value between cells during witness generation and pins
// them equal with a copy constraint.
func (c *Compiler) wire(from, to CellRef) {
	c.steps = append(c.steps, step{kind: stepCopyValue, from: from, to: to})
	c.System.AddCopy(from, to)
}

func (c *Compiler) setConstant(cell CellRef, v fr.Element) {
	c.steps = append(c.steps, step{kind: stepSetConstant, cell: cell, value: v})
}

func (c *Compiler) arithStep(row int) {
	c.steps = append(c.steps, step{kind: stepArithRow, row: row})
}

// materialize pins a lazy value to a concrete cell.
func (c *Compiler) materialize(v *lazy) CellRef {
	switch v.kind {
	case lazyCell:
		return v.cell

	case lazyConst:
		// Row: 0*0 + k = d. The fixed constant column records k; witness
		// generation mirrors it into col_c so the gate yields d = k.
		row := c.allocRow()
		c.System.Set(c.SArith, row, field.One())
		c.System.Set(c.ConstCol, row, v.constant)
		c.setConstant(c.at(c.ColC, row), v.constant)
		c.arithStep(row)
		return c.at(c.ColD, row)

	case lazyAdd:
		a := c.materialize(v.a)
		b := c.materialize(v.b)
		row := c.allocRow()
		c.System.Set(c.SArith, row, field.One())
		c.setConstant(c.at(c.ColB, row), field.One())
		c.wire(a, c.at(c.ColA, row))
		c.wire(b, c.at(c.ColC, row))
		c.arithStep(row)
		return c.at(c.ColD, row)

	case lazySub:
		a := c.materialize(v.a)
		b := c.materialize(v.b)
		negB := c.negateCell(b)
		row := c.allocRow()
		c.System.Set(c.SArith, row, field.One())
		c.setConstant(c.at(c.ColB, row), field.One())
		c.wire(a, c.at(c.ColA, row))
		c.wire(negB, c.at(c.ColC, row))
		c.arithStep(row)
		return c.at(c.ColD, row)

	default: // lazyNeg
		return c.negateCell(c.materialize(v.a))
	}
}

// negateCell emits d = a*(-1) + 0.
func (c *Compiler) negateCell(cell CellRef) CellRef {
	row := c.allocRow()
	c.System.Set(c.SArith, row, field.One())
	c.wire(cell, c.at(c.ColA, row))
	var minusOne fr.Element
	minusOne.SetOne()
	minusOne.Neg(&minusOne)
	c.setConstant(c.at(c.ColB, row), minusOne)
	c.arithStep(row)
	return c.at(c.ColD, row)
}

// emitArithRow emits d = a*b + c and returns the d cell. A nil cCell
// leaves c at zero.
func (c *Compiler) emitArithRow(aCell, bCell CellRef, cCell *CellRef) CellRef {
	row := c.allocRow()
	c.System.Set(c.SArith, row, field.One())
	c.wire(aCell, c.at(c.ColA, row))
	c.wire(bCell, c.at(c.ColB, row))
	if cCell != nil {
		c.wire(*cCell, c.at(c.ColC, row))
	}
	c.arithStep(row)
	return c.at(c.ColD, row)
}

// emitDiv emits den*inv = 1 then num*inv = quotient.
func (c *Compiler) emitDiv(num, den CellRef) CellRef {
	invRow := c.allocRow()
	c.System.Set(c.SArith, invRow, field.One())
	c.wire(den, c.at(c.ColA, invRow))
	c.setConstant(c.at(c.ColD, invRow), field.One())
	c.steps = append(c.steps, step{kind: stepInverseRow, row: invRow})
	inv := c.at(c.ColB, invRow)
	return c.emitArithRow(num, inv, nil)
}

// emitMux emits result = cond*(t - f) + f. The selector is used as-is; no
// boolean row is inserted for it.
func (c *Compiler) emitMux(cond, t, f CellRef) CellRef {
	negF := c.negateCell(f)

	diffRow := c.allocRow()
	c.System.Set(c.SArith, diffRow, field.One())
	c.setConstant(c.at(c.ColB, diffRow), field.One())
	c.wire(t, c.at(c.ColA, diffRow))
	c.wire(negF, c.at(c.ColC, diffRow))
	c.arithStep(diffRow)
	diff := c.at(c.ColD, diffRow)

	return c.emitArithRow(cond, diff, &f)
}

// emitIsZero emits the two-row IsZero gadget over a materialized diff cell
// and returns the 0/1 result cell.
//
//	row 1: diff*inv + eq = 1   (d copy-pinned to a constant 1)
//	row 2: diff*eq = 0
func (c *Compiler) emitIsZero(diff CellRef) CellRef {
	oneCell := c.materialize(fromConst(field.One()))

	row1 := c.allocRow()
	c.System.Set(c.SArith, row1, field.One())
	c.wire(diff, c.at(c.ColA, row1))
	c.steps = append(c.steps, step{kind: stepIsZeroRow, row: row1})
	c.wire(oneCell, c.at(c.ColD, row1))
	eq := c.at(c.ColC, row1)

	row2 := c.allocRow()
	c.System.Set(c.SArith, row2, field.One())
	c.wire(diff, c.at(c.ColA, row2))
	c.wire(eq, c.at(c.ColB, row2))
	return eq
}

// emitBitDecompose proves cell fits in bits bits by decomposing it into
// boolean rows plus an accumulation chain copy-pinned back to the cell.
// Returns the top bit cell.
func (c *Compiler) emitBitDecompose(cell CellRef, bits uint32) CellRef {
	var top, acc CellRef
	for i := uint32(0); i < bits; i++ {
		// bit row: b_i * b_i = b_i
		brow := c.allocRow()
		c.System.Set(c.SArith, brow, field.One())
		bitCell := c.at(c.ColA, brow)
		c.steps = append(c.steps, step{kind: stepBitRow, row: brow, source: cell, bit: i})
		c.wire(bitCell, c.at(c.ColB, brow))
		c.wire(bitCell, c.at(c.ColD, brow))

		// accumulation row: acc_i = b_i * 2^i + acc_{i-1}
		arow := c.allocRow()
		c.System.Set(c.SArith, arow, field.One())
		c.wire(bitCell, c.at(c.ColA, arow))
		c.setConstant(c.at(c.ColB, arow), field.PowerOfTwo(i))
		if i > 0 {
			c.wire(acc, c.at(c.ColC, arow))
		}
		c.arithStep(arow)
		acc = c.at(c.ColD, arow)

		if i == bits-1 {
			top = bitCell
		}
	}
	c.System.AddCopy(acc, cell)
	return top
}

// emitRangeCheck proves cell < 2^bits, with a lookup row for table-sized
// widths and bit decomposition beyond.
func (c *Compiler) emitRangeCheck(cell CellRef, bits uint32) {
	if bits > maxLookupBits {
		c.emitBitDecompose(cell, bits)
		return
	}
	sel := c.ensureRangeTable(bits)
	row := c.allocRow()
	c.System.Set(sel, row, field.One())
	c.wire(cell, c.at(c.ColA, row))
}

// ensureRangeTable registers the 2^bits table once and returns its
// selector column. Each width gets its own selector so a row checked
// against one table is invisible to every other.
func (c *Compiler) ensureRangeTable(bits uint32) Column {
	if sel, ok := c.rangeTables[bits]; ok {
		return sel
	}

	sel := c.System.AllocFixed()
	tableCol := c.System.AllocFixed()
	size := 1 << bits
	if size > c.System.NumRows {
		c.System.NumRows = size
		c.System.Assignments.EnsureRows(size)
	}

	values := make([]fr.Element, size)
	for i := 0; i < size; i++ {
		values[i].SetUint64(uint64(i))
		c.System.Set(tableCol, i, values[i])
	}
	name := fmt.Sprintf("range_%d", bits)
	c.System.LookupTables = append(c.System.LookupTables, LookupTable{
		Name: name, Column: tableCol, Values: values,
	})
	c.System.RegisterLookupWithSelector(name,
		[]*Expression{Cell(c.ColA, 0)},
		[]*Expression{Cell(tableCol, 0)},
		Cell(sel, 0))
	c.rangeTables[bits] = sel
	return sel
}

func (c *Compiler) emitSbox(x CellRef) CellRef {
	x2 := c.emitArithRow(x, x, nil)
	x4 := c.emitArithRow(x2, x2, nil)
	return c.emitArithRow(x4, x, nil)
}

// emitPoseidon unrolls the permutation into arithmetic rows: every linear
// step becomes explicit scale/add rows since the gate has no free linear
// algebra the way an R1CS linear combination does.
func (c *Compiler) emitPoseidon(left, right CellRef) CellRef {
	if c.params == nil {
		c.params = poseidon.NewParameters()
	}
	params := c.params

	state := []CellRef{c.materialize(fromConst(fr.Element{})), left, right}

	totalRounds := params.RF + params.RP
	halfF := params.RF / 2

	for r := 0; r < totalRounds; r++ {
		for i := 0; i < params.T; i++ {
			rc := params.RoundConstants[r*params.T+i]
			if rc.IsZero() {
				continue
			}
			rcCell := c.materialize(fromConst(rc))
			row := c.allocRow()
			c.System.Set(c.SArith, row, field.One())
			c.setConstant(c.at(c.ColB, row), field.One())
			c.wire(state[i], c.at(c.ColA, row))
			c.wire(rcCell, c.at(c.ColC, row))
			c.arithStep(row)
			state[i] = c.at(c.ColD, row)
		}

		if r < halfF || r >= halfF+params.RP {
			for i := 0; i < params.T; i++ {
				state[i] = c.emitSbox(state[i])
			}
		} else {
			state[0] = c.emitSbox(state[0])
		}

		old := []CellRef{state[0], state[1], state[2]}
		for i := 0; i < params.T; i++ {
			prods := make([]CellRef, params.T)
			for j := 0; j < params.T; j++ {
				m := c.materialize(fromConst(params.Mds[i][j]))
				prods[j] = c.emitArithRow(m, old[j], nil)
			}
			sum01 := c.addCells(prods[0], prods[1])
			state[i] = c.addCells(sum01, prods[2])
		}
	}
	return state[1]
}

func (c *Compiler) addCells(a, b CellRef) CellRef {
	row := c.allocRow()
	c.System.Set(c.SArith, row, field.One())
	c.setConstant(c.at(c.ColB, row), field.One())
	c.wire(a, c.at(c.ColA, row))
	c.wire(b, c.at(c.ColC, row))
	c.arithStep(row)
	return c.at(c.ColD, row)
}

// Compile lowers the program onto the grid, recording the witness trace.
func (c *Compiler) Compile(p *ir.Program) error {
	if c.provenBoolean == nil {
		c.provenBoolean = ir.ProvenBoolean(p)
	}
	c.vals = make([]*lazy, p.NextVar)
	rangeBounds := make(map[ir.Var]uint32)

	one := field.One()

	for idx := range p.Instructions {
		in := &p.Instructions[idx]

		switch in.Op {
		case ir.OpConst:
			c.vals[in.Result] = fromConst(in.Value)

		case ir.OpInput:
			var cell CellRef
			if in.Visibility == ir.Public {
				cell = c.at(c.Instance, c.instanceRow)
				c.instanceRow++
				c.PublicInputs = append(c.PublicInputs, in.Name)
			} else {
				cell = c.at(c.ColA, c.allocRow())
				c.Witnesses = append(c.Witnesses, in.Name)
			}
			c.bindings[in.Name] = cell
			c.steps = append(c.steps, step{kind: stepAssignInput, cell: cell, name: in.Name})
			c.vals[in.Result] = fromCell(cell)

		case ir.OpAdd:
			a, b := c.vals[in.X], c.vals[in.Y]
			if av, okA := a.constantValue(); okA {
				if bv, okB := b.constantValue(); okB {
					var s fr.Element
					s.Add(&av, &bv)
					c.vals[in.Result] = fromConst(s)
					break
				}
			}
			c.vals[in.Result] = deferAdd(a, b)

		case ir.OpSub:
			a, b := c.vals[in.X], c.vals[in.Y]
			if av, okA := a.constantValue(); okA {
				if bv, okB := b.constantValue(); okB {
					var s fr.Element
					s.Sub(&av, &bv)
					c.vals[in.Result] = fromConst(s)
					break
				}
			}
			c.vals[in.Result] = deferSub(a, b)

		case ir.OpNeg:
			a := c.vals[in.X]
			if av, ok := a.constantValue(); ok {
				av.Neg(&av)
				c.vals[in.Result] = fromConst(av)
				break
			}
			c.vals[in.Result] = deferNeg(a)

		case ir.OpMul, ir.OpAnd:
			a, b := c.vals[in.X], c.vals[in.Y]
			if av, okA := a.constantValue(); okA {
				if bv, okB := b.constantValue(); okB {
					var s fr.Element
					s.Mul(&av, &bv)
					c.vals[in.Result] = fromConst(s)
					break
				}
			}
			c.vals[in.Result] = fromCell(c.emitArithRow(c.materialize(a), c.materialize(b), nil))

		case ir.OpDiv:
			a, b := c.vals[in.X], c.vals[in.Y]
			if bv, okB := b.constantValue(); okB {
				if bv.IsZero() {
					return ErrDivisionByConstantZero
				}
				if av, okA := a.constantValue(); okA {
					var s fr.Element
					s.Div(&av, &bv)
					c.vals[in.Result] = fromConst(s)
					break
				}
			}
			c.vals[in.Result] = fromCell(c.emitDiv(c.materialize(a), c.materialize(b)))

		case ir.OpOr:
			a, b := c.vals[in.X], c.vals[in.Y]
			if av, okA := a.constantValue(); okA {
				if bv, okB := b.constantValue(); okB {
					var ab, s fr.Element
					ab.Mul(&av, &bv)
					s.Add(&av, &bv).Sub(&s, &ab)
					c.vals[in.Result] = fromConst(s)
					break
				}
			}
			prod := c.emitArithRow(c.materialize(a), c.materialize(b), nil)
			c.vals[in.Result] = deferSub(deferAdd(a, b), fromCell(prod))

		case ir.OpNot:
			c.vals[in.Result] = deferSub(fromConst(one), c.vals[in.X])

		case ir.OpMux:
			cond := c.materialize(c.vals[in.X])
			t := c.materialize(c.vals[in.Y])
			f := c.materialize(c.vals[in.Z])
			c.vals[in.Result] = fromCell(c.emitMux(cond, t, f))

		case ir.OpAssertEq:
			a := c.materialize(c.vals[in.X])
			b := c.materialize(c.vals[in.Y])
			c.System.AddCopy(a, b)
			c.vals[in.Result] = fromCell(b)

		case ir.OpAssert:
			cell := c.materialize(c.vals[in.X])
			oneCell := c.materialize(fromConst(one))
			c.System.AddCopy(cell, oneCell)
			c.vals[in.Result] = fromCell(cell)

		case ir.OpIsEq:
			diff := c.materialize(deferSub(c.vals[in.X], c.vals[in.Y]))
			c.vals[in.Result] = fromCell(c.emitIsZero(diff))

		case ir.OpIsNeq:
			diff := c.materialize(deferSub(c.vals[in.X], c.vals[in.Y]))
			eq := c.emitIsZero(diff)
			c.vals[in.Result] = deferSub(fromConst(one), fromCell(eq))

		case ir.OpIsLt, ir.OpIsLe:
			aCell := c.materialize(c.vals[in.X])
			bCell := c.materialize(c.vals[in.Y])
			boundA, okA := rangeBounds[in.X]
			boundB, okB := rangeBounds[in.Y]

			var bits uint32
			if okA && okB {
				bits = boundA
				if boundB > bits {
					bits = boundB
				}
			} else {
				if !okA {
					c.emitBitDecompose(aCell, field.MaxRangeBits)
				}
				if !okB {
					c.emitBitDecompose(bCell, field.MaxRangeBits)
				}
				bits = field.MaxRangeBits
			}

			shift := field.PowerOfTwo(bits)
			var offset fr.Element
			offset.Sub(&shift, &one)

			var diff *lazy
			if in.Op == ir.OpIsLt {
				diff = deferAdd(deferSub(c.vals[in.Y], c.vals[in.X]), fromConst(offset))
			} else {
				diff = deferAdd(deferSub(c.vals[in.X], c.vals[in.Y]), fromConst(offset))
			}
			top := c.emitBitDecompose(c.materialize(diff), bits+1)
			if in.Op == ir.OpIsLt {
				c.vals[in.Result] = fromCell(top)
			} else {
				c.vals[in.Result] = deferSub(fromConst(one), fromCell(top))
			}

		case ir.OpRangeCheck:
			if c.provenBoolean.Test(uint(in.X)) {
				rangeBounds[in.X] = 1
				rangeBounds[in.Result] = 1
				c.vals[in.Result] = c.vals[in.X]
				break
			}
			cell := c.materialize(c.vals[in.X])
			c.emitRangeCheck(cell, in.Bits)
			rangeBounds[in.X] = in.Bits
			rangeBounds[in.Result] = in.Bits
			c.vals[in.Result] = fromCell(cell)

		case ir.OpPoseidon:
			left := c.materialize(c.vals[in.X])
			right := c.materialize(c.vals[in.Y])
			c.vals[in.Result] = fromCell(c.emitPoseidon(left, right))

		default:
			return fmt.Errorf("cannot compile opcode %s", in.Op)
		}
	}

	// Grid must cover both circuit rows and the largest lookup table.
	finalRows := c.currentRow
	for i := range c.System.LookupTables {
		if n := len(c.System.LookupTables[i].Values); n > finalRows {
			finalRows = n
		}
	}
	if finalRows > c.System.NumRows {
		c.System.NumRows = finalRows
	}
	c.System.Assignments.EnsureRows(c.System.NumRows)
	return nil
}

// GenerateWitness fills the advice and instance cells by replaying the
// recorded steps against concrete inputs.
func (c *Compiler) GenerateWitness(inputs map[string]fr.Element) error {
	a := c.System.Assignments
	for i := range c.steps {
		s := &c.steps[i]
		switch s.kind {
		case stepAssignInput:
			v, ok := inputs[s.name]
			if !ok {
				return fmt.Errorf("missing value for input `%s`", s.name)
			}
			a.Set(s.cell.Column, s.cell.Row, v)

		case stepCopyValue:
			a.Set(s.to.Column, s.to.Row, a.Get(s.from.Column, s.from.Row))

		case stepSetConstant:
			a.Set(s.cell.Column, s.cell.Row, s.value)

		case stepArithRow:
			av := a.Get(c.ColA, s.row)
			bv := a.Get(c.ColB, s.row)
			cv := a.Get(c.ColC, s.row)
			var d fr.Element
			d.Mul(&av, &bv).Add(&d, &cv)
			a.Set(c.ColD, s.row, d)

		case stepInverseRow:
			av := a.Get(c.ColA, s.row)
			if av.IsZero() {
				return fmt.Errorf("division by zero at row %d", s.row)
			}
			var inv fr.Element
			inv.Inverse(&av)
			a.Set(c.ColB, s.row, inv)
			a.Set(c.ColD, s.row, field.One())

		case stepIsZeroRow:
			av := a.Get(c.ColA, s.row)
			if av.IsZero() {
				a.Set(c.ColB, s.row, fr.Element{})
				a.Set(c.ColC, s.row, field.One())
			} else {
				var inv fr.Element
				inv.Inverse(&av)
				a.Set(c.ColB, s.row, inv)
				a.Set(c.ColC, s.row, fr.Element{})
			}

		case stepBitRow:
			v := a.Get(s.source.Column, s.source.Row)
			var bit fr.Element
			bit.SetUint64(field.Bit(&v, s.bit))
			a.Set(c.ColA, s.row, bit)
		}
	}
	return nil
}
