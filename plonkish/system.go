// Package plonkish provides a column/row constraint system with selector
// gated polynomial gates, lookup arguments and copy constraints, plus a
// compiler from the IR.
package plonkish

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ColumnKind distinguishes the three column classes: Fixed columns are set
// by the circuit, Advice by the prover, Instance by the verifier.
type ColumnKind uint8

const (
	Fixed ColumnKind = iota
	Advice
	Instance
)

func (k ColumnKind) String() string {
	switch k {
	case Fixed:
		return "fixed"
	case Advice:
		return "advice"
	default:
		return "instance"
	}
}

// Column identifies one column by kind and per-kind index.
type Column struct {
	Kind  ColumnKind
	Index int
}

// CellRef addresses one cell in the grid.
type CellRef struct {
	Column Column
	Row    int
}

// Expression is a polynomial over cells, evaluated row by row. Rotation
// offsets the queried row (wrapping at the grid height).
type Expression struct {
	kind     exprKind
	constant fr.Element
	column   Column
	rotation int
	lhs, rhs *Expression
}

type exprKind uint8

const (
	exprConstant exprKind = iota
	exprCell
	exprNeg
	exprSum
	exprProduct
)

func Constant(v fr.Element) *Expression {
	return &Expression{kind: exprConstant, constant: v}
}

func Cell(col Column, rotation int) *Expression {
	return &Expression{kind: exprCell, column: col, rotation: rotation}
}

func (e *Expression) Neg() *Expression {
	return &Expression{kind: exprNeg, lhs: e}
}

func (e *Expression) Add(other *Expression) *Expression {
	return &Expression{kind: exprSum, lhs: e, rhs: other}
}

func (e *Expression) Sub(other *Expression) *Expression {
	return e.Add(other.Neg())
}

func (e *Expression) Mul(other *Expression) *Expression {
	return &Expression{kind: exprProduct, lhs: e, rhs: other}
}

// Evaluate computes the expression at a row of the assignment grid.
func (e *Expression) Evaluate(a *Assignments, row, numRows int) fr.Element {
	switch e.kind {
	case exprConstant:
		return e.constant
	case exprCell:
		r := (row + e.rotation) % numRows
		if r < 0 {
			r += numRows
		}
		return a.Get(e.column, r)
	case exprNeg:
		v := e.lhs.Evaluate(a, row, numRows)
		v.Neg(&v)
		return v
	case exprSum:
		l := e.lhs.Evaluate(a, row, numRows)
		r := e.rhs.Evaluate(a, row, numRows)
		l.Add(&l, &r)
		return l
	default:
		l := e.lhs.Evaluate(a, row, numRows)
		r := e.rhs.Evaluate(a, row, numRows)
		l.Mul(&l, &r)
		return l
	}
}

// Gate is a named polynomial that must vanish on every row.
type Gate struct {
	Name string
	Poly *Expression
}

// Lookup requires the input tuple of every active row to appear among the
// table tuples. With a Selector, rows where it evaluates to zero are
// inactive; without one, all-zero input tuples are skipped instead, so
// padding rows pass.
type Lookup struct {
	Name       string
	InputExprs []*Expression
	TableExprs []*Expression
	Selector   *Expression
}

// LookupTable is a fixed column pre-filled with the table values.
type LookupTable struct {
	Name   string
	Column Column
	Values []fr.Element
}

// CopyConstraint requires two cells to hold equal values.
type CopyConstraint struct {
	Left, Right CellRef
}

// Assignments is the cell grid, one value vector per column.
type Assignments struct {
	grid map[Column][]fr.Element
	rows int
}

func NewAssignments() *Assignments {
	return &Assignments{grid: make(map[Column][]fr.Element)}
}

// EnsureRows grows every known column to at least n rows.
func (a *Assignments) EnsureRows(n int) {
	if n > a.rows {
		a.rows = n
	}
	for col, vals := range a.grid {
		if len(vals) < a.rows {
			grown := make([]fr.Element, a.rows)
			copy(grown, vals)
			a.grid[col] = grown
		}
	}
}

func (a *Assignments) Set(col Column, row int, v fr.Element) {
	vals := a.grid[col]
	if row >= len(vals) {
		n := a.rows
		if row+1 > n {
			n = row + 1
		}
		grown := make([]fr.Element, n)
		copy(grown, vals)
		vals = grown
		a.grid[col] = vals
	}
	vals[row] = v
}

func (a *Assignments) Get(col Column, row int) fr.Element {
	vals := a.grid[col]
	if row >= len(vals) {
		return fr.Element{}
	}
	return vals[row]
}

// GateError reports a gate polynomial that does not vanish.
type GateError struct {
	Gate string
	Row  int
}

func (e *GateError) Error() string {
	return fmt.Sprintf("gate %q not satisfied at row %d", e.Gate, e.Row)
}

// CopyError reports a violated copy constraint.
type CopyError struct {
	Left, Right CellRef
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy constraint violated: (%s%d, row %d) != (%s%d, row %d)",
		e.Left.Column.Kind, e.Left.Column.Index, e.Left.Row,
		e.Right.Column.Kind, e.Right.Column.Index, e.Right.Row)
}

// LookupError reports an input tuple missing from its table.
type LookupError struct {
	Lookup string
	Row    int
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %q failed at row %d", e.Lookup, e.Row)
}

// System is a Plonkish constraint system: the column set, gates, lookups,
// copies and the assignment grid.
type System struct {
	NumRows int

	Gates        []Gate
	Lookups      []Lookup
	LookupTables []LookupTable
	Copies       []CopyConstraint
	Assignments  *Assignments

	nbFixed    int
	nbAdvice   int
	nbInstance int
}

func NewSystem(numRows int) *System {
	a := NewAssignments()
	a.EnsureRows(numRows)
	return &System{NumRows: numRows, Assignments: a}
}

func (s *System) AllocFixed() Column {
	c := Column{Kind: Fixed, Index: s.nbFixed}
	s.nbFixed++
	return c
}

func (s *System) AllocAdvice() Column {
	c := Column{Kind: Advice, Index: s.nbAdvice}
	s.nbAdvice++
	return c
}

func (s *System) AllocInstance() Column {
	c := Column{Kind: Instance, Index: s.nbInstance}
	s.nbInstance++
	return c
}

func (s *System) RegisterGate(name string, poly *Expression) {
	s.Gates = append(s.Gates, Gate{Name: name, Poly: poly})
}

func (s *System) RegisterLookup(name string, inputs, table []*Expression) {
	s.Lookups = append(s.Lookups, Lookup{Name: name, InputExprs: inputs, TableExprs: table})
}

func (s *System) RegisterLookupWithSelector(name string, inputs, table []*Expression, selector *Expression) {
	s.Lookups = append(s.Lookups, Lookup{Name: name, InputExprs: inputs, TableExprs: table, Selector: selector})
}

func (s *System) AddCopy(left, right CellRef) {
	s.Copies = append(s.Copies, CopyConstraint{Left: left, Right: right})
}

func (s *System) Set(col Column, row int, v fr.Element) {
	s.Assignments.Set(col, row, v)
}

func (s *System) Get(col Column, row int) fr.Element {
	return s.Assignments.Get(col, row)
}

// Verify checks gates on every row, then copy constraints, then lookups.
func (s *System) Verify() error {
	for gi := range s.Gates {
		g := &s.Gates[gi]
		for row := 0; row < s.NumRows; row++ {
			v := g.Poly.Evaluate(s.Assignments, row, s.NumRows)
			if !v.IsZero() {
				return &GateError{Gate: g.Name, Row: row}
			}
		}
	}

	for _, cp := range s.Copies {
		l := s.Assignments.Get(cp.Left.Column, cp.Left.Row)
		r := s.Assignments.Get(cp.Right.Column, cp.Right.Row)
		if !l.Equal(&r) {
			return &CopyError{Left: cp.Left, Right: cp.Right}
		}
	}

	for li := range s.Lookups {
		lk := &s.Lookups[li]

		table := make(map[string]struct{}, s.NumRows)
		for row := 0; row < s.NumRows; row++ {
			table[s.tupleKey(lk.TableExprs, row)] = struct{}{}
		}

		for row := 0; row < s.NumRows; row++ {
			if lk.Selector != nil {
				sel := lk.Selector.Evaluate(s.Assignments, row, s.NumRows)
				if sel.IsZero() {
					continue
				}
			}

			input := make([]fr.Element, len(lk.InputExprs))
			allZero := true
			for i, e := range lk.InputExprs {
				input[i] = e.Evaluate(s.Assignments, row, s.NumRows)
				if !input[i].IsZero() {
					allZero = false
				}
			}
			if lk.Selector == nil && allZero {
				continue
			}

			key := ""
			for i := range input {
				b := input[i].Bytes()
				key += string(b[:])
			}
			if _, ok := table[key]; !ok {
				return &LookupError{Lookup: lk.Name, Row: row}
			}
		}
	}
	return nil
}

func (s *System) tupleKey(exprs []*Expression, row int) string {
	key := ""
	for _, e := range exprs {
		v := e.Evaluate(s.Assignments, row, s.NumRows)
		b := v.Bytes()
		key += string(b[:])
	}
	return key
}
